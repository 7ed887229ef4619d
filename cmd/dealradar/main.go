// Command dealradar runs price scraping cycles and prints deal reports.
// Modes: scrape (one cycle), schedule (long-lived loop), deals (report
// of genuine offers from stored history).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dealradar/dealradar/engine/assess"
	"github.com/dealradar/dealradar/engine/normalize"
	"github.com/dealradar/dealradar/engine/orchestrate"
	"github.com/dealradar/dealradar/engine/schedule"
	"github.com/dealradar/dealradar/engine/scrape"
	"github.com/dealradar/dealradar/pkg/config"
	"github.com/dealradar/dealradar/pkg/events"
	"github.com/dealradar/dealradar/pkg/metrics"
	"github.com/dealradar/dealradar/pkg/repo"
	"github.com/dealradar/dealradar/pkg/repo/postgres"
	"github.com/dealradar/dealradar/pkg/repo/sqlite"
	"github.com/dealradar/dealradar/pkg/resilience"
)

func main() {
	var (
		mode    = flag.String("mode", "scrape", "scrape | schedule | deals")
		cfgPath = flag.String("config", os.Getenv("DEALRADAR_CONFIG"), "path to YAML config")
		limit   = flag.Int("limit", 10, "max offers in the deals report")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// A missing .env is fine; explicit env still applies.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("configuration rejected", "error", err)
		os.Exit(1)
	}

	if err := run(*mode, *limit, cfg, logger); err != nil {
		logger.Error("exited with error", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func run(mode string, limit int, cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	switch mode {
	case "deals":
		return printDeals(ctx, cfg, store, limit, logger)
	case "scrape", "schedule":
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	var bus *events.Bus
	if cfg.NATSURL != "" {
		bus, err = events.Connect(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer bus.Close()
	}

	reg := metrics.New()
	reg.ServeAsync(cfg.MetricsPort)

	registry := scrape.NewRegistry()
	registry.Register("falabella", func() scrape.Adapter { return scrape.NewFalabella() })

	orch, err := orchestrate.New(orchestrate.Deps{
		Registry: registry,
		Store:    store,
		Norm:     normalize.New(logger),
		Bus:      bus,
		Metrics:  metrics.NewScrape(reg),
		Log:      logger,
	}, orchestrate.Options{
		Stores:   cfg.Stores,
		Queries:  cfg.Queries,
		MaxPages: cfg.MaxPages,
		Workers:  cfg.WorkerConcurrency,
		Throttle: resilience.ThrottleOpts{
			RequestsPerMinute: cfg.RequestsPerMinute,
			Delay:             cfg.DelayBetweenRequests,
		},
		Retry:   resilience.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Jitter: true},
		Breaker: resilience.DefaultBreakerOpts,
	})
	if err != nil {
		return err
	}

	engine := newEngine(cfg, logger)
	cycle := func(ctx context.Context) error {
		run, err := orch.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("cycle recorded", "run_id", run.ID, "status", run.Status)
		publishFlagged(ctx, engine, store, bus, logger)
		return nil
	}

	if mode == "scrape" {
		return cycle(ctx)
	}

	retention := func(ctx context.Context) error {
		cutoff := time.Now().Add(-cfg.Retention())
		removed, err := store.PurgeObservationsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("old observations purged", "removed", removed, "cutoff", cutoff)
		}
		return nil
	}

	err = schedule.New(cfg.Interval(), cycle, retention, logger).Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// publishFlagged emits suspicious-deal events for the freshly scraped
// catalog. Assessment trouble only degrades notifications, never a cycle.
func publishFlagged(ctx context.Context, engine *assess.Engine, store repo.Store, bus *events.Bus, logger *slog.Logger) {
	if bus == nil {
		return
	}
	flagged, err := engine.FlaggedDeals(ctx, store, time.Now())
	if err != nil {
		logger.Warn("flagging suspicious deals failed", "error", err)
		return
	}
	for _, a := range flagged {
		if err := bus.PublishSuspicious(ctx, events.SuspiciousDealEvent{Assessment: a}); err != nil {
			logger.Warn("publishing suspicious deal failed", "product", a.Product.String(), "error", err)
		}
	}
}

func newEngine(cfg config.Config, logger *slog.Logger) *assess.Engine {
	return assess.New(assess.Options{
		MinHistoryDays:      cfg.MinPriceHistoryDays,
		MinObservations:     3,
		BaselineWindow:      30 * 24 * time.Hour,
		BaselineTolerance:   cfg.BaselineTolerance,
		AnchorTolerance:     0.02,
		MinDiscountFraction: cfg.MinDiscountPercentage / 100,
	}, logger)
}

func printDeals(ctx context.Context, cfg config.Config, store repo.Store, limit int, logger *slog.Logger) error {
	offers, err := newEngine(cfg, logger).TopOffers(ctx, store, time.Now(), limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(offers)
}

func openStore(ctx context.Context, cfg config.Config) (repo.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.Open(ctx, cfg.Database.DSN)
	case "memory":
		return repo.NewMemory(), nil
	default:
		return sqlite.Open(cfg.Database.Path)
	}
}
