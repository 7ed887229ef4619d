// Command api serves the deal report over HTTP: genuine offers ranked
// by discount, the product catalog, and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dealradar/dealradar/engine/assess"
	"github.com/dealradar/dealradar/pkg/config"
	"github.com/dealradar/dealradar/pkg/metrics"
	"github.com/dealradar/dealradar/pkg/mid"
	"github.com/dealradar/dealradar/pkg/repo"
	"github.com/dealradar/dealradar/pkg/repo/postgres"
	"github.com/dealradar/dealradar/pkg/repo/sqlite"
)

func main() {
	var (
		cfgPath = flag.String("config", os.Getenv("DEALRADAR_CONFIG"), "path to YAML config")
		origin  = flag.String("cors-origin", "*", "allowed CORS origin")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("configuration rejected", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *origin, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, origin string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := assess.New(assess.Options{
		MinHistoryDays:      cfg.MinPriceHistoryDays,
		MinObservations:     3,
		BaselineWindow:      30 * 24 * time.Hour,
		BaselineTolerance:   cfg.BaselineTolerance,
		AnchorTolerance:     0.02,
		MinDiscountFraction: cfg.MinDiscountPercentage / 100,
	}, logger)

	reg := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("GET /api/deals", handleDeals(engine, store, logger))
	mux.HandleFunc("GET /api/products", handleProducts(store, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(origin),
		mid.OTel("dealradar-api"),
	)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.APIPort),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("api listening", "addr", srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func handleDeals(engine *assess.Engine, store repo.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		offers, err := engine.TopOffers(r.Context(), store, time.Now(), limit)
		if err != nil {
			logger.Error("deal report failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, offers)
	}
}

func handleProducts(store repo.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := store.Products(r.Context())
		if err != nil {
			logger.Error("product listing failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, products)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		v = []struct{}{}
	}
	json.NewEncoder(w).Encode(v)
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
