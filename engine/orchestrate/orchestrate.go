// Package orchestrate runs scraping cycles: it fans (store, query) pairs
// out over a bounded worker pool, paces every request through the
// per-store throttle and breaker, drives each page fetch through the
// retry state machine, and persists normalized observations.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealradar/dealradar/engine/catalog"
	"github.com/dealradar/dealradar/engine/normalize"
	"github.com/dealradar/dealradar/engine/scrape"
	"github.com/dealradar/dealradar/pkg/events"
	"github.com/dealradar/dealradar/pkg/fn"
	"github.com/dealradar/dealradar/pkg/metrics"
	"github.com/dealradar/dealradar/pkg/repo"
	"github.com/dealradar/dealradar/pkg/resilience"
)

// unchangedThreshold is the relative price move below which a new
// observation is considered noise and not appended.
const unchangedThreshold = 0.001

// Deps are the orchestrator's collaborators. Bus and Metrics may be nil.
type Deps struct {
	Registry *scrape.Registry
	Store    repo.Store
	Norm     *normalize.Normalizer
	Bus      *events.Bus
	Metrics  *metrics.Scrape
	Log      *slog.Logger
	Now      func() time.Time
}

// Options bound one run.
type Options struct {
	// Stores to scrape. Empty means every registered store.
	Stores []string
	// Queries to search on each store.
	Queries []string
	// MaxPages caps pagination per (store, query) pair.
	MaxPages int
	// Workers bounds concurrent pairs.
	Workers int

	Throttle resilience.ThrottleOpts
	Retry    resilience.RetryPolicy
	Breaker  resilience.BreakerOpts
}

// Orchestrator executes runs. Throttles and breakers are per store and
// shared across runs so a tripped breaker survives into the next cycle.
type Orchestrator struct {
	deps Deps
	opts Options

	mu        sync.Mutex
	throttles map[string]*resilience.Throttle
	breakers  map[string]*resilience.Breaker

	locks *repo.KeyedMutex
}

// pair is one unit of work.
type pair struct {
	adapter scrape.Adapter
	store   string
	query   string
}

// New validates the options against the registry and builds an
// orchestrator. Unknown stores fail here, before any network work.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if len(opts.Stores) == 0 {
		opts.Stores = deps.Registry.Stores()
	}
	if len(opts.Queries) == 0 {
		return nil, &catalog.ConfigError{Option: "queries", Reason: "at least one query is required"}
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = catalog.IsRetryable
	}
	for _, store := range opts.Stores {
		if _, err := deps.Registry.Resolve(store); err != nil {
			return nil, err
		}
	}
	return &Orchestrator{
		deps:      deps,
		opts:      opts,
		throttles: make(map[string]*resilience.Throttle),
		breakers:  make(map[string]*resilience.Breaker),
		locks:     repo.NewKeyedMutex(),
	}, nil
}

// Run executes one full scraping cycle and records it. The returned run
// reflects every pair outcome; the error covers only the final record
// write. Pair failures never abort the run.
func (o *Orchestrator) Run(ctx context.Context) (catalog.ScrapingRun, error) {
	run := catalog.ScrapingRun{
		ID:        uuid.NewString(),
		StartedAt: o.deps.Now(),
	}
	log := o.deps.Log.With("run_id", run.ID)
	log.Info("run started", "stores", o.opts.Stores, "queries", o.opts.Queries)
	if o.deps.Metrics != nil {
		o.deps.Metrics.RunsStarted.Inc()
	}

	var pairs []pair
	for _, store := range o.opts.Stores {
		adapter, err := o.deps.Registry.Resolve(store)
		if err != nil {
			// Validated in New; a failure here means the registry changed
			// underneath us.
			return run, err
		}
		for _, query := range o.opts.Queries {
			pairs = append(pairs, pair{adapter: adapter, store: store, query: query})
		}
	}

	results := fn.ParMapResult(pairs, o.opts.Workers, func(p pair) fn.Result[catalog.PairOutcome] {
		return fn.Ok(o.scrapePair(ctx, log, p))
	})
	for _, r := range results {
		outcome, _ := r.Unwrap()
		run.Outcomes = append(run.Outcomes, outcome)
	}

	run.EndedAt = o.deps.Now()
	run.Status = run.AggregateStatus()
	o.countRun(run)
	log.Info("run finished",
		"status", run.Status,
		"pairs", len(run.Outcomes),
		"duration", run.EndedAt.Sub(run.StartedAt),
	)

	if err := o.deps.Store.RecordRun(ctx, run); err != nil {
		return run, fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	if err := o.deps.Bus.PublishRunFinished(ctx, run); err != nil {
		log.Warn("publishing run summary failed", "error", err)
	}
	return run, nil
}

func (o *Orchestrator) countRun(run catalog.ScrapingRun) {
	if o.deps.Metrics == nil {
		return
	}
	switch run.Status {
	case catalog.RunCompleted:
		o.deps.Metrics.RunsCompleted.Inc()
	case catalog.RunPartial:
		o.deps.Metrics.RunsPartial.Inc()
	default:
		o.deps.Metrics.RunsFailed.Inc()
	}
}

// scrapePair walks one (store, query) search. All failures land in the
// outcome; nothing escapes to the run level.
func (o *Orchestrator) scrapePair(ctx context.Context, log *slog.Logger, p pair) catalog.PairOutcome {
	outcome := catalog.PairOutcome{Store: p.store, Query: p.query}
	log = log.With("store", p.store, "query", p.query)
	start := o.deps.Now()
	if o.deps.Metrics != nil {
		o.deps.Metrics.ActivePairs.Inc()
		defer o.deps.Metrics.ActivePairs.Dec()
		defer o.deps.Metrics.PairDuration.Since(start)
	}

	throttle := o.throttleFor(p.store)
	breaker := o.breakerFor(p.store)
	pager := p.adapter.Search(ctx, p.query, o.opts.MaxPages)
	itemStage := o.itemStage(p.adapter, p.store)

	for {
		if !breaker.Allow() {
			o.failPair(&outcome, log, resilience.ErrCircuitOpen)
			return outcome
		}
		if err := throttle.Wait(ctx); err != nil {
			o.failPair(&outcome, log, err)
			return outcome
		}

		records, done, fetchErr := o.fetchPage(ctx, pager)
		breaker.Record(hardOnly(fetchErr))
		if fetchErr != nil {
			o.failPair(&outcome, log, fetchErr)
			return outcome
		}

		outcome.ItemsFound += len(records)
		for _, rec := range records {
			switch r := itemStage(ctx, rec); {
			case r.IsOk():
				saved, _ := r.Unwrap()
				if saved {
					outcome.Saved++
				} else {
					outcome.Skipped++
				}
			default:
				_, err := r.Unwrap()
				if errors.Is(err, catalog.ErrBadSchema) {
					log.Warn("item skipped", "error", err)
					outcome.Skipped++
					o.countSkip(p.store)
				} else {
					log.Error("item failed", "error", err)
					outcome.Errors++
				}
			}
		}
		if done {
			break
		}
	}

	log.Info("pair done",
		"found", outcome.ItemsFound,
		"saved", outcome.Saved,
		"skipped", outcome.Skipped,
		"errors", outcome.Errors,
	)
	return outcome
}

func (o *Orchestrator) failPair(outcome *catalog.PairOutcome, log *slog.Logger, err error) {
	outcome.Err = err.Error()
	log.Error("pair failed", "error", err)
	if o.deps.Metrics != nil {
		o.deps.Metrics.PairErrors(outcome.Store).Inc()
	}
}

func (o *Orchestrator) countSkip(store string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ItemsSkipped(store).Inc()
	}
}

// fetchPage drives one Next call through the retry state machine.
func (o *Orchestrator) fetchPage(ctx context.Context, pager scrape.Pager) ([]scrape.RawRecord, bool, error) {
	type page struct {
		records []scrape.RawRecord
		done    bool
	}
	v, out := resilience.Execute(ctx, o.opts.Retry, func(ctx context.Context) (page, error) {
		records, done, err := pager.Next(ctx)
		return page{records: records, done: done}, err
	})
	if out.State != resilience.StateSucceeded {
		return nil, false, fmt.Errorf("page fetch %s after %d attempts: %w", out.State, out.Attempts, out.Err)
	}
	return v.records, v.done, nil
}

// hardOnly reduces an error to what the breaker should count: hard
// blocks. Transient noise and schema trouble must not trip the circuit.
func hardOnly(err error) error {
	if err != nil && errors.Is(err, catalog.ErrHardBlock) {
		return err
	}
	return nil
}

// normalized is the pipeline payload between normalize and persist.
type normalized struct {
	product catalog.Product
	obs     catalog.PriceObservation
}

// itemStage builds the traced extract -> normalize -> persist pipeline
// for one store. It yields true when an observation was appended and
// false when the price was unchanged.
func (o *Orchestrator) itemStage(adapter scrape.Adapter, store string) fn.Stage[scrape.RawRecord, bool] {
	extract := fn.TracedStage("extract", func(_ context.Context, rec scrape.RawRecord) fn.Result[normalized] {
		quote, err := adapter.ExtractPrice(rec)
		if err != nil {
			return fn.Err[normalized](err)
		}
		product, obs, err := o.deps.Norm.Record(store, rec, quote, o.deps.Now())
		if err != nil {
			return fn.Err[normalized](err)
		}
		return fn.Ok(normalized{product: product, obs: obs})
	})

	persist := fn.TracedStage("persist", func(ctx context.Context, n normalized) fn.Result[bool] {
		saved, err := o.persist(ctx, n)
		if err != nil {
			return fn.Err[bool](err)
		}
		return fn.Ok(saved)
	})

	return fn.Then(extract, persist)
}

// persist upserts the product and appends the observation under the
// product's keyed lock. Unchanged prices skip the append.
func (o *Orchestrator) persist(ctx context.Context, n normalized) (bool, error) {
	key := n.product.Key().String()
	o.locks.Lock(key)
	defer o.locks.Unlock(key)

	id, err := o.deps.Store.UpsertProduct(ctx, n.product)
	if err != nil {
		return false, fmt.Errorf("upserting %s: %w", key, err)
	}
	n.obs.ProductID = id

	if last, ok, err := o.deps.Store.LatestObservation(ctx, id); err != nil {
		return false, fmt.Errorf("loading latest observation for %s: %w", key, err)
	} else if ok && unchanged(last, n.obs) {
		return false, nil
	}

	if err := o.deps.Store.AppendObservation(ctx, n.obs); err != nil {
		return false, fmt.Errorf("appending observation for %s: %w", key, err)
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.ItemsSaved(n.product.Store).Inc()
	}
	if err := o.deps.Bus.PublishObservation(ctx, events.ObservationEvent{
		Product:     n.product.Key(),
		Observation: n.obs,
	}); err != nil {
		o.deps.Log.Warn("publishing observation failed", "product", key, "error", err)
	}
	return true, nil
}

// unchanged reports whether the new observation moved less than the
// noise threshold relative to the last one.
func unchanged(last, next catalog.PriceObservation) bool {
	if last.Effective <= 0 {
		return false
	}
	if last.Listed != next.Listed {
		return false
	}
	move := math.Abs(float64(next.Effective-last.Effective)) / float64(last.Effective)
	return move < unchangedThreshold
}

func (o *Orchestrator) throttleFor(store string) *resilience.Throttle {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.throttles[store]
	if !ok {
		t = resilience.NewThrottle(o.opts.Throttle)
		o.throttles[store] = t
	}
	return t
}

func (o *Orchestrator) breakerFor(store string) *resilience.Breaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.breakers[store]
	if !ok {
		b = resilience.NewBreaker(o.opts.Breaker)
		o.breakers[store] = b
	}
	return b
}
