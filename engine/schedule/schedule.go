// Package schedule owns the long-lived scraping loop: a cycle per
// configured interval, an explicit overlap guard, and the retention
// purge that runs after each cycle.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrCycleInProgress is returned by Trigger while a cycle is running.
var ErrCycleInProgress = errors.New("a scraping cycle is already in progress")

// Cycle is one unit of scheduled work.
type Cycle func(ctx context.Context) error

// Scheduler runs cycles at a fixed interval. A cycle that fails is
// logged and the loop continues; only context cancellation stops it.
type Scheduler struct {
	interval  time.Duration
	cycle     Cycle
	retention Cycle
	log       *slog.Logger

	busy atomic.Bool
}

// New builds a scheduler. retention may be nil. A nil logger discards.
func New(interval time.Duration, cycle Cycle, retention Cycle, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{interval: interval, cycle: cycle, retention: retention, log: log}
}

// Start runs one cycle immediately, then one per interval, until ctx is
// cancelled. It returns the context error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info("scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runGuarded(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runGuarded(ctx)
		}
	}
}

// Trigger starts a cycle outside the schedule, for manual kicks. It
// refuses to overlap a running cycle.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer s.busy.Store(false)
	return s.runCycle(ctx)
}

// runGuarded is the scheduled path: an overlapping tick is skipped, a
// failed cycle is logged, the loop always survives.
func (s *Scheduler) runGuarded(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Warn("cycle still running, skipping tick")
		return
	}
	defer s.busy.Store(false)

	if err := s.runCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("cycle failed", "error", err)
	}
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	start := time.Now()
	if err := s.cycle(ctx); err != nil {
		return err
	}
	s.log.Info("cycle finished", "duration", time.Since(start))

	if s.retention != nil {
		if err := s.retention(ctx); err != nil {
			// Retention trouble never fails the cycle.
			s.log.Error("retention purge failed", "error", err)
		}
	}
	return nil
}
