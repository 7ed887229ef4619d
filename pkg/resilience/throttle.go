// Package resilience provides the per-store request throttle, the retry
// state machine, and a circuit breaker for hard-blocked stores.
package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleOpts configures request pacing for one store.
type ThrottleOpts struct {
	// RequestsPerMinute caps sustained request rate via a token bucket.
	RequestsPerMinute int
	// Delay is the base pause inserted before every request.
	Delay time.Duration
	// JitterFrac randomizes the pause by ±frac to avoid a fixed-interval
	// signature. Defaults to 0.3.
	JitterFrac float64
}

// Throttle paces outbound requests for a single store. One instance is
// shared by every worker that talks to that store; it is safe for
// concurrent use.
type Throttle struct {
	limiter *rate.Limiter
	opts    ThrottleOpts

	mu  sync.Mutex
	rng *rand.Rand

	sleep func(context.Context, time.Duration) error // for testing
}

// NewThrottle creates a throttle from the given options.
func NewThrottle(opts ThrottleOpts) *Throttle {
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 30
	}
	if opts.JitterFrac == 0 {
		opts.JitterFrac = 0.3
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1),
		opts:    opts,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepCtx,
	}
}

// Wait blocks until the caller may issue the next request: one bucket
// token plus the jittered inter-request delay. Returns early with the
// context error on cancellation.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	d := t.jittered(t.opts.Delay)
	if d <= 0 {
		return nil
	}
	return t.sleep(ctx, d)
}

// jittered spreads d uniformly across [d*(1-frac), d*(1+frac)].
func (t *Throttle) jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	t.mu.Lock()
	f := 1 + t.opts.JitterFrac*(2*t.rng.Float64()-1)
	t.mu.Unlock()
	return time.Duration(float64(d) * f)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
