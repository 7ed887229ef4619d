package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RequestState tracks one request through the retry state machine.
type RequestState int

const (
	StatePending RequestState = iota
	StateRetrying
	StateSucceeded
	StateFailedTransient // retryable failures exhausted the attempt budget
	StateFailedHard      // non-retryable failure, terminated immediately
)

func (s RequestState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailedTransient:
		return "failed_transient_exhausted"
	case StateFailedHard:
		return "failed_hard"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state machine has finished.
func (s RequestState) Terminal() bool {
	return s == StateSucceeded || s == StateFailedTransient || s == StateFailedHard
}

// RetryPolicy configures the retry state machine.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff: base * 2^attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff sleep.
	MaxDelay time.Duration
	// Jitter randomizes each sleep to 50%-150% of the computed delay.
	Jitter bool
	// Retryable classifies failures. A nil classifier retries everything.
	Retryable func(error) bool

	sleep func(context.Context, time.Duration) error // for testing
}

// DefaultRetryPolicy matches the configured scraping defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	Jitter:      true,
}

// Outcome is the terminal record of one driven request.
type Outcome struct {
	State    RequestState
	Attempts int
	Err      error
}

// Execute drives f through the state machine: pending -> retrying(n) ->
// succeeded | failed-transient-exhausted | failed-hard. Transitions are
// decided by the policy's failure classifier, never by the caller.
func Execute[T any](ctx context.Context, p RetryPolicy, f func(context.Context) (T, error)) (T, Outcome) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}

	out := Outcome{State: StatePending}
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		out.Attempts = attempt + 1

		v, err := f(ctx)
		if err == nil {
			out.State = StateSucceeded
			out.Err = nil
			return v, out
		}
		out.Err = err

		if p.Retryable != nil && !p.Retryable(err) {
			out.State = StateFailedHard
			return zero, out
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		out.State = StateRetrying
		if serr := p.sleep(ctx, p.backoff(attempt)); serr != nil {
			out.State = StateFailedTransient
			out.Err = serr
			return zero, out
		}
	}

	out.State = StateFailedTransient
	return zero, out
}

// backoff computes base * 2^attempt, jittered and capped.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
	}
	return d
}
