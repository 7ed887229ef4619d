package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker's position in its open/closed cycle.
type State int

const (
	StateClosed   State = iota // requests flow normally
	StateOpen                  // tripped, everything rejected
	StateHalfOpen              // cooled down, one probe allowed
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned while a store's breaker is tripped.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a per-store circuit breaker.
type BreakerOpts struct {
	// FailThreshold is the consecutive-failure count that trips the
	// breaker open.
	FailThreshold int
	// Cooldown is how long the breaker stays open before a probe.
	Cooldown time.Duration
}

// DefaultBreakerOpts suits a store that has started serving blocks.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 3,
	Cooldown:      5 * time.Minute,
}

// Breaker stops a run from hammering a store once it starts hard-failing.
// One breaker per store, shared by all workers.
type Breaker struct {
	mu        sync.Mutex
	opts      BreakerOpts
	state     State
	streak    int // consecutive failures while closed
	trippedAt time.Time
	probing   bool
	now       func() time.Time // for testing
}

// NewBreaker creates a breaker with the given options.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold < 1 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultBreakerOpts.Cooldown
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current state, transitioning open to half-open once
// the cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advance()
}

// advance applies the time-driven open -> half-open transition. Callers
// hold the mutex.
func (b *Breaker) advance() State {
	if b.state == StateOpen && b.now().Sub(b.trippedAt) >= b.opts.Cooldown {
		b.state = StateHalfOpen
		b.probing = false
	}
	return b.state
}

// Allow reports whether a request may proceed. In half-open state only
// the first caller gets through as the probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.advance() {
	case StateClosed:
		return true
	case StateHalfOpen:
		allowed := !b.probing
		b.probing = true
		return allowed
	default:
		return false
	}
}

// Record feeds the result of an allowed request back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
		b.streak = 0
		return
	}

	b.streak++
	// A failed probe re-trips immediately, no fresh streak required.
	if b.state == StateHalfOpen || b.streak >= b.opts.FailThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.trippedAt = b.now()
	b.streak = 0
	b.probing = false
}
