package rtwire

import (
	"sync"
	"time"
)

// CircuitBreakerState is one of the three states of the circuit breaker.
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	Open
	HalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the failure/recovery thresholds of a
// CircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in Closed that
	// trips the breaker to Open.
	FailureThreshold int
	// OpenDuration is how long the breaker stays Open before moving to
	// HalfOpen to probe recovery.
	OpenDuration time.Duration
	// HalfOpenSuccessThreshold is the number of consecutive successes in
	// HalfOpen required to close the breaker.
	HalfOpenSuccessThreshold int
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures, stays
// open for 30s, and requires 1 success in half-open to close.
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	FailureThreshold:         5,
	OpenDuration:             30 * time.Second,
	HalfOpenSuccessThreshold: 1,
}

// CircuitBreaker is a three-state failure guard: Closed allows calls and
// counts consecutive failures; Open rejects calls outright until
// OpenDuration elapses; HalfOpen admits trial calls and closes only on
// HalfOpenSuccessThreshold consecutive successes, reopening immediately on
// any failure. Allow does not limit how many calls it admits while
// HalfOpen: every call that asks is admitted until an outcome is recorded. A success recorded while Closed resets the failure counter;
// a success recorded while Open (a stray late success racing the trip) does
// not by itself close the breaker.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	successes   int
	openedAt    time.Time
}

// NewCircuitBreaker constructs a CircuitBreaker in the Closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: Closed}
}

// Allow reports whether a call may proceed, transitioning Open -> HalfOpen
// if OpenDuration has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.OpenDuration {
			b.state = HalfOpen
			b.successes = 0
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess reports a successful call outcome.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccessThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case Open:
		// A success cannot occur while Open (Allow rejects all calls), but
		// guard against a racing trial call by leaving state untouched.
	}
}

// RecordFailure reports a failed call outcome.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = time.Now()
			b.failures = 0
		}
	case HalfOpen:
		b.state = Open
		b.openedAt = time.Now()
		b.successes = 0
	case Open:
		b.openedAt = time.Now()
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
