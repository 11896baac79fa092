// Package supervisor implements the connection supervisor described in
// spec.md §4.5: retry with exponential backoff and jitter, a per-endpoint
// circuit breaker, and an observable connection-event stream.
package supervisor

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit-breaker states (spec.md §4.5).
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerConfig configures a single circuit breaker instance.
type BreakerConfig struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
}

// CircuitBreaker gates calls to a single endpoint based on its recent
// failure history. State transitions are serialized by its own mutex: one
// supervisor per endpoint owns this state exclusively (spec.md §5).
type CircuitBreaker struct {
	cfg BreakerConfig

	mu               sync.Mutex
	state            BreakerState
	consecutiveFails uint32
	openedAt         time.Time
	halfOpenInFlight bool
}

// NewCircuitBreaker constructs a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// State returns the breaker's current state, transitioning open -> half
// open if the recovery timeout has elapsed.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *CircuitBreaker) stateLocked() BreakerState {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
		b.state = StateHalfOpen
		b.halfOpenInFlight = false
	}
	return b.state
}

// Allow reports whether a new call may proceed. In the half-open state
// only a single probe call is allowed at a time; subsequent callers are
// refused until that probe resolves.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default: // StateOpen
		return false
	}
}

// RecordSuccess closes the breaker (from half-open) or resets the failure
// counter (from closed).
func (b *CircuitBreaker) RecordSuccess() (changed bool, newState BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.state
	b.consecutiveFails = 0
	b.halfOpenInFlight = false
	b.state = StateClosed
	return prev != StateClosed, b.state
}

// RecordFailure increments the failure count and opens the breaker if the
// threshold is reached, or re-opens it immediately if the failing probe
// was the half-open trial.
func (b *CircuitBreaker) RecordFailure() (changed bool, newState BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.state
	if b.state == StateHalfOpen {
		b.halfOpenInFlight = false
		b.state = StateOpen
		b.openedAt = time.Now()
		return true, b.state
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
	return prev != b.state, b.state
}
