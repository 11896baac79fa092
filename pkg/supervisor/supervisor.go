package supervisor

import (
	"context"
	"time"

	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// Supervisor owns retry and circuit-breaker policy for a single endpoint.
// Exactly one Supervisor exists per endpoint, and its breaker state is
// only ever mutated through it (spec.md §5 "Circuit-breaker state is
// owned by exactly one supervisor per endpoint").
type Supervisor struct {
	endpoint string
	breaker  *CircuitBreaker
	retry    RetryConfig
	metrics  *Metrics
	events   *EventSink

	connected bool
}

// Config bundles the breaker and retry policy for one endpoint.
type Config struct {
	Endpoint string
	Breaker  BreakerConfig
	Retry    RetryConfig
	// EventBuffer sizes the connection-event channel; 0 uses a default.
	EventBuffer int
}

// New constructs a Supervisor for one endpoint.
func New(cfg Config) *Supervisor {
	return &Supervisor{
		endpoint: cfg.Endpoint,
		breaker:  NewCircuitBreaker(cfg.Breaker),
		retry:    cfg.Retry,
		metrics:  NewMetrics(cfg.Endpoint),
		events:   NewEventSink(cfg.EventBuffer),
	}
}

// Events exposes the supervisor's connection-event stream.
func (s *Supervisor) Events() <-chan Event { return s.events.Events() }

// Metrics returns the supervisor's metrics tracker (also a
// prometheus.Collector).
func (s *Supervisor) Metrics() *Metrics { return s.metrics }

// Snapshot returns a plain-struct metrics view.
func (s *Supervisor) Snapshot() MetricsSnapshot { return s.metrics.Snapshot() }

// BreakerState exposes the current circuit-breaker state.
func (s *Supervisor) BreakerState() BreakerState { return s.breaker.State() }

// Run executes fn under this endpoint's circuit breaker and retry policy.
// If the breaker is open, fn is never invoked and CircuitOpen is returned
// immediately (spec.md §8 "after failure_threshold consecutive failures,
// the next send returns CircuitOpen without invoking the transport").
// Every failed attempt counts against the breaker, and retrying stops as
// soon as the breaker opens.
// overallTimeout bounds the entire retry loop (spec.md §4.5 Cancellation).
func (s *Supervisor) Run(ctx context.Context, overallTimeout time.Duration, fn func(ctx context.Context) error) error {
	if !s.breaker.Allow() {
		return qerrors.CircuitOpen(s.endpoint)
	}

	if overallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, overallTimeout)
		defer cancel()
	}

	retryable := func(err error) bool { return qerrors.IsRetryable(err) && s.breaker.State() != StateOpen }

	onEvent := func(attempt uint32, delay time.Duration) {
		s.metrics.RecordReconnection()
		s.events.emit(Event{Kind: EventReconnecting, Endpoint: s.endpoint, Attempt: attempt, Delay: delay, At: time.Now()})
	}

	err := Retry(ctx, s.retry, retryable, func(ctx context.Context, attempt uint32) error {
		s.metrics.RecordAttempt()
		err := fn(ctx)
		if err != nil {
			if changed, newState := s.breaker.RecordFailure(); changed {
				s.metrics.RecordStateChange()
				s.emitBreakerEvent(newState)
			}
		}
		return err
	}, onEvent)

	if err != nil {
		s.metrics.RecordFailure()
		if s.connected {
			s.connected = false
			s.metrics.RecordDisconnected()
			s.events.emit(Event{Kind: EventDisconnected, Endpoint: s.endpoint, At: time.Now()})
		}
		return err
	}

	s.metrics.RecordSuccess()
	changed, newState := s.breaker.RecordSuccess()
	if changed {
		s.metrics.RecordStateChange()
		s.emitBreakerEvent(newState)
	}
	if !s.connected {
		s.connected = true
		s.events.emit(Event{Kind: EventConnected, Endpoint: s.endpoint, At: time.Now()})
	}
	return nil
}

func (s *Supervisor) emitBreakerEvent(state BreakerState) {
	kind := EventCircuitBreakerClosed
	switch state {
	case StateOpen:
		kind = EventCircuitBreakerOpen
	case StateHalfOpen:
		kind = EventCircuitBreakerHalf
	}
	s.events.emit(Event{Kind: kind, Endpoint: s.endpoint, At: time.Now()})
}

// Close releases the supervisor's event channel.
func (s *Supervisor) Close() { s.events.Close() }
