package supervisor

import "time"

// EventKind enumerates the connection-event stream members (spec.md §4.5).
type EventKind string

const (
	EventConnected            EventKind = "connected"
	EventDisconnected         EventKind = "disconnected"
	EventReconnecting         EventKind = "reconnecting"
	EventCircuitBreakerOpen   EventKind = "circuit_breaker_open"
	EventCircuitBreakerHalf   EventKind = "circuit_breaker_half_open"
	EventCircuitBreakerClosed EventKind = "circuit_breaker_closed"
)

// Event is one observable transition on a supervised endpoint.
type Event struct {
	Kind      EventKind
	Endpoint  string
	Attempt   uint32
	Delay     time.Duration
	At        time.Time
}

// EventSink receives supervisor events. The supervisor never blocks
// indefinitely on a slow sink: sends are best-effort on a buffered
// channel, matching the bounded-queue backpressure policy in spec.md §5.
type EventSink struct {
	ch chan Event
}

// NewEventSink creates a sink with the given buffer size.
func NewEventSink(buffer int) *EventSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventSink{ch: make(chan Event, buffer)}
}

// Events returns the read side of the event stream.
func (s *EventSink) Events() <-chan Event { return s.ch }

// emit sends an event, dropping it rather than blocking if the buffer is
// full.
func (s *EventSink) emit(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

// Close releases the event channel. Safe to call once.
func (s *EventSink) Close() { close(s.ch) }
