package supervisor

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSnapshot is the plain-struct view of a single endpoint's
// connection health (spec.md §4.5 "Metrics").
type MetricsSnapshot struct {
	Attempts            uint64
	Successes           uint64
	Failures            uint64
	Reconnections       uint64
	CurrentConnDuration time.Duration
	StateChanges        uint64
}

// Metrics tracks the counters backing MetricsSnapshot and doubles as a
// prometheus.Collector so the same data can be scraped without adding new
// semantics (SPEC_FULL.md §7).
type Metrics struct {
	endpoint string

	attempts      atomic.Uint64
	successes     atomic.Uint64
	failures      atomic.Uint64
	reconnections atomic.Uint64
	stateChanges  atomic.Uint64
	connectedAt   atomic.Int64 // unix nanos; 0 when not connected
}

// NewMetrics constructs a Metrics tracker for one endpoint.
func NewMetrics(endpoint string) *Metrics {
	return &Metrics{endpoint: endpoint}
}

func (m *Metrics) RecordAttempt()      { m.attempts.Add(1) }
func (m *Metrics) RecordSuccess()      { m.successes.Add(1); m.connectedAt.Store(time.Now().UnixNano()) }
func (m *Metrics) RecordFailure()      { m.failures.Add(1) }
func (m *Metrics) RecordReconnection() { m.reconnections.Add(1) }
func (m *Metrics) RecordStateChange()  { m.stateChanges.Add(1) }
func (m *Metrics) RecordDisconnected() { m.connectedAt.Store(0) }

// Snapshot returns the current metrics as a plain struct.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var dur time.Duration
	if at := m.connectedAt.Load(); at != 0 {
		dur = time.Since(time.Unix(0, at))
	}
	return MetricsSnapshot{
		Attempts:            m.attempts.Load(),
		Successes:           m.successes.Load(),
		Failures:            m.failures.Load(),
		Reconnections:       m.reconnections.Load(),
		CurrentConnDuration: dur,
		StateChanges:        m.stateChanges.Load(),
	}
}

var (
	attemptsDesc      = prometheus.NewDesc("qollective_supervisor_attempts_total", "Dispatch attempts per endpoint.", []string{"endpoint"}, nil)
	successesDesc     = prometheus.NewDesc("qollective_supervisor_successes_total", "Successful dispatches per endpoint.", []string{"endpoint"}, nil)
	failuresDesc      = prometheus.NewDesc("qollective_supervisor_failures_total", "Failed dispatches per endpoint.", []string{"endpoint"}, nil)
	reconnectsDesc    = prometheus.NewDesc("qollective_supervisor_reconnections_total", "Reconnection attempts per endpoint.", []string{"endpoint"}, nil)
	stateChangesDesc  = prometheus.NewDesc("qollective_supervisor_state_changes_total", "Circuit-breaker state changes per endpoint.", []string{"endpoint"}, nil)
	connDurationDesc  = prometheus.NewDesc("qollective_supervisor_connection_duration_seconds", "Duration of the current connection.", []string{"endpoint"}, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- attemptsDesc
	ch <- successesDesc
	ch <- failuresDesc
	ch <- reconnectsDesc
	ch <- stateChangesDesc
	ch <- connDurationDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	snap := m.Snapshot()
	ch <- prometheus.MustNewConstMetric(attemptsDesc, prometheus.CounterValue, float64(snap.Attempts), m.endpoint)
	ch <- prometheus.MustNewConstMetric(successesDesc, prometheus.CounterValue, float64(snap.Successes), m.endpoint)
	ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(snap.Failures), m.endpoint)
	ch <- prometheus.MustNewConstMetric(reconnectsDesc, prometheus.CounterValue, float64(snap.Reconnections), m.endpoint)
	ch <- prometheus.MustNewConstMetric(stateChangesDesc, prometheus.CounterValue, float64(snap.StateChanges), m.endpoint)
	ch <- prometheus.MustNewConstMetric(connDurationDesc, prometheus.GaugeValue, snap.CurrentConnDuration.Seconds(), m.endpoint)
}
