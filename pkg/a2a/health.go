package a2a

import (
	"sync"
	"time"

	"github.com/jocax/qollective-sub002/pkg/supervisor"
)

// HealthConfig configures the HealthMonitor's state-transition thresholds
// (spec.md §4.8).
type HealthConfig struct {
	FailureThreshold  uint32
	RecoveryThreshold uint32
	CheckInterval     time.Duration
}

func (c HealthConfig) withDefaults() HealthConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.RecoveryThreshold == 0 {
		c.RecoveryThreshold = 2
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = 10 * time.Second
	}
	return c
}

type agentHealthState struct {
	state               Health
	consecutiveSuccess  uint32
	consecutiveFailure  uint32
	breaker             *supervisor.CircuitBreaker
}

// HealthMonitor maintains a rolling heartbeat-outcome window per agent and
// drives the health state machine in spec.md §4.8.
type HealthMonitor struct {
	cfg HealthConfig

	mu    sync.RWMutex
	state map[string]*agentHealthState
}

// NewHealthMonitor constructs an empty HealthMonitor.
func NewHealthMonitor(cfg HealthConfig) *HealthMonitor {
	return &HealthMonitor{cfg: cfg.withDefaults(), state: make(map[string]*agentHealthState)}
}

func (m *HealthMonitor) entry(agentID string) *agentHealthState {
	st, ok := m.state[agentID]
	if !ok {
		st = &agentHealthState{state: HealthUnknown}
		m.state[agentID] = st
	}
	return st
}

// AttachBreaker wires a per-agent circuit breaker so repeated dispatch
// failures short-circuit before reaching the health monitor (spec.md
// §4.8). Traffic is refused if either the breaker is open or the agent is
// unhealthy; clearing requires both to recover (SPEC_FULL.md §9, resolving
// the open question in spec.md §9).
func (m *HealthMonitor) AttachBreaker(agentID string, breaker *supervisor.CircuitBreaker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(agentID).breaker = breaker
}

// ReportSuccess records a successful heartbeat/dispatch for agentID.
func (m *HealthMonitor) ReportSuccess(agentID string) Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.entry(agentID)
	st.consecutiveFailure = 0
	st.consecutiveSuccess++

	switch st.state {
	case HealthUnknown, HealthUnhealthy:
		if st.consecutiveSuccess >= m.cfg.RecoveryThreshold {
			st.state = HealthHealthy
		}
	case HealthDegraded:
		// Degraded is reserved for self-report; a plain success does not
		// clear it on its own.
	default:
		st.state = HealthHealthy
	}
	return st.state
}

// ReportFailure records a failed heartbeat/dispatch for agentID.
func (m *HealthMonitor) ReportFailure(agentID string) Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.entry(agentID)
	st.consecutiveSuccess = 0
	st.consecutiveFailure++

	if st.consecutiveFailure >= m.cfg.FailureThreshold {
		st.state = HealthUnhealthy
	}
	return st.state
}

// ReportSelfStatus records an agent's self-reported health payload.
// Degraded is only ever set this way (spec.md §4.8); a self-report of
// Healthy is the only path that clears a Degraded state directly, since
// ReportSuccess deliberately leaves Degraded alone.
func (m *HealthMonitor) ReportSelfStatus(agentID string, selfReported Health) Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.entry(agentID)
	switch selfReported {
	case HealthDegraded:
		st.state = HealthDegraded
	case HealthHealthy:
		if st.state == HealthDegraded {
			st.consecutiveSuccess = 0
			st.consecutiveFailure = 0
			st.state = HealthHealthy
		}
	}
	return st.state
}

// State returns the agent's current health state.
func (m *HealthMonitor) State(agentID string) Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.state[agentID]
	if !ok {
		return HealthUnknown
	}
	return st.state
}

// IsHealthy reports whether the agent may receive undegraded traffic:
// its health state is healthy AND (if attached) its circuit breaker is
// not open (closed or half-open). Both must recover for traffic to
// resume (SPEC_FULL.md §9).
func (m *HealthMonitor) IsHealthy(agentID string) bool {
	m.mu.RLock()
	st, ok := m.state[agentID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if st.state != HealthHealthy {
		return false
	}
	if st.breaker != nil && st.breaker.State() == supervisor.StateOpen {
		return false
	}
	return true
}

// Remove forgets an agent's health history, called on deregistration.
func (m *HealthMonitor) Remove(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, agentID)
}
