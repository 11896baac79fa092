// Package a2a implements the agent-to-agent subsystem: the agent
// registry, capability router, and health monitor that turn bare message
// delivery into reliable agent coordination (spec.md §4.6–§4.8).
package a2a

import "time"

// Health enumerates an agent's liveness state (spec.md §3.4, §4.8).
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
	HealthUnknown   Health = "unknown"
)

// Capability is a named, versioned skill an agent advertises.
type Capability struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Score   float64 `json:"score"`
}

// AgentRecord describes one registered agent (spec.md §3.4).
type AgentRecord struct {
	AgentID       string            `json:"agent_id"`
	Name          string            `json:"name"`
	Endpoint      string            `json:"endpoint,omitempty"`
	Capabilities  []Capability      `json:"capabilities"`
	Health        Health            `json:"health"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
	TTL           time.Duration     `json:"ttl"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	// connections tracks in-flight dispatches for the least-connections
	// routing strategy (spec.md §4.7).
	connections int64

	// latencyEWMA is an exponentially weighted moving average of recent
	// response latency in nanoseconds, consumed by the weighted-round-robin
	// strategy's inverse-latency weighting (spec.md §4.7); zero means no
	// sample has been recorded yet.
	latencyEWMA float64
}

// latencyEWMAAlpha weights each new sample against the running average.
const latencyEWMAAlpha = 0.2

// RecordLatency folds one observed round-trip duration into the agent's
// smoothed latency estimate. Callers instrument this the way they already
// call IncrementConnections/DecrementConnections around a dispatch.
func (a *AgentRecord) RecordLatency(d time.Duration) {
	sample := float64(d)
	if a.latencyEWMA == 0 {
		a.latencyEWMA = sample
		return
	}
	a.latencyEWMA = latencyEWMAAlpha*sample + (1-latencyEWMAAlpha)*a.latencyEWMA
}

// Latency returns the agent's current smoothed latency estimate, or zero
// if no sample has been recorded yet.
func (a *AgentRecord) Latency() time.Duration { return time.Duration(a.latencyEWMA) }

// Expired reports whether the agent's heartbeat lease has lapsed
// (spec.md §4.6 cleanup, §8 "an agent whose last_heartbeat + ttl expires
// during a discover call is excluded from the result").
func (a *AgentRecord) Expired(now time.Time) bool {
	if a.TTL <= 0 {
		return false
	}
	return a.LastHeartbeat.Add(a.TTL).Before(now)
}

// HasCapability reports whether the agent advertises the named capability,
// regardless of version.
func (a *AgentRecord) HasCapability(name string) (Capability, bool) {
	for _, c := range a.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// clone returns a value copy safe to hand out of the registry without
// aliasing the stored record's slices/maps.
func (a *AgentRecord) clone() *AgentRecord {
	out := *a
	if a.Capabilities != nil {
		out.Capabilities = append([]Capability(nil), a.Capabilities...)
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// CapabilityQuery describes a discovery/routing request (spec.md §4.6,
// §4.7).
type CapabilityQuery struct {
	RequiredCapabilities  []string
	PreferredCapabilities []string
	ExcludeAgents         []string
	MaxResults            int
	AffinityToken         string
	AllowDegradedFallback bool
}

// EventKind enumerates registry lifecycle events (spec.md §4.6).
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventDeregistered EventKind = "deregistered"
)

// Event is one registry lifecycle notification.
type Event struct {
	Kind    EventKind
	AgentID string
	At      time.Time
}
