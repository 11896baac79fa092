package a2a

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jocax/qollective-sub002/internal/logging"
	"github.com/jocax/qollective-sub002/pkg/qconst"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// RegistryConfig configures rate limiting and capacity for the Registry.
type RegistryConfig struct {
	MaxAgents               int
	MaxCapabilitiesPerAgent int
	// PerAgentRegistrationRate bounds how often a single agent_id may
	// re-register per second; GlobalRegistrationRate bounds the registry
	// as a whole (spec.md §4.6 "rejects if ... the per-agent or global
	// registration rate-window is exceeded").
	PerAgentRegistrationRate rate.Limit
	GlobalRegistrationRate   rate.Limit
	DefaultTTL               time.Duration
	EventBuffer              int
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.MaxCapabilitiesPerAgent == 0 {
		c.MaxCapabilitiesPerAgent = qconst.MaxCapabilitiesPerAgent
	}
	if c.PerAgentRegistrationRate == 0 {
		c.PerAgentRegistrationRate = 1 // 1/s
	}
	if c.GlobalRegistrationRate == 0 {
		c.GlobalRegistrationRate = 100 // 100/s
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = qconst.DefaultAgentTTL
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 256
	}
	return c
}

// Registry is the in-memory agent record store with TTL, capability
// indexing, and rate-limited registration (spec.md §4.6).
type Registry struct {
	cfg RegistryConfig

	mu            sync.RWMutex
	agents        map[string]*AgentRecord
	capabilityIdx map[string]map[string]struct{} // capability name -> set<agent_id>
	perAgentLimit map[string]*rate.Limiter

	globalLimiter *rate.Limiter
	events        chan Event
}

// NewRegistry constructs an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		cfg:           cfg,
		agents:        make(map[string]*AgentRecord),
		capabilityIdx: make(map[string]map[string]struct{}),
		perAgentLimit: make(map[string]*rate.Limiter),
		globalLimiter: rate.NewLimiter(cfg.GlobalRegistrationRate, int(cfg.GlobalRegistrationRate)+1),
		events:        make(chan Event, cfg.EventBuffer),
	}
}

// Events returns the registry's sequenced event log. A Registered event
// for agent A is queued before Register() returns, so any subsequent
// Discover() call observes A (spec.md §4.6 invariant, §5 ordering). Events
// are sent without blocking: when the buffer (EventBuffer) is full, the
// event is dropped.
func (r *Registry) Events() <-chan Event { return r.events }

func (r *Registry) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}

// Register admits a new agent record, rejecting empty IDs, capability
// overflow, and rate-limit violations (spec.md §4.6). Returns the
// server-granted TTL.
func (r *Registry) Register(rec AgentRecord) (time.Duration, error) {
	if rec.AgentID == "" {
		return 0, qerrors.Validation("agent_id must not be empty", nil)
	}
	if len(rec.Capabilities) > r.cfg.MaxCapabilitiesPerAgent {
		return 0, qerrors.Validation("capabilities exceed max_capabilities_per_agent", nil)
	}
	if !r.globalLimiter.Allow() {
		return 0, qerrors.RateLimited("global agent registration rate exceeded")
	}

	r.mu.Lock()
	if _, exists := r.agents[rec.AgentID]; !exists && r.cfg.MaxAgents > 0 && len(r.agents) >= r.cfg.MaxAgents {
		r.mu.Unlock()
		return 0, qerrors.Validation("registry at max_agents capacity", nil)
	}
	limiter, ok := r.perAgentLimit[rec.AgentID]
	if !ok {
		limiter = rate.NewLimiter(r.cfg.PerAgentRegistrationRate, int(r.cfg.PerAgentRegistrationRate)+1)
		r.perAgentLimit[rec.AgentID] = limiter
	}
	if !limiter.Allow() {
		r.mu.Unlock()
		return 0, qerrors.RateLimited("per-agent registration rate exceeded for " + rec.AgentID)
	}

	if rec.TTL <= 0 {
		rec.TTL = r.cfg.DefaultTTL
	}
	if rec.LastHeartbeat.IsZero() {
		rec.LastHeartbeat = time.Now()
	}
	if rec.Health == "" {
		rec.Health = HealthUnknown
	}

	stored := rec.clone()
	r.removeFromIndexLocked(stored.AgentID)
	r.agents[stored.AgentID] = stored
	r.addToIndexLocked(stored)
	r.mu.Unlock()

	r.emit(Event{Kind: EventRegistered, AgentID: stored.AgentID, At: time.Now()})
	return stored.TTL, nil
}

// Deregister removes an agent and its index entries. Idempotent.
func (r *Registry) Deregister(agentID string) {
	r.mu.Lock()
	_, existed := r.agents[agentID]
	delete(r.agents, agentID)
	r.removeFromIndexLocked(agentID)
	r.mu.Unlock()

	if existed {
		r.emit(Event{Kind: EventDeregistered, AgentID: agentID, At: time.Now()})
	}
}

// Heartbeat updates an agent's liveness and bumps its TTL window. A
// heartbeat for an unknown agent_id is a logged no-op, never an error
// (spec.md §4.6).
func (r *Registry) Heartbeat(agentID string, health Health) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentID]
	if !ok {
		logging.Named("a2a.registry").Info("heartbeat for unknown agent ignored", "agent_id", agentID)
		return false
	}
	rec.LastHeartbeat = time.Now()
	if health != "" {
		rec.Health = health
	}
	return true
}

// RecordLatency folds one observed round-trip duration into the stored
// agent's smoothed latency estimate, feeding the router's weighted-round-
// robin strategy (spec.md §4.7). A sample for an unknown agent_id is a
// no-op.
func (r *Registry) RecordLatency(agentID string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.agents[agentID]; ok {
		rec.RecordLatency(d)
	}
}

// IncrementConnections/DecrementConnections track in-flight dispatches on
// the stored record itself (not a caller's clone), so the least-connections
// strategy's next Discover/Get call observes the update (spec.md §4.7). A
// call for an unknown agent_id is a no-op.
func (r *Registry) IncrementConnections(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.agents[agentID]; ok {
		rec.connections++
	}
}

func (r *Registry) DecrementConnections(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.agents[agentID]; ok && rec.connections > 0 {
		rec.connections--
	}
}

// Get retrieves a copy of an agent's record.
func (r *Registry) Get(agentID string) (*AgentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Discover returns agents matching the query: required capabilities must
// be a subset of the agent's capabilities, preferred capabilities are used
// for ranking, exclude_agents are filtered out, and expired agents are
// never returned (spec.md §4.6, §8).
func (r *Registry) Discover(q CapabilityQuery) []*AgentRecord {
	excluded := make(map[string]struct{}, len(q.ExcludeAgents))
	for _, id := range q.ExcludeAgents {
		excluded[id] = struct{}{}
	}

	now := time.Now()
	r.mu.RLock()
	candidates := make([]*AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		if _, skip := excluded[rec.AgentID]; skip {
			continue
		}
		if rec.Expired(now) {
			continue
		}
		if !hasAllCapabilities(rec, q.RequiredCapabilities) {
			continue
		}
		candidates = append(candidates, rec.clone())
	}
	r.mu.RUnlock()

	scoreOf := func(rec *AgentRecord) float64 {
		var total float64
		for _, name := range q.RequiredCapabilities {
			if cap, ok := rec.HasCapability(name); ok {
				total += cap.Score
			}
		}
		for _, name := range q.PreferredCapabilities {
			if cap, ok := rec.HasCapability(name); ok {
				total += cap.Score
			}
		}
		return total
	}

	sortByScoreDesc(candidates, scoreOf)

	if q.MaxResults > 0 && len(candidates) > q.MaxResults {
		candidates = candidates[:q.MaxResults]
	}
	return candidates
}

// Cleanup sweeps expired records; any record whose last_heartbeat+ttl has
// lapsed is removed (spec.md §4.6).
func (r *Registry) Cleanup() int {
	now := time.Now()
	var removed []string

	r.mu.Lock()
	for id, rec := range r.agents {
		if rec.Expired(now) {
			removed = append(removed, id)
			delete(r.agents, id)
			r.removeFromIndexLocked(id)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		r.emit(Event{Kind: EventDeregistered, AgentID: id, At: now})
	}
	return len(removed)
}

// CapabilityIndex exposes the agent IDs indexed under a capability name,
// for invariant testing (spec.md §8 "capability_index[c] contains A iff
// A's record exists").
func (r *Registry) CapabilityIndex(capability string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.capabilityIdx[capability]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (r *Registry) addToIndexLocked(rec *AgentRecord) {
	for _, cap := range rec.Capabilities {
		set, ok := r.capabilityIdx[cap.Name]
		if !ok {
			set = make(map[string]struct{})
			r.capabilityIdx[cap.Name] = set
		}
		set[rec.AgentID] = struct{}{}
	}
}

func (r *Registry) removeFromIndexLocked(agentID string) {
	for cap, set := range r.capabilityIdx {
		delete(set, agentID)
		if len(set) == 0 {
			delete(r.capabilityIdx, cap)
		}
	}
}

func hasAllCapabilities(rec *AgentRecord, required []string) bool {
	for _, name := range required {
		if _, ok := rec.HasCapability(name); !ok {
			return false
		}
	}
	return true
}

func sortByScoreDesc(recs []*AgentRecord, score func(*AgentRecord) float64) {
	// Insertion sort: registries are small (bounded by max_agents) and
	// this keeps ties in original (map-iteration, already arbitrary) order
	// stable enough for the ranking law in spec.md §8 to hold.
	for i := 1; i < len(recs); i++ {
		j := i
		for j > 0 && score(recs[j-1]) < score(recs[j]) {
			recs[j-1], recs[j] = recs[j], recs[j-1]
			j--
		}
	}
}
