package a2a

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// Strategy selects one load-balancing algorithm (spec.md §4.7).
type Strategy string

const (
	StrategyRoundRobin        Strategy = "round_robin"
	StrategyRandom            Strategy = "random"
	StrategyLeastConnections  Strategy = "least_connections"
	StrategyWeightedRoundRobin Strategy = "weighted_round_robin"
	StrategyCapabilityScoring Strategy = "capability_scoring"
)

// RouterConfig configures the Router.
type RouterConfig struct {
	Strategy            Strategy
	EnableStickyRouting  bool
	RoutingCacheTTL      time.Duration
	MaxRoutingCacheSize  int
	MinCapabilityScore   float64
	Rand                 *rand.Rand
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.Strategy == "" {
		c.Strategy = StrategyRoundRobin
	}
	if c.RoutingCacheTTL == 0 {
		c.RoutingCacheTTL = 10 * time.Second
	}
	if c.MaxRoutingCacheSize == 0 {
		c.MaxRoutingCacheSize = 1000
	}
	return c
}

type cacheEntry struct {
	agentID   string
	expiresAt time.Time
}

// Router selects a single agent for a capability query, applying the
// configured load-balancing strategy, an optional routing cache, and
// optional sticky routing by client-affinity token (spec.md §4.7).
type Router struct {
	cfg      RouterConfig
	registry *Registry
	health   *HealthMonitor

	mu           sync.Mutex
	rrCounter    map[string]int // capability-set key -> round-robin cursor
	cache        map[string]cacheEntry
	sticky       map[string]string // affinity token -> agent_id
	rng          *rand.Rand
}

// NewRouter constructs a Router bound to a Registry and HealthMonitor.
func NewRouter(registry *Registry, health *HealthMonitor, cfg RouterConfig) *Router {
	cfg = cfg.withDefaults()
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Router{
		cfg:       cfg,
		registry:  registry,
		health:    health,
		rrCounter: make(map[string]int),
		cache:     make(map[string]cacheEntry),
		sticky:    make(map[string]string),
		rng:       rng,
	}
}

// Route selects a single AgentRecord for q, or NoEligibleAgent if none
// qualify (spec.md §4.7).
func (r *Router) Route(q CapabilityQuery) (*AgentRecord, error) {
	if cached, ok := r.lookupCache(q); ok {
		if rec, ok := r.registry.Get(cached); ok && r.eligible(rec, q) {
			return rec, nil
		}
	}

	eligible := r.eligibleSet(q)
	if len(eligible) == 0 {
		return nil, qerrors.NoEligibleAgent(describeQuery(q))
	}

	if r.cfg.EnableStickyRouting && q.AffinityToken != "" {
		if rec, ok := r.stickyPick(q.AffinityToken, eligible); ok {
			r.storeCache(q, rec.AgentID)
			return rec, nil
		}
	}

	var chosen *AgentRecord
	switch r.cfg.Strategy {
	case StrategyRandom:
		chosen = eligible[r.rng.Intn(len(eligible))]
	case StrategyLeastConnections:
		chosen = pickLeastConnections(eligible)
	case StrategyWeightedRoundRobin:
		chosen = r.pickWeightedRoundRobin(eligible)
	case StrategyCapabilityScoring:
		chosen = pickByCapabilityScore(eligible, q)
	default: // StrategyRoundRobin
		chosen = r.pickRoundRobin(q, eligible)
	}

	r.storeCache(q, chosen.AgentID)
	if r.cfg.EnableStickyRouting && q.AffinityToken != "" {
		r.mu.Lock()
		r.sticky[q.AffinityToken] = chosen.AgentID
		r.mu.Unlock()
	}
	return chosen, nil
}

// eligible reports whether rec still qualifies for q: healthy, not
// excluded, not expired. An unhealthy rec never qualifies here; the
// degraded fallback is taken only by eligibleSet, when no healthy agent
// qualifies.
func (r *Router) eligible(rec *AgentRecord, q CapabilityQuery) bool {
	if rec.Expired(time.Now()) {
		return false
	}
	for _, id := range q.ExcludeAgents {
		if id == rec.AgentID {
			return false
		}
	}
	if !hasAllCapabilities(rec, q.RequiredCapabilities) {
		return false
	}
	if !meetsMinCapabilityScore(rec, q.RequiredCapabilities, r.cfg.MinCapabilityScore) {
		return false
	}
	if r.health != nil && !r.health.IsHealthy(rec.AgentID) {
		return false
	}
	return true
}

// meetsMinCapabilityScore reports whether rec's score for every required
// capability is at least minScore (spec.md §4.6 "a per-agent
// capability-match score >= config threshold"). A zero threshold accepts
// everything, matching RouterConfig's zero-value default.
func meetsMinCapabilityScore(rec *AgentRecord, required []string, minScore float64) bool {
	if minScore <= 0 {
		return true
	}
	for _, name := range required {
		cap, ok := rec.HasCapability(name)
		if !ok || cap.Score < minScore {
			return false
		}
	}
	return true
}

func (r *Router) eligibleSet(q CapabilityQuery) []*AgentRecord {
	discovered := r.registry.Discover(CapabilityQuery{
		RequiredCapabilities:  q.RequiredCapabilities,
		PreferredCapabilities: q.PreferredCapabilities,
		ExcludeAgents:         q.ExcludeAgents,
	})

	healthy := make([]*AgentRecord, 0, len(discovered))
	fallback := make([]*AgentRecord, 0, len(discovered))
	for _, rec := range discovered {
		if !meetsMinCapabilityScore(rec, q.RequiredCapabilities, r.cfg.MinCapabilityScore) {
			continue
		}
		if r.health == nil || r.health.IsHealthy(rec.AgentID) {
			healthy = append(healthy, rec)
		} else {
			fallback = append(fallback, rec)
		}
	}
	if len(healthy) > 0 {
		return healthy
	}
	if q.AllowDegradedFallback {
		return fallback
	}
	return nil
}

func (r *Router) stickyPick(token string, eligible []*AgentRecord) (*AgentRecord, bool) {
	r.mu.Lock()
	agentID, ok := r.sticky[token]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	for _, rec := range eligible {
		if rec.AgentID == agentID {
			return rec, true
		}
	}
	return nil, false
}

func (r *Router) pickRoundRobin(q CapabilityQuery, eligible []*AgentRecord) *AgentRecord {
	key := capabilityKey(q)
	ids := make([]string, len(eligible))
	for i, rec := range eligible {
		ids[i] = rec.AgentID
	}
	sort.Strings(ids)

	r.mu.Lock()
	idx := r.rrCounter[key] % len(ids)
	r.rrCounter[key] = idx + 1
	r.mu.Unlock()

	chosenID := ids[idx]
	for _, rec := range eligible {
		if rec.AgentID == chosenID {
			return rec
		}
	}
	return eligible[0]
}

func pickLeastConnections(eligible []*AgentRecord) *AgentRecord {
	best := eligible[0]
	for _, rec := range eligible[1:] {
		if rec.connections < best.connections {
			best = rec
		}
	}
	return best
}

// pickWeightedRoundRobin draws one agent with probability proportional to
// the inverse of its recent response latency (spec.md §4.7): faster agents
// get picked more often, without ever starving a slower one outright.
// Agents with no recorded sample yet get a neutral weight of 1.
func (r *Router) pickWeightedRoundRobin(eligible []*AgentRecord) *AgentRecord {
	weights := make([]float64, len(eligible))
	var total float64
	for i, rec := range eligible {
		w := 1.0
		if lat := rec.Latency(); lat > 0 {
			w = float64(time.Second) / float64(lat)
		}
		weights[i] = w
		total += w
	}

	r.mu.Lock()
	pick := r.rng.Float64() * total
	r.mu.Unlock()

	for i, w := range weights {
		pick -= w
		if pick <= 0 {
			return eligible[i]
		}
	}
	return eligible[len(eligible)-1]
}

func pickByCapabilityScore(eligible []*AgentRecord, q CapabilityQuery) *AgentRecord {
	type scored struct {
		rec   *AgentRecord
		score float64
	}
	scoredList := make([]scored, len(eligible))
	for i, rec := range eligible {
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
		scoredList[i] = scored{rec: rec, score: total}
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score > scoredList[j].score
		}
		// Tie-break by least-connections.
		return scoredList[i].rec.connections < scoredList[j].rec.connections
	})
	return scoredList[0].rec
}

// IncrementConnections/DecrementConnections back the least-connections
// strategy: incremented on dispatch, decremented on response or failure
// (spec.md §4.7). Both write through to the registry's stored record,
// since rec (returned by Route) is a clone that the next Discover/Get
// call would otherwise overwrite with the stale, unincremented value.
func (r *Router) IncrementConnections(rec *AgentRecord) { r.registry.IncrementConnections(rec.AgentID) }
func (r *Router) DecrementConnections(rec *AgentRecord) { r.registry.DecrementConnections(rec.AgentID) }

func capabilityKey(q CapabilityQuery) string {
	joined := strings.Join(q.RequiredCapabilities, ",") + "|" + strings.Join(q.PreferredCapabilities, ",")
	return joined
}

func (r *Router) cacheKey(q CapabilityQuery) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%v|%v|%v|%v|%v|%v",
		q.RequiredCapabilities, q.PreferredCapabilities, q.ExcludeAgents, q.MaxResults, q.AffinityToken, q.AllowDegradedFallback)))
	return hex.EncodeToString(h[:])
}

func (r *Router) lookupCache(q CapabilityQuery) (string, bool) {
	if r.cfg.RoutingCacheTTL <= 0 {
		return "", false
	}
	key := r.cacheKey(q)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.agentID, true
}

func (r *Router) storeCache(q CapabilityQuery, agentID string) {
	if r.cfg.RoutingCacheTTL <= 0 {
		return
	}
	key := r.cacheKey(q)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cache) >= r.cfg.MaxRoutingCacheSize {
		for k := range r.cache {
			delete(r.cache, k)
			break
		}
	}
	r.cache[key] = cacheEntry{agentID: agentID, expiresAt: time.Now().Add(r.cfg.RoutingCacheTTL)}
}

// InvalidateSticky clears a sticky affinity pin, called when the pinned
// agent becomes unhealthy (spec.md §4.7).
func (r *Router) InvalidateSticky(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, id := range r.sticky {
		if id == agentID {
			delete(r.sticky, token)
		}
	}
}

func describeQuery(q CapabilityQuery) string {
	return "required=" + strings.Join(q.RequiredCapabilities, ",") + " preferred=" + strings.Join(q.PreferredCapabilities, ",")
}
