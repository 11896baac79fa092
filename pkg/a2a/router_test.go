package a2a

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHealthy(t *testing.T, r *Registry, h *HealthMonitor, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := r.Register(AgentRecord{AgentID: id, Capabilities: []Capability{{Name: "cmd", Score: 1}}})
		require.NoError(t, err)
		h.ReportSuccess(id)
		h.ReportSuccess(id)
	}
}

func TestRouter_NoEligibleAgentWhenNoneMatch(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{})
	router := NewRouter(r, h, RouterConfig{})

	_, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
	require.Error(t, err)
}

func TestRouter_RoundRobinCyclesEligibleSet(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{})
	seedHealthy(t, r, h, "a1", "a2")
	router := NewRouter(r, h, RouterConfig{Strategy: StrategyRoundRobin, RoutingCacheTTL: -1})

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		rec, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
		require.NoError(t, err)
		seen[rec.AgentID] = true
	}
	assert.True(t, seen["a1"])
	assert.True(t, seen["a2"])
}

func TestRouter_LeastConnectionsPrefersIdleAgent(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{})
	seedHealthy(t, r, h, "a1", "a2")
	router := NewRouter(r, h, RouterConfig{Strategy: StrategyLeastConnections, RoutingCacheTTL: -1})

	rec1, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
	require.NoError(t, err)
	router.IncrementConnections(rec1)

	rec2, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
	require.NoError(t, err)
	assert.NotEqual(t, rec1.AgentID, rec2.AgentID)
}

func TestRouter_UnhealthyExcludedUnlessDegradedFallback(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{FailureThreshold: 1})
	_, err := r.Register(AgentRecord{AgentID: "a1", Capabilities: []Capability{{Name: "cmd"}}})
	require.NoError(t, err)
	h.ReportFailure("a1")

	router := NewRouter(r, h, RouterConfig{RoutingCacheTTL: -1})

	_, err = router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
	require.Error(t, err)

	rec, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}, AllowDegradedFallback: true})
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.AgentID)
}

func TestRouter_WeightedRoundRobinFavorsLowerLatencyAgent(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{})
	seedHealthy(t, r, h, "fast", "slow")
	r.RecordLatency("fast", 10*time.Millisecond)
	r.RecordLatency("slow", 200*time.Millisecond)

	router := NewRouter(r, h, RouterConfig{
		Strategy:        StrategyWeightedRoundRobin,
		RoutingCacheTTL: -1,
		Rand:            rand.New(rand.NewSource(42)),
	})

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		rec, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
		require.NoError(t, err)
		counts[rec.AgentID]++
	}
	assert.Greater(t, counts["fast"], counts["slow"])
}

func TestRouter_CapabilityScoringPrefersHigherScore(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{})
	_, err := r.Register(AgentRecord{AgentID: "weak", Capabilities: []Capability{{Name: "cmd", Score: 0.3}}})
	require.NoError(t, err)
	_, err = r.Register(AgentRecord{AgentID: "strong", Capabilities: []Capability{{Name: "cmd", Score: 0.9}}})
	require.NoError(t, err)
	h.ReportSuccess("weak")
	h.ReportSuccess("weak")
	h.ReportSuccess("strong")
	h.ReportSuccess("strong")

	router := NewRouter(r, h, RouterConfig{Strategy: StrategyCapabilityScoring, RoutingCacheTTL: -1})

	rec, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
	require.NoError(t, err)
	assert.Equal(t, "strong", rec.AgentID)
}

func TestRouter_MinCapabilityScoreExcludesWeakMatch(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{})
	_, err := r.Register(AgentRecord{AgentID: "weak", Capabilities: []Capability{{Name: "cmd", Score: 0.2}}})
	require.NoError(t, err)
	h.ReportSuccess("weak")
	h.ReportSuccess("weak")

	router := NewRouter(r, h, RouterConfig{RoutingCacheTTL: -1, MinCapabilityScore: 0.5})

	_, err = router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}})
	require.Error(t, err)
}

func TestRouter_StickyRoutingPinsUntilUnhealthy(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	h := NewHealthMonitor(HealthConfig{})
	seedHealthy(t, r, h, "a1", "a2")
	router := NewRouter(r, h, RouterConfig{
		Strategy:            StrategyRandom,
		EnableStickyRouting: true,
		RoutingCacheTTL:     -1,
		Rand:                rand.New(rand.NewSource(1)),
	})

	first, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}, AffinityToken: "client-1"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		rec, err := router.Route(CapabilityQuery{RequiredCapabilities: []string{"cmd"}, AffinityToken: "client-1"})
		require.NoError(t, err)
		assert.Equal(t, first.AgentID, rec.AgentID)
	}
}
