package a2a

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jocax/qollective-sub002/pkg/supervisor"
)

func TestHealthMonitor_UnknownToHealthyAfterRecoveryThreshold(t *testing.T) {
	m := NewHealthMonitor(HealthConfig{RecoveryThreshold: 2})
	assert.Equal(t, HealthUnknown, m.State("a1"))
	m.ReportSuccess("a1")
	assert.Equal(t, HealthUnknown, m.State("a1"))
	m.ReportSuccess("a1")
	assert.Equal(t, HealthHealthy, m.State("a1"))
}

func TestHealthMonitor_HealthyToUnhealthyAfterFailureThreshold(t *testing.T) {
	m := NewHealthMonitor(HealthConfig{RecoveryThreshold: 1, FailureThreshold: 2})
	m.ReportSuccess("a1")
	assert.Equal(t, HealthHealthy, m.State("a1"))
	m.ReportFailure("a1")
	assert.Equal(t, HealthHealthy, m.State("a1"))
	m.ReportFailure("a1")
	assert.Equal(t, HealthUnhealthy, m.State("a1"))
}

func TestHealthMonitor_UnhealthyRecoversAfterConsecutiveSuccesses(t *testing.T) {
	m := NewHealthMonitor(HealthConfig{RecoveryThreshold: 2, FailureThreshold: 1})
	m.ReportFailure("a1")
	assert.Equal(t, HealthUnhealthy, m.State("a1"))
	m.ReportSuccess("a1")
	assert.Equal(t, HealthUnhealthy, m.State("a1"))
	m.ReportSuccess("a1")
	assert.Equal(t, HealthHealthy, m.State("a1"))
}

func TestHealthMonitor_DegradedOnlyFromSelfReport(t *testing.T) {
	m := NewHealthMonitor(HealthConfig{RecoveryThreshold: 1})
	m.ReportSuccess("a1")
	m.ReportSelfStatus("a1", HealthDegraded)
	assert.Equal(t, HealthDegraded, m.State("a1"))
}

func TestHealthMonitor_DegradedClearsOnSelfReportedHealthy(t *testing.T) {
	m := NewHealthMonitor(HealthConfig{RecoveryThreshold: 1})
	m.ReportSuccess("a1")
	m.ReportSelfStatus("a1", HealthDegraded)
	assert.Equal(t, HealthDegraded, m.State("a1"))

	// A plain success alone must not clear Degraded.
	m.ReportSuccess("a1")
	assert.Equal(t, HealthDegraded, m.State("a1"))

	m.ReportSelfStatus("a1", HealthHealthy)
	assert.Equal(t, HealthHealthy, m.State("a1"))
}

func TestHealthMonitor_BothBreakerAndHealthMustRecover(t *testing.T) {
	m := NewHealthMonitor(HealthConfig{RecoveryThreshold: 1})
	breaker := supervisor.NewCircuitBreaker(supervisor.BreakerConfig{FailureThreshold: 1})
	m.AttachBreaker("a1", breaker)

	m.ReportSuccess("a1")
	assert.True(t, m.IsHealthy("a1"))

	breaker.RecordFailure()
	assert.False(t, m.IsHealthy("a1"), "open breaker must gate traffic even if health state is healthy")
}
