package supervisor

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

func TestCircuitBreaker_OpensAfterThresholdAndRefusesWork(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "circuit must refuse calls once open")
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "only one probe allowed in half-open")
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	changed, state := b.RecordSuccess()
	assert.True(t, changed)
	assert.Equal(t, StateClosed, state)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	changed, state := b.RecordFailure()
	assert.True(t, changed)
	assert.Equal(t, StateOpen, state)
}

func TestRetryConfig_DelayForAttemptBounds(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:     100 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      2 * time.Second,
		JitterMax:     1 * time.Second,
		Rand:          rand.New(rand.NewSource(1)),
	}

	expectedBase := []time.Duration{100, 200, 400, 800}
	for k, base := range expectedBase {
		d := cfg.DelayForAttempt(uint32(k))
		min := base * time.Millisecond
		max := min + cfg.JitterMax
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}
}

func TestRetryConfig_DelayCappedAtMaxDelayPlusJitter(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:     100 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      200 * time.Millisecond,
		JitterMax:     1 * time.Second,
	}
	d := cfg.DelayForAttempt(10)
	assert.LessOrEqual(t, d, cfg.MaxDelay+cfg.JitterMax)
}

func TestSupervisor_CircuitOpenShortCircuitsWithoutInvokingWork(t *testing.T) {
	s := New(Config{Endpoint: "https://example", Breaker: BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}})

	calls := 0
	failing := func(ctx context.Context) error {
		calls++
		return qerrors.ConnectionFailed("boom", errors.New("down"))
	}

	err := s.Run(context.Background(), 0, failing)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	// Breaker is now open; next Run must not invoke fn at all.
	err = s.Run(context.Background(), 0, failing)
	require.Error(t, err)
	assert.Equal(t, qerrors.KindCircuitOpen, qerrors.KindOf(err))
	assert.Equal(t, 1, calls, "transport must not be invoked while circuit is open")
}

func TestSupervisor_RetriesRecoverableFailuresThenSucceeds(t *testing.T) {
	s := New(Config{
		Endpoint: "https://example",
		Breaker:  BreakerConfig{FailureThreshold: 10, RecoveryTimeout: time.Minute},
		Retry:    RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterMax: time.Millisecond},
	})

	attempts := 0
	err := s.Run(context.Background(), time.Second, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return qerrors.ConnectionFailed("transient", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSupervisor_NonRetryableFailsFast(t *testing.T) {
	s := New(Config{Endpoint: "https://example"})
	attempts := 0
	err := s.Run(context.Background(), 0, func(ctx context.Context) error {
		attempts++
		return qerrors.Validation("bad request", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
