package supervisor

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls the exponential-backoff-with-jitter retry loop
// (spec.md §4.5, §8 "Exponential backoff" law).
type RetryConfig struct {
	MaxRetries       uint32
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	BackoffFactor    float64
	JitterMax        time.Duration
	// Rand is used to draw the jitter component. Defaults to a
	// package-level source if nil; tests can inject a deterministic one.
	Rand *rand.Rand
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 2
	}
	if c.JitterMax == 0 {
		c.JitterMax = 1 * time.Second
	}
	return c
}

// DelayForAttempt returns the delay before the k-th retry (0-indexed):
// base * factor^k, capped at max_delay, plus up to JitterMax of random
// jitter (spec.md §8: "the k-th retry delay lies within
// [base*factor^k, base*factor^k + jitter_max], capped at max_delay").
func (c RetryConfig) DelayForAttempt(k uint32) time.Duration {
	c = c.withDefaults()
	base := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(k))
	if base > float64(c.MaxDelay) {
		base = float64(c.MaxDelay)
	}
	jitter := c.jitter()
	delay := time.Duration(base) + jitter
	if cap := c.MaxDelay + c.JitterMax; delay > cap {
		delay = cap
	}
	return delay
}

func (c RetryConfig) jitter() time.Duration {
	r := c.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.JitterMax <= 0 {
		return 0
	}
	return time.Duration(r.Int63n(int64(c.JitterMax) + 1))
}

// RetryableFunc is a unit of work the retry loop attempts. A nil error
// means success; any non-nil error is inspected by isRetryable to decide
// whether to try again.
type RetryableFunc func(ctx context.Context, attempt uint32) error

// IsRetryable decides whether an error from a RetryableFunc warrants
// another attempt. Supervisors default to qerrors.IsRetryable but callers
// may supply a custom predicate.
type IsRetryable func(err error) bool

// Retry runs fn up to cfg.MaxRetries additional times (attempt 0 is the
// first, non-retry call), honoring ctx cancellation and sleeping
// DelayForAttempt(k) between attempts. onEvent, if non-nil, is invoked for
// every scheduled retry so callers can surface a Reconnecting event.
func Retry(ctx context.Context, cfg RetryConfig, retryable IsRetryable, fn RetryableFunc, onEvent func(attempt uint32, delay time.Duration)) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := uint32(0); attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.DelayForAttempt(attempt)
		if onEvent != nil {
			onEvent(attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
