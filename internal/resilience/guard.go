package resilience

import (
	"context"
	"errors"
	"time"
)

// Guard is the call policy shared by every provider adapter: one deadline
// per call, the provider's circuit breaker, and retries of transient
// failures within that deadline.
type Guard struct {
	breakers *ServiceBreakers
	retry    RetryConfig
	timeout  time.Duration
}

// NewGuard builds a Guard. A zero timeout leaves calls bounded only by ctx.
func NewGuard(breakers *ServiceBreakers, retry RetryConfig, timeout time.Duration) *Guard {
	if breakers == nil {
		breakers = NewServiceBreakers(DefaultCircuitBreakerConfig())
	}
	return &Guard{breakers: breakers, retry: retry, timeout: timeout}
}

// Timeout returns the per-call deadline.
func (g *Guard) Timeout() time.Duration {
	if g == nil {
		return 0
	}
	return g.timeout
}

// Breakers exposes the per-provider breakers, e.g. for health reporting.
func (g *Guard) Breakers() *ServiceBreakers {
	if g == nil {
		return nil
	}
	return g.breakers
}

// Call runs fn for provider under g's policy and returns fn's last error
// unchanged so callers can classify it. A nil Guard runs fn directly.
func Call[T any](ctx context.Context, g *Guard, provider, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cb := g.breakers.Get(provider)
	cfg := g.retry
	cfg.OnRetry = RetryLogger(provider, op)
	cfg.ShouldRetry = func(err error) bool {
		return !errors.Is(err, ErrCircuitOpen) && IsTransient(err)
	}

	return DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		return ExecuteVal(ctx, cb, fn)
	})
}

// FromRetryConfig builds a RetryConfig from flat config values; zero values
// keep the defaults.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	if jitterFraction >= 0 {
		cfg.JitterFraction = jitterFraction
	}
	return cfg
}

// FromCircuitConfig builds a CircuitBreakerConfig from flat config values.
// Cancellation by the caller never counts against a provider.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	cfg.ShouldTrip = func(err error) bool {
		return err != nil && !errors.Is(err, context.Canceled)
	}
	return cfg
}
