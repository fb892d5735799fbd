// Package ratelimit enforces per-user fixed-window limits on expensive
// operations such as searches and exports.
package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/store"
)

// Backend stores fixed-window counters. store.Store satisfies it.
type Backend interface {
	// HitRateLimit counts one hit, opening a new window when none is live.
	HitRateLimit(ctx context.Context, key string, window time.Duration, now time.Time) (store.RateWindow, error)
	// PeekRateLimit returns the live window for key, if any.
	PeekRateLimit(ctx context.Context, key string, now time.Time) (store.RateWindow, bool, error)
	// DeleteExpiredRateLimits removes windows that ended at or before now.
	DeleteExpiredRateLimits(ctx context.Context, now time.Time) (int, error)
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RetryAfter is how long until the window resets, relative to now.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	return max(0, d.ResetAt.Sub(now))
}

// Limiter allows max hits per key per window.
type Limiter struct {
	max     int
	window  time.Duration
	backend Backend
	clock   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the limiter's time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

// NewLimiter creates a Limiter.
func NewLimiter(limit int, window time.Duration, backend Backend, opts ...Option) *Limiter {
	l := &Limiter{
		max:     limit,
		window:  window,
		backend: backend,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Max returns the per-window hit allowance.
func (l *Limiter) Max() int { return l.max }

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time { return l.clock() }

// Check counts a hit for key and reports whether it is allowed.
func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	w, err := l.backend.HitRateLimit(ctx, key, l.window, l.clock())
	if err != nil {
		return Decision{}, eris.Wrapf(err, "ratelimit: check %s", key)
	}
	return Decision{
		Allowed:   w.Count <= l.max,
		Remaining: max(0, l.max-w.Count),
		ResetAt:   w.ResetAt,
	}, nil
}

// Remaining returns the hits left in key's live window without counting one.
func (l *Limiter) Remaining(ctx context.Context, key string) (int, error) {
	w, ok, err := l.backend.PeekRateLimit(ctx, key, l.clock())
	if err != nil {
		return 0, eris.Wrapf(err, "ratelimit: peek %s", key)
	}
	if !ok {
		return l.max, nil
	}
	return max(0, l.max-w.Count), nil
}

// RemainingTime returns how long until key's window resets, or 0 when no
// window is live.
func (l *Limiter) RemainingTime(ctx context.Context, key string) (time.Duration, error) {
	now := l.clock()
	w, ok, err := l.backend.PeekRateLimit(ctx, key, now)
	if err != nil {
		return 0, eris.Wrapf(err, "ratelimit: peek %s", key)
	}
	if !ok {
		return 0, nil
	}
	return max(0, w.ResetAt.Sub(now)), nil
}

// Key builds the counter key for an operation by a user.
func Key(operation, userID string) string {
	return operation + ":" + userID
}
