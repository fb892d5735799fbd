package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/store"
)

// MemoryBackend keeps windows in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	windows map[string]store.RateWindow
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{windows: make(map[string]store.RateWindow)}
}

// HitRateLimit implements Backend.
func (m *MemoryBackend) HitRateLimit(_ context.Context, key string, window time.Duration, now time.Time) (store.RateWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.ResetAt) {
		w = store.RateWindow{Count: 1, ResetAt: now.Add(window)}
	} else {
		w.Count++
	}
	m.windows[key] = w
	return w, nil
}

// PeekRateLimit implements Backend.
func (m *MemoryBackend) PeekRateLimit(_ context.Context, key string, now time.Time) (store.RateWindow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.ResetAt) {
		return store.RateWindow{}, false, nil
	}
	return w, true, nil
}

// DeleteExpiredRateLimits implements Backend.
func (m *MemoryBackend) DeleteExpiredRateLimits(_ context.Context, now time.Time) (int, error) {
	return m.Cleanup(now), nil
}

// Cleanup drops windows that ended at or before now and returns how many.
func (m *MemoryBackend) Cleanup(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, w := range m.windows {
		if !now.Before(w.ResetAt) {
			delete(m.windows, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored windows, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// StartCleanup sweeps expired windows from backend every interval until ctx
// ends. It returns a channel closed when the sweeper exits.
func StartCleanup(ctx context.Context, backend Backend, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := backend.DeleteExpiredRateLimits(ctx, now)
				if err != nil {
					zap.L().Warn("ratelimit: cleanup failed", zap.Error(err))
					continue
				}
				if n > 0 {
					zap.L().Debug("ratelimit: cleaned expired windows", zap.Int("removed", n))
				}
			}
		}
	}()
	return done
}
