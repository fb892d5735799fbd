package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/ratelimit"
)

const (
	headerUserID    = "X-User-ID"
	headerRemaining = "X-RateLimit-Remaining"
	anonymousUser   = "anonymous"
)

type ctxKey int

const userKey ctxKey = iota

// withUser stores the caller's identity from X-User-ID in the request context.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(headerUserID))
		if user == "" {
			user = anonymousUser
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func userFrom(ctx context.Context) string {
	if u, ok := ctx.Value(userKey).(string); ok {
		return u
	}
	return anonymousUser
}

// limit counts one hit of op for the caller and rejects the request with 429
// once the window is exhausted.
func (s *Server) limit(op string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := s.limiters[op]
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			d, err := l.Check(r.Context(), ratelimit.Key(op, userFrom(r.Context())))
			if err != nil {
				// Counter store failures fail open.
				zap.L().Warn("server: rate limit check failed", zap.String("operation", op), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set(headerRemaining, strconv.Itoa(d.Remaining))
			if !d.Allowed {
				retry := d.RetryAfter(l.Now())
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded for "+op)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request with zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
