package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig configures a global token bucket limiter.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// RateLimitMiddleware enforces a global rate limit for all requests through
// the handler. Rejections use the GraphQL error body shape.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := newTokenBucket(cfg.RPS, cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = fmt.Fprint(w, `{"errors":[{"message":"rate limit exceeded"}]}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type tokenBucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

func newTokenBucket(rps float64, burst int) *tokenBucket {
	b := &tokenBucket{last: time.Now()}
	if rps > 0 && burst > 0 {
		b.rate = rps
		b.burst = float64(burst)
		b.tokens = float64(burst)
	}
	return b
}

func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Zero rate or burst means the limiter is effectively disabled.
	if b.rate <= 0 || b.burst <= 0 {
		return true
	}

	now := time.Now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.burst, b.tokens+elapsed*b.rate)
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
