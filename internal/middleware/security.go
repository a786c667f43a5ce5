package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"inkwell/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// MaxBodySize bounds request bodies accepted by the API
const MaxBodySize = 1 << 20

// SecurityHeadersMiddleware sets response headers suitable for a JSON API
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// LimitBodyMiddleware caps the size of request bodies
func LimitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket limiter
type RateLimiter struct {
	name     string
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

// NewRateLimiter allows each client burst requests at once, refilled at rps
// per second. Clients idle for longer than idle are forgotten.
func NewRateLimiter(name string, rps float64, burst int, idle time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		name:     name,
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

// Allow consumes a token for key and reports whether the request may proceed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RetryAfter is the number of whole seconds until one token is refilled
func (rl *RateLimiter) RetryAfter() int {
	if rl.limit <= 0 || rl.limit == rate.Inf {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(rl.limit))))
}

// Cleanup forgets clients that have been idle for longer than the idle period
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	removed := 0
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Cleanup(); n > 0 {
					log.Debug().Str("limiter", rl.name).Int("removed", n).Msg("Rate limiter cleanup")
				}
			}
		}
	}()
}

// RateLimitConfig selects a limiter by route class
type RateLimitConfig struct {
	AuthLimiter   *RateLimiter
	APILimiter    *RateLimiter
	GlobalLimiter *RateLimiter
}

// NewRateLimitConfig builds limiters from the API rate. Login attempts get a
// much tighter budget; everything else shares twice the API budget.
func NewRateLimitConfig(rps float64, burst int) *RateLimitConfig {
	idle := 10 * time.Minute
	return &RateLimitConfig{
		AuthLimiter:   NewRateLimiter("auth", 5.0/60, 5, idle),
		APILimiter:    NewRateLimiter("api", rps, burst, idle),
		GlobalLimiter: NewRateLimiter("global", 2*rps, 2*burst, idle),
	}
}

// NewDefaultRateLimitConfig allows 10 API requests per second with bursts of 20
func NewDefaultRateLimitConfig() *RateLimitConfig {
	return NewRateLimitConfig(10, 20)
}

// StartCleanup evicts idle clients from every limiter until ctx is done
func (c *RateLimitConfig) StartCleanup(ctx context.Context, interval time.Duration) {
	for _, rl := range []*RateLimiter{c.AuthLimiter, c.APILimiter, c.GlobalLimiter} {
		rl.StartCleanup(ctx, interval)
	}
}

func (c *RateLimitConfig) limiterFor(path string) *RateLimiter {
	switch {
	case strings.HasPrefix(path, "/api/auth/"):
		return c.AuthLimiter
	case strings.HasPrefix(path, "/api/"):
		return c.APILimiter
	default:
		return c.GlobalLimiter
	}
}

// RateLimitMiddleware rejects clients that exceed their limiter with 429
func RateLimitMiddleware(config *RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := config.limiterFor(r.URL.Path)
			ip := GetClientIP(r)
			if !limiter.Allow(ip) {
				metrics.RateLimitedTotal.WithLabelValues(limiter.name).Inc()
				log.Warn().
					Str("limiter", limiter.name).
					Str("client_ip", ip).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")

				w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status":  http.StatusTooManyRequests,
					"error":   "rate_limited",
					"message": "Too many requests. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
