// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/metrics"
)

const (
	rateLimitKeyPrefix = "ratelimit"
	bucketIdleTTL      = 10 * time.Minute
	bucketSweepEvery   = 5 * time.Minute
)

// RateLimitConfig describes one named request budget. Name separates the
// redis keys of different budgets and labels the limited-requests metric.
// With FailOpen set, a redis outage degrades to per-process buckets instead
// of rejecting traffic.
type RateLimitConfig struct {
	Name       string
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
}

type RateLimiter struct {
	shared *redis_rate.Limiter
	local  *localBuckets
	config RateLimitConfig
}

// verdict is the part of a limiter answer the response needs, whichever
// backend produced it.
type verdict struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
	resetAfter time.Duration
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.Name == "" {
		cfg.Name = "global"
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		shared: redis_rate.NewLimiter(rdb),
		local:  newLocalBuckets(),
		config: cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rateLimitKeyPrefix + ":" + rl.config.Name + ":" + rl.config.KeyFunc(r)

		v, err := rl.check(r.Context(), key)
		if err != nil {
			appErr := core.NewAppError(
				http.StatusServiceUnavailable,
				"RATE_LIMITER_UNAVAILABLE",
				"request budget could not be checked",
			)
			appErr.Err = err
			core.JSONError(w, appErr)
			return
		}

		writeBudgetHeaders(w, rl.config.Limit, v)

		if !v.allowed {
			metrics.RateLimitedTotal.WithLabelValues(rl.config.Name).Inc()
			writeLimited(w, v)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) check(ctx context.Context, key string) (verdict, error) {
	res, err := rl.shared.Allow(ctx, key, rl.config.Limit)
	if err == nil {
		return verdict{
			allowed:    res.Allowed > 0,
			remaining:  res.Remaining,
			retryAfter: res.RetryAfter,
			resetAfter: res.ResetAfter,
		}, nil
	}

	if !rl.config.FailOpen {
		return verdict{}, fmt.Errorf("rate limit %s: %w", rl.config.Name, err)
	}

	slog.WarnContext(ctx, "rate limiter backend unavailable, using local buckets",
		"limiter", rl.config.Name,
		"error", err,
	)
	return rl.local.take(key, rl.config.Limit), nil
}

// KeyByIP trusts the last X-Forwarded-For hop, the one appended by our own
// proxy.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return "ip:" + strings.TrimSpace(hops[len(hops)-1])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return "ip:" + realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	return KeyByIP(r)
}

// KeyByUserAndRoute gives each caller a separate budget per route shape, so
// polling one attachment's access does not eat the budget for downloads. It
// must run after routing, i.e. as route middleware added with r.With.
func KeyByUserAndRoute(r *http.Request) string {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}
	return KeyByUser(r) + ":route:" + route
}

// PerWindow allows n requests per window with the given burst. A
// non-positive window falls back to one minute.
func PerWindow(n, burst int, window time.Duration) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	return redis_rate.Limit{Rate: n, Burst: burst, Period: window}
}

func writeBudgetHeaders(w http.ResponseWriter, limit redis_rate.Limit, v verdict) {
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("RateLimit-Remaining", strconv.Itoa(max(v.remaining, 0)))
	h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(v.resetAfter)))
	h.Set("RateLimit-Policy",
		fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
}

func writeLimited(w http.ResponseWriter, v verdict) {
	wait := max(ceilSeconds(v.retryAfter), 1)
	w.Header().Set("Retry-After", strconv.Itoa(wait))
	core.JSONError(w, core.NewAppError(
		http.StatusTooManyRequests,
		"RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", wait),
	))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localBuckets is the per-process stand-in for redis. Budgets are not shared
// between replicas while it is in use.
type localBuckets struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLocalBuckets() *localBuckets {
	l := &localBuckets{buckets: make(map[string]*bucket)}
	go l.sweep()
	return l
}

func (l *localBuckets) sweep() {
	ticker := time.NewTicker(bucketSweepEvery)
	defer ticker.Stop()

	for now := range ticker.C {
		l.mu.Lock()
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > bucketIdleTTL {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

func (l *localBuckets) take(key string, limit redis_rate.Limit) verdict {
	interval := limit.Period / time.Duration(max(limit.Rate, 1))
	now := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(interval), limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	remaining := int(b.limiter.TokensAt(now))
	l.mu.Unlock()

	v := verdict{allowed: allowed, remaining: remaining, resetAfter: interval}
	if !allowed {
		v.retryAfter = interval
	}
	return v
}
