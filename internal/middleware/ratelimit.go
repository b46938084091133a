package middleware

import (
	"net"
	"net/http"
	"sync"

	"github.com/zeromicro/go-zero/core/limit"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

// Rate limiting is a per-IP token bucket backed by go-zero's own
// Redis-scripted token limiter, so the limit survives across replicas of
// this service rather than resetting per process. Unauthenticated callers
// get the tighter bucket; a request carrying a valid access_token cookie
// gets the wider one. go-zero's TokenLimiter bakes its Redis key into the
// limiter at construction, so one limiter only ever covers one bucket —
// RateLimiter lazily builds one limiter per (pool, ip) pair and caches it.
const (
	unauthenticatedRatePerMinute = 60
	authenticatedRatePerMinute   = 600
	rateLimitBurst               = 10
)

// RateLimiter holds the lazily-created per-IP token buckets for the
// anonymous and authenticated pools.
type RateLimiter struct {
	store *redis.Redis

	mu      sync.Mutex
	limiters map[string]*limit.TokenLimiter
}

func NewRateLimiter(store *redis.Redis) *RateLimiter {
	return &RateLimiter{
		store:    store,
		limiters: make(map[string]*limit.TokenLimiter),
	}
}

func (rl *RateLimiter) limiterFor(pool, ip string, ratePerMinute int) *limit.TokenLimiter {
	key := pool + ":" + ip
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if lim, ok := rl.limiters[key]; ok {
		return lim
	}
	lim := limit.NewTokenLimiter(ratePerMinute/60, rateLimitBurst, rl.store, "ratelimit:"+key)
	rl.limiters[key] = lim
	return lim
}

// Limit checks the request's originating IP against the bucket matching
// its authentication state. Run this after AuthMiddleware so an
// authenticated request is already carrying its claims in context.
func (rl *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		pool, rate := "anon", unauthenticatedRatePerMinute
		if _, authed := UserIDFromContext(r.Context()); authed {
			pool, rate = "auth", authenticatedRatePerMinute
		}

		if !rl.limiterFor(pool, ip, rate).Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// ClientIP extracts the request's originating IP, preferring
// X-Forwarded-For's first hop when the service runs behind a proxy. Shared
// with internal/handler/auth for stamping session device info.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for idx := 0; idx < len(fwd); idx++ {
			if fwd[idx] == ',' {
				return fwd[:idx]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
