package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles callers per client IP. The upstream marketplace
// enforces its own strict request quota; shedding abusive callers here
// keeps one noisy client from burning the shared budget for everyone.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	mu        sync.Mutex
	clients   map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter for the requests-per-minute budget.
// A non-positive budget disables limiting entirely.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
		idleAfter: 5 * time.Minute,
		clients:   make(map[string]*clientLimiter),
	}
}

// Handler returns the gin middleware enforcing the configured budget.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !r.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(r.limit, r.burst)
	r.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	// Piggyback eviction of idle entries on insertion; the map only grows
	// when new clients show up anyway.
	for k, entry := range r.clients {
		if now.Sub(entry.lastSeen) > r.idleAfter {
			delete(r.clients, k)
		}
	}
	return limiter
}
