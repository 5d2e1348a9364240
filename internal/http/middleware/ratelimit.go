// README: Per-client-IP rate limiting middleware.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"boleia/internal/clock"
	"boleia/internal/metrics"
)

// idleLimiterTTL is how long an unused client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.RWMutex
	clients  map[string]*rateLimitClient
	limit    rate.Limit
	burst    int
	clock    clock.Clock
	rejected func()
}

// NewRateLimiter allows rps requests per second with the given burst per
// client. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, clk clock.Clock, m *metrics.Metrics) *RateLimiter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = max(1, int(math.Ceil(rps)))
	}
	rl := &RateLimiter{
		clients:  make(map[string]*rateLimitClient),
		limit:    limit,
		burst:    burst,
		clock:    clk,
		rejected: func() {},
	}
	if m != nil {
		rl.rejected = m.RateLimitedHits.Inc
	}
	return rl
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit == rate.Inf {
			c.Next()
			return
		}
		limiter := rl.limiter(c.ClientIP())
		if !limiter.AllowN(rl.clock.Now(), 1) {
			rl.rejected()
			retry := int(math.Ceil(1 / float64(rl.limit)))
			c.Header("Retry-After", strconv.Itoa(max(1, retry)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()

	rl.mu.RLock()
	if client, ok := rl.clients[key]; ok {
		client.lastSeen.Store(now)
		rl.mu.RUnlock()
		return client.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if client, ok := rl.clients[key]; ok {
		client.lastSeen.Store(now)
		return client.limiter
	}
	client := &rateLimitClient{limiter: rate.NewLimiter(rl.limit, rl.burst)}
	client.lastSeen.Store(now)
	rl.clients[key] = client
	return client.limiter
}

// Sweep drops limiters idle for longer than idleLimiterTTL.
func (rl *RateLimiter) Sweep() int {
	cutoff := rl.clock.Now().Add(-idleLimiterTTL).UnixNano()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, client := range rl.clients {
		if client.lastSeen.Load() < cutoff {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (rl *RateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
