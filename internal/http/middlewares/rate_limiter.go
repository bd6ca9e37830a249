package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles quote and swap requests per client IP with a
// refill-on-access allowance. A desktop client polling quotes stays well
// under the defaults; only runaway loops trip it.
type RateLimiter struct {
	mu        sync.Mutex
	perSecond int
	ceiling   int
	clients   map[string]*clientAllowance
}

type clientAllowance struct {
	remaining int
	seenAt    time.Time
}

func NewRateLimiter(perSecond, ceiling int) *RateLimiter {
	return &RateLimiter{
		perSecond: perSecond,
		ceiling:   ceiling,
		clients:   make(map[string]*clientAllowance),
	}
}

// RateLimitMiddleware rejects with 429 once a client's allowance runs out.
// Whole elapsed seconds refill perSecond requests, capped at the ceiling.
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		rl.mu.Lock()
		now := time.Now()
		cl, ok := rl.clients[ip]
		if !ok {
			cl = &clientAllowance{remaining: rl.ceiling, seenAt: now}
			rl.clients[ip] = cl
		}

		refill := int(now.Sub(cl.seenAt).Seconds()) * rl.perSecond
		cl.seenAt = now
		cl.remaining += refill
		if cl.remaining > rl.ceiling {
			cl.remaining = rl.ceiling
		}

		if cl.remaining <= 0 {
			rl.mu.Unlock()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		cl.remaining--
		rl.mu.Unlock()

		c.Next()
	}
}
