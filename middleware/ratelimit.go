package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter is a sliding-window counter per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	requests := rl.prune(rl.requests[ip], now.Add(-rl.window))

	if len(requests) >= rl.limit {
		rl.requests[ip] = requests
		return false
	}
	rl.requests[ip] = append(requests, now)
	return true
}

func (rl *IPRateLimiter) prune(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(requests); i++ {
		if requests[i].After(cutoff) {
			break
		}
	}
	return requests[i:]
}

// Sweep drops IPs with no request inside the window.
func (rl *IPRateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for ip, requests := range rl.requests {
		if len(rl.prune(requests, cutoff)) == 0 {
			delete(rl.requests, ip)
		}
	}
}

func (rl *IPRateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

// RateLimit rejects requests beyond the limiter's budget with 429.
// A nil limiter disables limiting.
func RateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
