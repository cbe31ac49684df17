package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"sheetboard/utils"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// fixedWindowLimiter throttles login attempts per client IP so a stuck
// client cannot burn through the session cap or brute-force passwords.
type fixedWindowLimiter struct {
	mu      sync.Mutex
	win     time.Duration
	max     int
	buckets map[string]*bucket
}

func newFixedWindowLimiter(max int, window time.Duration) *fixedWindowLimiter {
	return &fixedWindowLimiter{
		win:     window,
		max:     max,
		buckets: make(map[string]*bucket),
	}
}

func (l *fixedWindowLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) > 1024 {
		for k, b := range l.buckets {
			if now.After(b.resetAt) {
				delete(l.buckets, k)
			}
		}
	}

	b := l.buckets[key]
	if b == nil || now.After(b.resetAt) {
		b = &bucket{resetAt: now.Add(l.win)}
		l.buckets[key] = b
	}
	b.count++
	return b.count <= l.max
}

// LoginRateLimit returns a middleware allowing max attempts per window per
// client IP.
func LoginRateLimit(max int, window time.Duration) gin.HandlerFunc {
	limiter := newFixedWindowLimiter(max, window)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			utils.GinTooManyRequests(c, "Too many login attempts. Try again later.")
			return
		}
		c.Next()
	}
}
