package server

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter is a fixed-window counter per client key. Good enough to keep
// a single abusive source from hammering the public submit endpoint.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string]*windowCount
}

type windowCount struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		seen:   map[string]*windowCount{},
	}
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.seen[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.seen[key] = &windowCount{start: now, count: 1}
		if len(l.seen) > 10000 {
			l.evictExpired(now)
		}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

func (l *rateLimiter) evictExpired(now time.Time) {
	for key, w := range l.seen {
		if now.Sub(w.start) >= l.window {
			delete(l.seen, key)
		}
	}
}

func (s *Server) rateLimited(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP(), s.clock.Now()) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
