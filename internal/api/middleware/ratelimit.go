package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiters hands out one token-bucket rate.Limiter per client id,
// grounded on the teacher's middleware/rate_limit.go per-client map
// idiom, backed by golang.org/x/time/rate instead of a hand-rolled
// fixed-window counter.
type clientLimiters struct {
	mu       sync.Mutex
	clients  map[string]*clientEntry
	r        rate.Limit
	burst    int
	cleanup  time.Duration
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(requestsPerWindow int, window time.Duration) *clientLimiters {
	cl := &clientLimiters{
		clients: make(map[string]*clientEntry),
		r:       rate.Limit(float64(requestsPerWindow) / window.Seconds()),
		burst:   requestsPerWindow,
		cleanup: window * 2,
	}
	go cl.sweep()
	return cl
}

func (cl *clientLimiters) allow(clientID string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	entry, ok := cl.clients[clientID]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(cl.r, cl.burst)}
		cl.clients[clientID] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (cl *clientLimiters) sweep() {
	ticker := time.NewTicker(cl.cleanup)
	defer ticker.Stop()
	for range ticker.C {
		cl.mu.Lock()
		now := time.Now()
		for id, entry := range cl.clients {
			if now.Sub(entry.lastSeen) > cl.cleanup {
				delete(cl.clients, id)
			}
		}
		cl.mu.Unlock()
	}
}

// RateLimit enforces requestsPerWindow per client (by user id when
// authenticated, else by remote IP) over window, refilled continuously
// via a token bucket rather than a hard window reset.
func RateLimit(requestsPerWindow int, window time.Duration) gin.HandlerFunc {
	limiters := newClientLimiters(requestsPerWindow, window)

	return func(c *gin.Context) {
		clientID := c.ClientIP()
		if userID, exists := c.Get(ctxKeyUserID); exists {
			clientID = fmt.Sprintf("user:%v", userID)
		}

		if !limiters.allow(clientID) {
			c.JSON(http.StatusOK, gin.H{"subsonic-response": gin.H{
				"status": "failed",
				"error":  gin.H{"code": 0, "message": "rate limit exceeded, please slow down"},
			}})
			c.Abort()
			return
		}
		c.Next()
	}
}

func AuthRateLimit(count int, window time.Duration) gin.HandlerFunc {
	return RateLimit(count, window)
}

func APIRateLimit() gin.HandlerFunc {
	return RateLimit(1000, time.Hour)
}
