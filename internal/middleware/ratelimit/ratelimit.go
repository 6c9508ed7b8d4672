// Package ratelimit throttles requests per client IP with token buckets.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*client
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	rps             rate.Limit
	burst           int
	cleanupInterval time.Duration
	idleTTL         time.Duration

	hits atomic.Int64
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	// IdleTTL drops buckets of clients idle for longer.
	IdleTTL time.Duration
}

// DefaultConfig allows bursts of 10 uploads refilled at 2 per second.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// NewLimiter starts a cleanup goroutine; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}

	rl := &Limiter{
		clients:         make(map[string]*client),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		rps:             rate.Limit(config.RequestsPerSecond),
		burst:           config.Burst,
		cleanupInterval: config.CleanupInterval,
		idleTTL:         config.IdleTTL,
	}
	go rl.startCleanup()
	return rl
}

// Allow reports whether a request from clientIP may proceed now.
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	now := rl.now()
	c, ok := rl.clients[clientIP]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[clientIP] = c
	}
	c.lastSeen = now
	allowed := c.limiter.AllowN(now, 1)
	rl.mu.Unlock()

	if !allowed {
		rl.hits.Add(1)
	}
	return allowed
}

// retryAfter is the whole seconds until one token refills.
func (rl *Limiter) retryAfter() int {
	return int(math.Ceil(1 / float64(rl.rps)))
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.hits.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware rejects requests over the limit with 429. onLimit, when set,
// writes the response instead of the default plain-text body.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
