package worker

import (
	"net/http"
	"sync"
	"time"

	"github.com/thebtf/ecoscore/internal/auth"
)

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	lastUpdate time.Time
	rate       float64
	burst      int
	tokens     float64
	requests   int64
	rejected   int64
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
// rate is the number of requests per second to allow.
// burst is the maximum burst of requests to allow.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// Allow reports whether a request may proceed, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.allowAt(time.Now())
}

func (rl *RateLimiter) allowAt(now time.Time) bool {
	rl.requests++

	elapsed := now.Sub(rl.lastUpdate).Seconds()
	if elapsed > 0 {
		rl.tokens = min(rl.tokens+elapsed*rl.rate, float64(rl.burst))
		rl.lastUpdate = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	rl.rejected++
	return false
}

// RateLimitStats summarizes a PerClientRateLimiter.
type RateLimitStats struct {
	Rate          float64 `json:"rate"`
	Burst         int     `json:"burst"`
	ActiveClients int     `json:"active_clients"`
	TotalRequests int64   `json:"total_requests"`
	TotalRejected int64   `json:"total_rejected"`
}

// PerClientRateLimiter keeps one token bucket per client key.
type PerClientRateLimiter struct {
	lastCleanup     time.Time
	clients         map[string]*RateLimiter
	rate            float64
	burst           int
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	mu              sync.Mutex
}

// NewPerClientRateLimiter creates a new per-client rate limiter.
func NewPerClientRateLimiter(rate float64, burst int) *PerClientRateLimiter {
	return &PerClientRateLimiter{
		rate:            rate,
		burst:           burst,
		clients:         make(map[string]*RateLimiter),
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// getLimiter returns the bucket for key, creating it on first use.
func (pcrl *PerClientRateLimiter) getLimiter(key string) *RateLimiter {
	pcrl.mu.Lock()
	defer pcrl.mu.Unlock()

	if time.Since(pcrl.lastCleanup) > pcrl.cleanupInterval {
		pcrl.cleanupLocked()
	}

	limiter, exists := pcrl.clients[key]
	if !exists {
		limiter = NewRateLimiter(pcrl.rate, pcrl.burst)
		pcrl.clients[key] = limiter
	}
	return limiter
}

// cleanupLocked drops idle buckets. Caller must hold pcrl.mu; limiter.mu is
// always taken after pcrl.mu.
func (pcrl *PerClientRateLimiter) cleanupLocked() {
	now := time.Now()
	for key, limiter := range pcrl.clients {
		limiter.mu.Lock()
		idle := now.Sub(limiter.lastUpdate) > pcrl.maxIdleTime
		limiter.mu.Unlock()

		if idle {
			delete(pcrl.clients, key)
		}
	}
	pcrl.lastCleanup = now
}

// Allow checks if a request from the given client should be allowed.
func (pcrl *PerClientRateLimiter) Allow(clientKey string) bool {
	return pcrl.getLimiter(clientKey).Allow()
}

// Stats returns aggregate statistics.
func (pcrl *PerClientRateLimiter) Stats() RateLimitStats {
	pcrl.mu.Lock()
	stats := RateLimitStats{Rate: pcrl.rate, Burst: pcrl.burst, ActiveClients: len(pcrl.clients)}
	limiters := make([]*RateLimiter, 0, len(pcrl.clients))
	for _, limiter := range pcrl.clients {
		limiters = append(limiters, limiter)
	}
	pcrl.mu.Unlock()

	for _, limiter := range limiters {
		limiter.mu.Lock()
		stats.TotalRequests += limiter.requests
		stats.TotalRejected += limiter.rejected
		limiter.mu.Unlock()
	}
	return stats
}

// PerClientRateLimitMiddleware applies per-client rate limiting. Clients are
// keyed by authenticated user when known, else by address (set by
// middleware.RealIP).
func PerClientRateLimitMiddleware(limiter *PerClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := "addr:" + r.RemoteAddr
			if userID := auth.UserID(r.Context()); userID != "" {
				clientKey = "user:" + userID
			}

			if !limiter.Allow(clientKey) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
