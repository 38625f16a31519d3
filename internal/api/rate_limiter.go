package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// ClaimRateLimiter throttles reward claims per account. Claims are a one-time
// operation per reward, so a sustained high claim rate from one account is
// either a buggy client or probing.
type ClaimRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit rate.Limit
	burst int
}

// NewClaimRateLimiter creates a new claim rate limiter
func NewClaimRateLimiter(claimsPerMinute, burst int) *ClaimRateLimiter {
	if claimsPerMinute <= 0 {
		claimsPerMinute = 30
	}
	if burst <= 0 {
		burst = 10
	}

	return &ClaimRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(claimsPerMinute) / 60.0),
		burst:    burst,
	}
}

// Allow reports whether a claim from this key may proceed now
func (rl *ClaimRateLimiter) Allow(key string) bool {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter.Allow()
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter.Allow()
	}

	limiter = rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[key] = limiter

	return limiter.Allow()
}
