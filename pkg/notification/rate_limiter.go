package notification

import (
	"sync"
	"time"

	"github.com/Veraticus/online-status/pkg/config"
	"github.com/Veraticus/online-status/pkg/interfaces"
)

// NewRateLimiter builds a limiter allowing MaxMessages deliveries per Window.
// It returns nil, meaning unlimited, when either value is zero.
func NewRateLimiter(cfg config.RateLimitConfig) interfaces.RateLimiter {
	if cfg.MaxMessages <= 0 || cfg.Window <= 0 {
		return nil
	}
	refill := cfg.Window / time.Duration(cfg.MaxMessages)
	if refill <= 0 {
		refill = time.Nanosecond
	}
	return NewTokenBucketRateLimiter(cfg.MaxMessages, refill)
}

// TokenBucketRateLimiter implements token bucket rate limiting
type TokenBucketRateLimiter struct {
	capacity   int
	tokens     int
	refillRate time.Duration
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucketRateLimiter creates a new token bucket rate limiter
func NewTokenBucketRateLimiter(capacity int, refillRate time.Duration) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed under the rate limit
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Refill tokens based on time elapsed
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int(elapsed / tb.refillRate)

	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = tb.lastRefill.Add(time.Duration(tokensToAdd) * tb.refillRate)
	}

	// Try to consume a token
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Reset resets the rate limiter to full capacity
func (tb *TokenBucketRateLimiter) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}
