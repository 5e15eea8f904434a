package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket wraps a rate.Limiter with an optional block window
type TokenBucket struct {
	limiter      *rate.Limiter
	capacity     int
	lastSeen     time.Time
	blockedUntil time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
// capacity: Maximum number of requests allowed in a burst
// refillRate: Number of requests allowed per second
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		limiter:  rate.NewLimiter(rate.Limit(refillRate), capacity),
		capacity: capacity,
	}
}

// AllowAt reports whether a request at now may proceed. A denied request
// blocks the bucket for block, when block is positive.
func (tb *TokenBucket) AllowAt(now time.Time, block time.Duration) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.lastSeen = now
	if now.Before(tb.blockedUntil) {
		return false
	}
	if tb.limiter.AllowN(now, 1) {
		return true
	}
	if block > 0 {
		tb.blockedUntil = now.Add(block)
	}
	return false
}

// Tokens returns the number of available tokens at now
func (tb *TokenBucket) Tokens(now time.Time) float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter.TokensAt(now)
}

// BlockedUntil returns the end of the current block window, if any
func (tb *TokenBucket) BlockedUntil() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.blockedUntil
}

// Reset restores full capacity and lifts any block
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = rate.NewLimiter(tb.limiter.Limit(), tb.capacity)
	tb.blockedUntil = time.Time{}
}

// RateLimiter manages one token bucket per key
type RateLimiter struct {
	buckets       map[string]*TokenBucket
	capacity      int
	refillRate    float64
	blockDuration time.Duration
	ttl           time.Duration // Time to live for inactive buckets
	now           func() time.Time
	mu            sync.Mutex
	stop          chan struct{}
	stopOnce      sync.Once
}

type LimiterOption func(*RateLimiter)

// WithBlockDuration blocks a key for d after it exceeds its limit
func WithBlockDuration(d time.Duration) LimiterOption {
	return func(rl *RateLimiter) {
		rl.blockDuration = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) LimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// NewRateLimiter creates a new rate limiter
// capacity: Maximum number of requests allowed in a burst per key
// refillRate: Number of requests allowed per second per key
// ttl: Time to keep inactive buckets in memory (0 = forever)
func NewRateLimiter(capacity int, refillRate float64, ttl time.Duration, opts ...LimiterOption) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}

	if ttl > 0 {
		go rl.cleanup()
	}

	return rl
}

// Allow checks if a request for the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).AllowAt(rl.now(), rl.blockDuration)
}

// RetryAfter returns how long key should wait before retrying
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	now := rl.now()
	bucket := rl.bucket(key)
	if until := bucket.BlockedUntil(); now.Before(until) {
		return until.Sub(now)
	}
	if rl.refillRate <= 0 {
		return 0
	}
	missing := 1 - bucket.Tokens(now)
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / rl.refillRate * float64(time.Second))
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = NewTokenBucket(rl.capacity, rl.refillRate)
		rl.buckets[key] = bucket
	}
	return bucket
}

// Reset resets the rate limiter for a specific key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		bucket.Reset()
	}
}

// Remove removes a specific key from the rate limiter
func (rl *RateLimiter) Remove(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

// evictIdle removes buckets unused for longer than ttl
func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		idle := now.Sub(bucket.lastSeen) > rl.ttl && !now.Before(bucket.blockedUntil)
		bucket.mu.Unlock()
		if idle {
			delete(rl.buckets, key)
		}
	}
}

// Stats returns statistics about the rate limiter
type Stats struct {
	ActiveBuckets int
	TotalCapacity int
	RefillRate    float64
}

// GetStats returns current statistics
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		ActiveBuckets: len(rl.buckets),
		TotalCapacity: rl.capacity,
		RefillRate:    rl.refillRate,
	}
}
