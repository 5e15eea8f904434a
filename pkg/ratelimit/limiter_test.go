package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTokenBucket_AllowAt(t *testing.T) {
	// capacity 5, refill 1 token/second
	tb := NewTokenBucket(5, 1.0)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.AllowAt(now, 0), "request %d should be allowed", i+1)
	}
	assert.False(t, tb.AllowAt(now, 0), "6th request should be denied")

	now = now.Add(2 * time.Second)
	assert.True(t, tb.AllowAt(now, 0))
	assert.True(t, tb.AllowAt(now, 0))
	assert.False(t, tb.AllowAt(now, 0))
}

func TestTokenBucket_Block(t *testing.T) {
	tb := NewTokenBucket(1, 1.0)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, tb.AllowAt(now, time.Minute))
	assert.False(t, tb.AllowAt(now, time.Minute))
	assert.Equal(t, now.Add(time.Minute), tb.BlockedUntil())

	// tokens have refilled but the block still applies
	assert.False(t, tb.AllowAt(now.Add(30*time.Second), time.Minute))
	assert.True(t, tb.AllowAt(now.Add(time.Minute), time.Minute))
}

func TestTokenBucket_Reset(t *testing.T) {
	tb := NewTokenBucket(3, 1.0)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		tb.AllowAt(now, time.Hour)
	}
	assert.False(t, tb.AllowAt(now, time.Hour))

	tb.Reset()
	for i := 0; i < 3; i++ {
		assert.True(t, tb.AllowAt(now, time.Hour), "request %d should be allowed after reset", i+1)
	}
}

func TestRateLimiter_PerKey(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(2, 1.0, 0, WithClock(clock.Now))
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	assert.Equal(t, time.Second, rl.RetryAfter("a"))
	clock.Advance(time.Second)
	assert.True(t, rl.Allow("a"))

	rl.Remove("b")
	assert.Equal(t, 1, rl.GetStats().ActiveBuckets)
}

func TestRateLimiter_RetryAfterDuringBlock(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(1, 1.0, 0, WithClock(clock.Now), WithBlockDuration(5*time.Minute))
	defer rl.Close()

	assert.True(t, rl.Allow("ip"))
	assert.False(t, rl.Allow("ip"))
	assert.Equal(t, 5*time.Minute, rl.RetryAfter("ip"))

	clock.Advance(5 * time.Minute)
	assert.True(t, rl.Allow("ip"))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(1, 1.0, 0, WithClock(clock.Now))
	rl.ttl = time.Minute

	rl.Allow("a")
	clock.Advance(30 * time.Second)
	rl.Allow("b")
	clock.Advance(45 * time.Second)

	rl.evictIdle()
	assert.Equal(t, 1, rl.GetStats().ActiveBuckets)
}

func TestMiddleware_PerIP(t *testing.T) {
	clock := newClock()
	m := NewMiddleware(&Config{
		PerIPEnabled:    true,
		PerIPCapacity:   2,
		PerIPRefillRate: 1.0,
		BlockDuration:   time.Minute,
		IncludeHeaders:  true,
	}, WithClock(clock.Now))
	defer m.Close()

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/2fa/verify", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit-IP"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234").Code)

	rec = do("10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])

	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234").Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:5555"
	assert.Equal(t, "192.168.1.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}
