package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	errs "github.com/tendant/simple-twofa/pkg/errors"
)

// Config holds rate limiting configuration
type Config struct {
	// Per-IP rate limiting
	PerIPEnabled    bool
	PerIPCapacity   int     // Max burst
	PerIPRefillRate float64 // Requests per second

	// Per-account rate limiting (for authenticated requests)
	PerAccountEnabled    bool
	PerAccountCapacity   int
	PerAccountRefillRate float64

	// BlockDuration keeps a key rejected after it exceeds its limit (0 = no block)
	BlockDuration time.Duration

	// Bucket TTL (how long to keep inactive buckets in memory)
	BucketTTL time.Duration

	// Headers to include in response
	IncludeHeaders bool
}

// DefaultConfig returns 60 requests per minute with a burst of 10 and a
// five minute block, per IP and per account
func DefaultConfig() *Config {
	return &Config{
		PerIPEnabled:    true,
		PerIPCapacity:   10,
		PerIPRefillRate: 60.0 / 60.0,

		PerAccountEnabled:    true,
		PerAccountCapacity:   10,
		PerAccountRefillRate: 60.0 / 60.0,

		BlockDuration:  5 * time.Minute,
		BucketTTL:      1 * time.Hour,
		IncludeHeaders: true,
	}
}

// Middleware holds the rate limiting middleware state
type Middleware struct {
	config         *Config
	ipLimiter      *RateLimiter
	accountLimiter *RateLimiter
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config *Config, opts ...LimiterOption) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{config: config}
	opts = append([]LimiterOption{WithBlockDuration(config.BlockDuration)}, opts...)

	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL, opts...)
	}
	if config.PerAccountEnabled {
		m.accountLimiter = NewRateLimiter(config.PerAccountCapacity, config.PerAccountRefillRate, config.BucketTTL, opts...)
	}

	return m
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip", m.ipLimiter.RetryAfter(ip))
			return
		}

		accountID := getAccountID(r)
		if m.accountLimiter != nil && accountID != "" && !m.accountLimiter.Allow(accountID) {
			m.rateLimitExceeded(w, r, "account", m.accountLimiter.RetryAfter(accountID))
			return
		}

		if m.config.IncludeHeaders {
			m.addRateLimitHeaders(w, ip, accountID)
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitExceeded writes a 429 with a Retry-After header
func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", getClientIP(r),
		"account", getAccountID(r),
		"path", r.URL.Path,
		"method", r.Method,
		"retry_after", seconds,
	)

	err := errs.RateLimitExceeded(fmt.Sprintf("%d", seconds)).WithDetail("type", limitType)
	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	render.Status(r, err.HTTPStatusCode())
	render.JSON(w, r, map[string]interface{}{
		"error":   err.Code,
		"message": "Too many requests. Please try again later.",
		"details": err.Details,
	})
}

func (m *Middleware) addRateLimitHeaders(w http.ResponseWriter, ip, accountID string) {
	if m.ipLimiter != nil && ip != "" {
		w.Header().Set("X-RateLimit-Limit-IP", fmt.Sprintf("%d", m.config.PerIPCapacity))
	}

	if m.accountLimiter != nil && accountID != "" {
		w.Header().Set("X-RateLimit-Limit-Account", fmt.Sprintf("%d", m.config.PerAccountCapacity))
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (set by proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is in format "IP:port", we only want the IP
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}

	return addr
}

// getAccountID extracts the JWT subject from the request context
func getAccountID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}

	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	return ""
}

// GetStats returns statistics about all rate limiters
func (m *Middleware) GetStats() map[string]Stats {
	stats := make(map[string]Stats)
	if m.ipLimiter != nil {
		stats["ip"] = m.ipLimiter.GetStats()
	}
	if m.accountLimiter != nil {
		stats["account"] = m.accountLimiter.GetStats()
	}
	return stats
}

// Reset resets rate limits for a specific IP or account
func (m *Middleware) Reset(key string) {
	if m.ipLimiter != nil {
		m.ipLimiter.Reset(key)
	}
	if m.accountLimiter != nil {
		m.accountLimiter.Reset(key)
	}
}

// Close stops background cleanup
func (m *Middleware) Close() {
	if m.ipLimiter != nil {
		m.ipLimiter.Close()
	}
	if m.accountLimiter != nil {
		m.accountLimiter.Close()
	}
}
