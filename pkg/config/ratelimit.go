package config

import (
	"time"

	"github.com/tendant/simple-twofa/pkg/ratelimit"
)

// RateLimitConfig contains per-client limits for the 2FA endpoints.
// Defaults follow the security settings defaults: 60 requests per minute,
// a burst of 10 and a five minute block.
type RateLimitConfig struct {
	Enabled           bool          `env:"RATELIMIT_ENABLED" env-default:"true"`
	RequestsPerMinute int           `env:"RATELIMIT_REQUESTS_PER_MINUTE" env-default:"60"`
	Burst             int           `env:"RATELIMIT_BURST" env-default:"10"`
	BlockDuration     time.Duration `env:"RATELIMIT_BLOCK_DURATION" env-default:"5m"`
	BucketTTL         time.Duration `env:"RATELIMIT_BUCKET_TTL" env-default:"1h"`
	IncludeHeaders    bool          `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}

// ToMiddlewareConfig converts the config for ratelimit.NewMiddleware
func (c RateLimitConfig) ToMiddlewareConfig() *ratelimit.Config {
	refill := float64(c.RequestsPerMinute) / 60.0
	return &ratelimit.Config{
		PerIPEnabled:         c.Enabled,
		PerIPCapacity:        c.Burst,
		PerIPRefillRate:      refill,
		PerAccountEnabled:    c.Enabled,
		PerAccountCapacity:   c.Burst,
		PerAccountRefillRate: refill,
		BlockDuration:        c.BlockDuration,
		BucketTTL:            c.BucketTTL,
		IncludeHeaders:       c.IncludeHeaders,
	}
}
