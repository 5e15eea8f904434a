package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
)

// ServerConfig holds the HTTP settings. The listener itself is configured
// through the embedded chi-demo AppConfig.
type ServerConfig struct {
	AppConfig   app.AppConfig
	BaseURL     string   `env:"BASE_URL" env-default:"http://localhost:8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	Prefix      PrefixConfig
}

// Config is the full configuration of the twofa server
type Config struct {
	AppEnv    string `env:"APP_ENV" env-default:"development"`
	Server    ServerConfig
	Store     StoreConfig
	TwoFA     TwoFAConfig
	JWT       JWTConfig
	Email     EmailConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// Environment returns the parsed APP_ENV
func (c Config) Environment() Environment {
	return ParseEnvironment(c.AppEnv)
}

// Load reads the configuration from environment variables and validates it
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.Server.Prefix = cfg.Server.Prefix.Normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Usage describes every supported environment variable
func Usage() (string, error) {
	var cfg Config
	header := "Environment variables:"
	return cleanenv.GetDescription(&cfg, &header)
}

// Validate checks the configuration for invalid values
func (c Config) Validate() error {
	return Validate(
		func() ValidationErrors {
			var errs ValidationErrors
			errs.add(RequireOneOf("TWOFA_STORE", c.Store.Type, "memory", "inmem", "file", "postgres", "postgresql", "sqlite"))
			if c.Store.Type == "file" {
				errs.add(RequireNonEmpty("TWOFA_DATA_DIR", c.Store.DataDir))
			}
			if c.Store.Type == "sqlite" && c.Store.SQLitePath == "" {
				errs.add(RequireNonEmpty("TWOFA_DATA_DIR", c.Store.DataDir))
			}
			return errs
		},
		func() ValidationErrors {
			var errs ValidationErrors
			errs.add(RequirePositive("TWOFA_MAX_ATTEMPTS", c.TwoFA.MaxAttempts))
			errs.add(RequirePositiveDuration("TWOFA_LOCKOUT_DURATION", c.TwoFA.LockoutDuration))
			errs.add(RequireNonNegativeDuration("TWOFA_SETUP_TTL", c.TwoFA.SetupTTL))
			errs.add(RequireOneOf("TWOFA_CODE_DERIVATION", c.TwoFA.CodeDerivation, "", "totp", "hash"))
			return errs
		},
		func() ValidationErrors {
			var errs ValidationErrors
			errs.add(RequireNonEmpty("JWT_SECRET", c.JWT.Secret))
			errs.add(RequirePositiveDuration("JWT_TOKEN_EXPIRY", c.JWT.TokenExpiry))
			if c.Environment().IsProduction() && c.JWT.IsDefaultSecret() {
				errs.add(&ValidationError{Field: "JWT_SECRET", Message: "must be changed in production"})
			}
			return errs
		},
		func() ValidationErrors {
			var errs ValidationErrors
			if c.RateLimit.Enabled {
				errs.add(RequirePositive("RATELIMIT_REQUESTS_PER_MINUTE", c.RateLimit.RequestsPerMinute))
				errs.add(RequirePositive("RATELIMIT_BURST", c.RateLimit.Burst))
				errs.add(RequireNonNegativeDuration("RATELIMIT_BLOCK_DURATION", c.RateLimit.BlockDuration))
			}
			errs.add(RequireOneOf("LOG_FORMAT", c.Log.Format, "", "text", "json"))
			return errs
		},
	)
}
