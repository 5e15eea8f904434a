package config

import (
	"time"

	"github.com/tendant/simple-twofa/pkg/twofa"
)

// TwoFAConfig holds the engine tunables
type TwoFAConfig struct {
	Enabled         bool          `env:"TWOFA_ENABLED" env-default:"true"`
	Issuer          string        `env:"TWOFA_ISSUER" env-default:"simple-twofa"`
	MaxAttempts     int           `env:"TWOFA_MAX_ATTEMPTS" env-default:"3"`
	LockoutDuration time.Duration `env:"TWOFA_LOCKOUT_DURATION" env-default:"15m"`
	SetupTTL        time.Duration `env:"TWOFA_SETUP_TTL" env-default:"0"`
	CodeDerivation  string        `env:"TWOFA_CODE_DERIVATION" env-default:"totp" env-description:"totp or hash"`
	// AdminPasswordHash is a bcrypt hash the disable confirmation token must match
	AdminPasswordHash string `env:"TWOFA_ADMIN_PASSWORD_HASH"`
}

// ToEngineConfig converts the config to a twofa.Config
func (c TwoFAConfig) ToEngineConfig() twofa.Config {
	return twofa.Config{
		Issuer:          c.Issuer,
		MaxAttempts:     c.MaxAttempts,
		LockoutDuration: c.LockoutDuration,
		SetupTTL:        c.SetupTTL,
		CodeDerivation:  c.CodeDerivation,
	}
}
