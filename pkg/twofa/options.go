package twofa

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-twofa/pkg/notification"
)

const (
	DefaultIssuer       = "simple-twofa"
	DefaultAccountLabel = "admin"
)

// SettingsSync receives the 2FA projection of an account's security settings
// whenever 2FA is enabled or disabled.
type SettingsSync interface {
	SyncTwoFactor(ctx context.Context, accountID uuid.UUID, enabled bool, methods []string) error
}

// Config holds the tunables of the 2FA engine
type Config struct {
	Issuer          string
	MaxAttempts     int
	LockoutDuration time.Duration
	// SetupTTL expires pending enrollments; zero keeps them until replaced.
	SetupTTL       time.Duration
	CodeDerivation string
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Issuer:          DefaultIssuer,
		MaxAttempts:     DefaultMaxAttempts,
		LockoutDuration: DefaultLockoutDuration,
		CodeDerivation:  DerivationTOTP,
	}
}

// Validate checks the configuration for invalid values
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("lockout duration must be positive, got %s", c.LockoutDuration)
	}
	if c.SetupTTL < 0 {
		return fmt.Errorf("setup ttl must not be negative, got %s", c.SetupTTL)
	}
	if _, err := DeriverByName(c.CodeDerivation); err != nil {
		return err
	}
	return nil
}

// Option configures a TwoFaService
type Option func(*TwoFaService)

// WithConfig applies every field of cfg
func WithConfig(cfg Config) Option {
	return func(s *TwoFaService) {
		if cfg.Issuer != "" {
			s.issuer = cfg.Issuer
		}
		if cfg.MaxAttempts > 0 {
			s.maxAttempts = cfg.MaxAttempts
		}
		if cfg.LockoutDuration > 0 {
			s.lockoutDuration = cfg.LockoutDuration
		}
		s.setupTTL = cfg.SetupTTL
		if d, err := DeriverByName(cfg.CodeDerivation); err == nil {
			s.deriver = d
		}
	}
}

// WithIssuer sets the issuer shown by authenticator apps
func WithIssuer(issuer string) Option {
	return func(s *TwoFaService) {
		s.issuer = issuer
	}
}

// WithMaxAttempts sets the number of failures that lock an account
func WithMaxAttempts(n int) Option {
	return func(s *TwoFaService) {
		s.maxAttempts = n
	}
}

// WithLockoutDuration sets how long a lock lasts
func WithLockoutDuration(d time.Duration) Option {
	return func(s *TwoFaService) {
		s.lockoutDuration = d
	}
}

// WithSetupTTL expires pending enrollments older than d
func WithSetupTTL(d time.Duration) Option {
	return func(s *TwoFaService) {
		s.setupTTL = d
	}
}

// WithDeriver replaces the code derivation function
func WithDeriver(d Deriver) Option {
	return func(s *TwoFaService) {
		s.deriver = d
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *TwoFaService) {
		s.now = now
	}
}

// WithRandReader replaces crypto/rand as the source of secrets and backup codes
func WithRandReader(r io.Reader) Option {
	return func(s *TwoFaService) {
		s.rand = r
	}
}

// WithSettingsSync keeps an account's security settings in step with its 2FA state
func WithSettingsSync(sync SettingsSync) Option {
	return func(s *TwoFaService) {
		s.settings = sync
	}
}

// WithNotificationManager sends a security notice whenever 2FA state or backup codes change
func WithNotificationManager(nm *notification.NotificationManager) Option {
	return func(s *TwoFaService) {
		s.notificationManager = nm
	}
}
