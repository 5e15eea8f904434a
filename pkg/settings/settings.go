package settings

import (
	"fmt"
	"time"
)

// Allowed 2FA methods in the security settings document
const (
	MethodSMS           = "sms"
	MethodEmail         = "email"
	MethodAuthenticator = "authenticator"
)

type PasswordPolicy struct {
	MinLength           int  `json:"min_length"`
	RequireNumbers      bool `json:"require_numbers"`
	RequireSpecialChars bool `json:"require_special_chars"`
	RequireUppercase    bool `json:"require_uppercase"`
	RequireLowercase    bool `json:"require_lowercase"`
	ExpirationDays      int  `json:"expiration_days"`
}

type TwoFactorAuth struct {
	Enabled bool     `json:"enabled"`
	Methods []string `json:"methods"`
}

type Session struct {
	TimeoutMinutes int  `json:"timeout_minutes"`
	MaxSessions    int  `json:"max_sessions"`
	IPLocking      bool `json:"ip_locking"`
}

type RateLimiting struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	BurstLimit        int `json:"burst_limit"`
	// BlockDuration in milliseconds
	BlockDuration int64 `json:"block_duration"`
}

type AuditLogging struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
}

// SecuritySettings is the per-account security settings document
type SecuritySettings struct {
	PasswordPolicy PasswordPolicy `json:"password_policy"`
	TwoFactorAuth  TwoFactorAuth  `json:"two_factor_auth"`
	Session        Session        `json:"session"`
	RateLimiting   RateLimiting   `json:"rate_limiting"`
	AuditLogging   AuditLogging   `json:"audit_logging"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DefaultSecuritySettings returns the document used when none is stored
func DefaultSecuritySettings(now time.Time) SecuritySettings {
	return SecuritySettings{
		PasswordPolicy: PasswordPolicy{
			MinLength:           8,
			RequireNumbers:      true,
			RequireSpecialChars: true,
			RequireUppercase:    true,
			RequireLowercase:    true,
			ExpirationDays:      90,
		},
		TwoFactorAuth: TwoFactorAuth{
			Enabled: false,
			Methods: []string{MethodAuthenticator},
		},
		Session: Session{
			TimeoutMinutes: 30,
			MaxSessions:    5,
			IPLocking:      false,
		},
		RateLimiting: RateLimiting{
			RequestsPerMinute: 60,
			BurstLimit:        10,
			BlockDuration:     (5 * time.Minute).Milliseconds(),
		},
		AuditLogging: AuditLogging{
			Enabled:       true,
			RetentionDays: 30,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate rejects negative limits
func (s SecuritySettings) Validate() error {
	checks := []struct {
		field string
		value int64
	}{
		{"password_policy.min_length", int64(s.PasswordPolicy.MinLength)},
		{"password_policy.expiration_days", int64(s.PasswordPolicy.ExpirationDays)},
		{"session.timeout_minutes", int64(s.Session.TimeoutMinutes)},
		{"session.max_sessions", int64(s.Session.MaxSessions)},
		{"rate_limiting.requests_per_minute", int64(s.RateLimiting.RequestsPerMinute)},
		{"rate_limiting.burst_limit", int64(s.RateLimiting.BurstLimit)},
		{"rate_limiting.block_duration", s.RateLimiting.BlockDuration},
		{"audit_logging.retention_days", int64(s.AuditLogging.RetentionDays)},
	}
	for _, c := range checks {
		if c.value < 0 {
			return fmt.Errorf("%s must not be negative", c.field)
		}
	}
	return nil
}

// FilterMethods keeps known 2FA methods in their original order, dropping duplicates
func FilterMethods(methods []string) []string {
	filtered := []string{}
	seen := map[string]bool{}
	for _, m := range methods {
		switch m {
		case MethodSMS, MethodEmail, MethodAuthenticator:
			if !seen[m] {
				seen[m] = true
				filtered = append(filtered, m)
			}
		}
	}
	return filtered
}
