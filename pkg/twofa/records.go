package twofa

import "time"

// Method identifies how a verification succeeded
type Method string

const (
	MethodTOTP       Method = "totp"
	MethodBackupCode Method = "backup_code"
)

// PendingEnrollment is the setup record kept until the first code is confirmed
type PendingEnrollment struct {
	Secret       string    `json:"secret"`
	AccountLabel string    `json:"account_label"`
	BackupCodes  []string  `json:"backup_codes"`
	CreatedAt    time.Time `json:"created_at"`
	Verified     bool      `json:"verified"`
}

// EnabledRecord is the active 2FA configuration of an account
type EnabledRecord struct {
	Enabled      bool       `json:"enabled"`
	Secret       string     `json:"secret"`
	AccountLabel string     `json:"account_label"`
	BackupCodes  []string   `json:"backup_codes"`
	EnabledAt    time.Time  `json:"enabled_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// LockoutState holds the failure counter and lock deadline of an account.
// Both live in one record so a failure is persisted with a single write.
type LockoutState struct {
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

// QRPayload carries what an authenticator app needs to enroll
type QRPayload struct {
	Secret       string `json:"secret"`
	AccountLabel string `json:"account_label"`
	Issuer       string `json:"issuer"`
	URL          string `json:"url"`
}

// SetupResult is returned by BeginSetup
type SetupResult struct {
	Secret      string    `json:"secret"`
	QRPayload   QRPayload `json:"qr_payload"`
	BackupCodes []string  `json:"backup_codes"`
}

// VerificationResult describes the outcome of a verification attempt.
// It is populated on both success and failure.
type VerificationResult struct {
	Success           bool       `json:"success"`
	Message           string     `json:"message"`
	Method            Method     `json:"method,omitempty"`
	RemainingAttempts *int       `json:"remaining_attempts,omitempty"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

// Status is a read-side summary of an account's 2FA state
type Status struct {
	Enabled              bool       `json:"enabled"`
	AccountLabel         string     `json:"account_label,omitempty"`
	EnabledAt            *time.Time `json:"enabled_at,omitempty"`
	LastUsedAt           *time.Time `json:"last_used_at,omitempty"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
	SetupPending         bool       `json:"setup_pending"`
	Locked               bool       `json:"locked"`
	LockedUntil          *time.Time `json:"locked_until,omitempty"`
	FailedAttempts       int        `json:"failed_attempts"`
	MaxAttempts          int        `json:"max_attempts"`
}
