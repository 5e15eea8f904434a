package api

import (
	"time"

	"github.com/tendant/simple-twofa/pkg/twofa"
)

type SetupRequest struct {
	AccountLabel string `json:"account_label,omitempty"`
}

type SetupResponse struct {
	Secret      string          `json:"secret"`
	QRPayload   twofa.QRPayload `json:"qr_payload"`
	BackupCodes []string        `json:"backup_codes"`
}

// CodeRequest carries a TOTP or backup code
type CodeRequest struct {
	Code string `json:"code"`
}

type DisableRequest struct {
	ConfirmationToken string `json:"confirmation_token"`
}

// VerifyResponse is returned by both verify endpoints, on success and on failure
type VerifyResponse struct {
	Success           bool       `json:"success"`
	Message           string     `json:"message"`
	Method            string     `json:"method,omitempty"`
	RemainingAttempts *int       `json:"remaining_attempts,omitempty"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

type StatusResponse struct {
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

type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
	Count       int      `json:"count"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
