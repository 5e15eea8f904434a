package twofa

import (
	"context"
	"encoding/base32"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/simple-twofa/pkg/notification"
)

// MethodAuthenticator is the only method reported to security settings
const MethodAuthenticator = "authenticator"

// EnrollmentManager runs the setup, confirmation and disable lifecycle.
// Callers serialize per account.
type EnrollmentManager struct {
	repo      TwoFARepository
	generator *CodeGenerator
	lockout   *LockoutController
	issuer    string
	setupTTL  time.Duration
	now       func() time.Time
	settings  SettingsSync
	notify    func(ctx context.Context, noticeType notification.NoticeType, accountID uuid.UUID, accountLabel string)
}

// BeginSetup creates a fresh pending enrollment, replacing any previous one.
// An enabled record is left untouched until the new setup is confirmed.
func (m *EnrollmentManager) BeginSetup(ctx context.Context, accountID uuid.UUID, accountLabel string) (SetupResult, error) {
	if accountLabel == "" {
		accountLabel = DefaultAccountLabel
	}

	secret, err := m.generator.GenerateSecret()
	if err != nil {
		return SetupResult{}, err
	}
	codes, err := m.generator.GenerateBackupCodes()
	if err != nil {
		return SetupResult{}, err
	}
	url, err := OTPAuthURL(m.issuer, accountLabel, secret)
	if err != nil {
		return SetupResult{}, err
	}

	pending := PendingEnrollment{
		Secret:       secret,
		AccountLabel: accountLabel,
		BackupCodes:  codes,
		CreatedAt:    m.now().UTC(),
		Verified:     false,
	}
	if err := m.repo.SavePendingEnrollment(ctx, accountID, pending); err != nil {
		return SetupResult{}, err
	}

	slog.Info("2FA setup started", "account_id", accountID)
	return SetupResult{
		Secret: secret,
		QRPayload: QRPayload{
			Secret:       secret,
			AccountLabel: accountLabel,
			Issuer:       m.issuer,
			URL:          url,
		},
		BackupCodes: append([]string(nil), codes...),
	}, nil
}

// VerifySetup confirms a pending enrollment with a code from the authenticator.
// Failures here do not count towards the lockout.
func (m *EnrollmentManager) VerifySetup(ctx context.Context, accountID uuid.UUID, code string) (VerificationResult, error) {
	pending, err := m.pendingEnrollment(ctx, accountID)
	if err != nil {
		return VerificationResult{Message: "Failed to verify 2FA setup"}, err
	}
	if pending == nil {
		return VerificationResult{Message: "2FA setup not found. Please start setup again."}, ErrSetupNotFound
	}

	now := m.now()
	ok, err := m.generator.Matches(pending.Secret, normalizeCode(code), now)
	if err != nil {
		return VerificationResult{Message: "Failed to verify 2FA setup"}, err
	}
	if !ok {
		return VerificationResult{Message: "Invalid verification code"}, ErrInvalidCode
	}

	record := EnabledRecord{
		Enabled:      true,
		Secret:       pending.Secret,
		AccountLabel: pending.AccountLabel,
		BackupCodes:  pending.BackupCodes,
		EnabledAt:    now.UTC(),
	}
	// The enabled record is written before the pending one is dropped. If the
	// delete fails, 2FA is on and the stale pending setup is replaced by the
	// next BeginSetup or removed by Disable.
	if err := m.repo.SaveEnabledRecord(ctx, accountID, record); err != nil {
		return VerificationResult{Message: "Failed to enable 2FA"}, err
	}
	if err := m.repo.DeletePendingEnrollment(ctx, accountID); err != nil {
		return VerificationResult{Message: "Failed to enable 2FA"}, err
	}
	if err := m.lockout.RecordSuccess(ctx, accountID); err != nil {
		return VerificationResult{Message: "Failed to enable 2FA"}, err
	}

	m.syncSettings(ctx, accountID, true)
	m.notify(ctx, notification.TwoFactorEnabled, accountID, record.AccountLabel)
	slog.Info("2FA enabled", "account_id", accountID)

	return VerificationResult{
		Success: true,
		Message: "2FA enabled successfully",
		Method:  MethodTOTP,
	}, nil
}

// Disable removes the enabled record, any pending setup and the lockout state.
// The confirmation token is checked by callers, not here.
func (m *EnrollmentManager) Disable(ctx context.Context, accountID uuid.UUID, confirmationToken string) error {
	record, err := m.repo.GetEnabledRecord(ctx, accountID)
	if err != nil {
		return err
	}

	if err := m.repo.DeleteEnabledRecord(ctx, accountID); err != nil {
		return err
	}
	if err := m.repo.DeletePendingEnrollment(ctx, accountID); err != nil {
		return err
	}
	if err := m.lockout.RecordSuccess(ctx, accountID); err != nil {
		return err
	}

	m.syncSettings(ctx, accountID, false)
	if record != nil && record.Enabled {
		m.notify(ctx, notification.TwoFactorDisabled, accountID, record.AccountLabel)
	}
	slog.Info("2FA disabled", "account_id", accountID)
	return nil
}

// PendingSetup returns the provisioning payload of the pending enrollment
func (m *EnrollmentManager) PendingSetup(ctx context.Context, accountID uuid.UUID) (QRPayload, error) {
	pending, err := m.pendingEnrollment(ctx, accountID)
	if err != nil {
		return QRPayload{}, err
	}
	if pending == nil {
		return QRPayload{}, ErrSetupNotFound
	}
	url, err := OTPAuthURL(m.issuer, pending.AccountLabel, pending.Secret)
	if err != nil {
		return QRPayload{}, err
	}
	return QRPayload{
		Secret:       pending.Secret,
		AccountLabel: pending.AccountLabel,
		Issuer:       m.issuer,
		URL:          url,
	}, nil
}

// pendingEnrollment returns the pending record, discarding it when older than setupTTL
func (m *EnrollmentManager) pendingEnrollment(ctx context.Context, accountID uuid.UUID) (*PendingEnrollment, error) {
	pending, err := m.repo.GetPendingEnrollment(ctx, accountID)
	if err != nil || pending == nil {
		return nil, err
	}
	if m.setupTTL > 0 && m.now().Sub(pending.CreatedAt) > m.setupTTL {
		slog.Info("Discarding expired 2FA setup", "account_id", accountID, "created_at", pending.CreatedAt)
		if err := m.repo.DeletePendingEnrollment(ctx, accountID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return pending, nil
}

func (m *EnrollmentManager) syncSettings(ctx context.Context, accountID uuid.UUID, enabled bool) {
	if m.settings == nil {
		return
	}
	methods := []string{}
	if enabled {
		methods = []string{MethodAuthenticator}
	}
	// Sync failures are logged; the 2FA records stay as written.
	if err := m.settings.SyncTwoFactor(ctx, accountID, enabled, methods); err != nil {
		slog.Error("Failed to sync security settings", "account_id", accountID, "enabled", enabled, "err", err)
	}
}

// OTPAuthURL builds the otpauth:// provisioning URI for a base32 secret
func OTPAuthURL(issuer, accountLabel, secret string) (string, error) {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if accountLabel == "" {
		accountLabel = DefaultAccountLabel
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalizeSecret(secret))
	if err != nil {
		return "", fmt.Errorf("invalid secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountLabel,
		Period:      TimeStep,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Secret:      raw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build otpauth url: %w", err)
	}
	return key.URL(), nil
}
