package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	errs "github.com/tendant/simple-twofa/pkg/errors"
	"github.com/tendant/simple-twofa/pkg/kvstore"
)

// SettingsService stores security settings documents in a kvstore.Store
type SettingsService struct {
	store kvstore.Store
	now   func() time.Time
}

type Option func(*SettingsService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *SettingsService) {
		s.now = now
	}
}

func NewSettingsService(store kvstore.Store, opts ...Option) *SettingsService {
	s := &SettingsService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func settingsKey(accountID uuid.UUID) string {
	return fmt.Sprintf("settings/%s/security", accountID)
}

// GetSecuritySettings returns the stored document, or the defaults when none
// is stored or the stored one cannot be decoded
func (s *SettingsService) GetSecuritySettings(ctx context.Context, accountID uuid.UUID) (SecuritySettings, error) {
	raw, found, err := s.store.Get(ctx, settingsKey(accountID))
	if err != nil {
		return SecuritySettings{}, errs.StorageFailure(err, "failed to read security settings")
	}
	if !found {
		return DefaultSecuritySettings(s.now().UTC()), nil
	}

	var settings SecuritySettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		slog.Warn("Discarding unreadable security settings", "account_id", accountID, "err", err)
		return DefaultSecuritySettings(s.now().UTC()), nil
	}
	settings.TwoFactorAuth.Methods = FilterMethods(settings.TwoFactorAuth.Methods)
	return settings, nil
}

// SaveSecuritySettings validates and stores settings, stamping UpdatedAt
func (s *SettingsService) SaveSecuritySettings(ctx context.Context, accountID uuid.UUID, settings SecuritySettings) (SecuritySettings, error) {
	if err := settings.Validate(); err != nil {
		return SecuritySettings{}, errs.Wrap(err, errs.ErrCodeInvalidInput, "invalid security settings")
	}

	now := s.now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	settings.TwoFactorAuth.Methods = FilterMethods(settings.TwoFactorAuth.Methods)

	raw, err := json.Marshal(settings)
	if err != nil {
		return SecuritySettings{}, fmt.Errorf("failed to encode security settings: %w", err)
	}
	if err := s.store.Set(ctx, settingsKey(accountID), string(raw)); err != nil {
		return SecuritySettings{}, errs.StorageFailure(err, "failed to save security settings")
	}
	return settings, nil
}

// SyncTwoFactor updates the 2FA section of the account's settings
func (s *SettingsService) SyncTwoFactor(ctx context.Context, accountID uuid.UUID, enabled bool, methods []string) error {
	current, err := s.GetSecuritySettings(ctx, accountID)
	if err != nil {
		return err
	}
	current.TwoFactorAuth = TwoFactorAuth{Enabled: enabled, Methods: methods}
	_, err = s.SaveSecuritySettings(ctx, accountID, current)
	return err
}
