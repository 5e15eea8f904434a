package twofa

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoOpTwoFactorService is a no-op implementation of TwoFactorService.
// It lets callers that depend on TwoFactorService run with 2FA turned off:
// every account reports 2FA as not enabled and never locked.
type NoOpTwoFactorService struct{}

// NewNoOpTwoFactorService creates a new no-op two-factor service.
func NewNoOpTwoFactorService() TwoFactorService {
	return &NoOpTwoFactorService{}
}

func (n *NoOpTwoFactorService) BeginSetup(ctx context.Context, accountID uuid.UUID, accountLabel string) (SetupResult, error) {
	return SetupResult{}, ErrNotEnabled
}

func (n *NoOpTwoFactorService) VerifySetup(ctx context.Context, accountID uuid.UUID, code string) (VerificationResult, error) {
	return VerificationResult{Message: "2FA not enabled"}, ErrNotEnabled
}

func (n *NoOpTwoFactorService) PendingSetup(ctx context.Context, accountID uuid.UUID) (QRPayload, error) {
	return QRPayload{}, ErrSetupNotFound
}

func (n *NoOpTwoFactorService) Verify(ctx context.Context, accountID uuid.UUID, code string) (VerificationResult, error) {
	return VerificationResult{Message: "2FA not enabled"}, ErrNotEnabled
}

func (n *NoOpTwoFactorService) Disable(ctx context.Context, accountID uuid.UUID, confirmationToken string) error {
	return nil
}

func (n *NoOpTwoFactorService) IsEnabled(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return false, nil
}

func (n *NoOpTwoFactorService) IsLocked(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return false, nil
}

func (n *NoOpTwoFactorService) UnlockTime(ctx context.Context, accountID uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (n *NoOpTwoFactorService) GetBackupCodes(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	return []string{}, nil // Return empty slice, not an error
}

func (n *NoOpTwoFactorService) RegenerateBackupCodes(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	return nil, ErrNotEnabled
}

func (n *NoOpTwoFactorService) Status(ctx context.Context, accountID uuid.UUID) (Status, error) {
	return Status{}, nil
}
