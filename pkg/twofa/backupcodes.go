package twofa

import (
	"context"
	"crypto/subtle"

	"github.com/google/uuid"
)

// BackupCodeStore manages the single-use recovery codes of enabled accounts.
// Callers serialize per account.
type BackupCodeStore struct {
	repo      TwoFARepository
	generator *CodeGenerator
}

func NewBackupCodeStore(repo TwoFARepository, generator *CodeGenerator) *BackupCodeStore {
	return &BackupCodeStore{repo: repo, generator: generator}
}

// Contains reports whether code is an unused backup code of the account.
// Contains and Consume load the record themselves and serve callers outside
// the verification gate; the gate uses Take on the record it already holds.
func (b *BackupCodeStore) Contains(ctx context.Context, accountID uuid.UUID, code string) (bool, error) {
	record, err := b.enabledRecord(ctx, accountID)
	if err != nil {
		return false, err
	}
	return containsCode(record.BackupCodes, normalizeCode(code)), nil
}

// Consume removes code from the account's backup codes.
// It returns ErrCodeNotFound when the code is not present.
func (b *BackupCodeStore) Consume(ctx context.Context, accountID uuid.UUID, code string) error {
	record, err := b.enabledRecord(ctx, accountID)
	if err != nil {
		return err
	}
	if !b.Take(record, code) {
		return ErrCodeNotFound
	}
	return b.repo.SaveEnabledRecord(ctx, accountID, *record)
}

// Take removes code from an already loaded record and reports whether it was
// present. The caller persists the record.
func (b *BackupCodeStore) Take(record *EnabledRecord, code string) bool {
	return consumeCode(record, normalizeCode(code))
}

// Regenerate replaces all backup codes with a fresh set
func (b *BackupCodeStore) Regenerate(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	record, err := b.enabledRecord(ctx, accountID)
	if err != nil {
		return nil, err
	}
	codes, err := b.generator.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	record.BackupCodes = codes
	if err := b.repo.SaveEnabledRecord(ctx, accountID, *record); err != nil {
		return nil, err
	}
	return append([]string(nil), codes...), nil
}

// List returns the unused backup codes, or an empty slice when 2FA is not enabled
func (b *BackupCodeStore) List(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	record, err := b.repo.GetEnabledRecord(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Enabled {
		return []string{}, nil
	}
	return append([]string{}, record.BackupCodes...), nil
}

func (b *BackupCodeStore) enabledRecord(ctx context.Context, accountID uuid.UUID) (*EnabledRecord, error) {
	record, err := b.repo.GetEnabledRecord(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Enabled {
		return nil, ErrNotEnabled
	}
	return record, nil
}

func containsCode(codes []string, code string) bool {
	if code == "" {
		return false
	}
	found := false
	for _, c := range codes {
		if subtle.ConstantTimeCompare([]byte(c), []byte(code)) == 1 {
			found = true
		}
	}
	return found
}

// consumeCode removes every occurrence of code from record and reports
// whether any was present
func consumeCode(record *EnabledRecord, code string) bool {
	if !containsCode(record.BackupCodes, code) {
		return false
	}
	remaining := make([]string, 0, len(record.BackupCodes))
	for _, c := range record.BackupCodes {
		if c != code {
			remaining = append(remaining, c)
		}
	}
	record.BackupCodes = remaining
	return true
}
