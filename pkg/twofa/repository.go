package twofa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-twofa/pkg/kvstore"
)

const (
	kindSetup   = "setup"
	kindEnabled = "enabled"
	kindLockout = "lockout"
)

// TwoFARepository persists per-account 2FA records.
// Getters return nil (or the zero LockoutState) when a record is absent.
// All failures are StorageFailure errors.
type TwoFARepository interface {
	GetPendingEnrollment(ctx context.Context, accountID uuid.UUID) (*PendingEnrollment, error)
	SavePendingEnrollment(ctx context.Context, accountID uuid.UUID, pending PendingEnrollment) error
	DeletePendingEnrollment(ctx context.Context, accountID uuid.UUID) error

	GetEnabledRecord(ctx context.Context, accountID uuid.UUID) (*EnabledRecord, error)
	SaveEnabledRecord(ctx context.Context, accountID uuid.UUID, record EnabledRecord) error
	DeleteEnabledRecord(ctx context.Context, accountID uuid.UUID) error

	GetLockoutState(ctx context.Context, accountID uuid.UUID) (LockoutState, error)
	SaveLockoutState(ctx context.Context, accountID uuid.UUID, state LockoutState) error
	DeleteLockoutState(ctx context.Context, accountID uuid.UUID) error
}

// KVTwoFARepository stores records as JSON documents in a kvstore.Store
type KVTwoFARepository struct {
	store kvstore.Store
}

// NewKVTwoFARepository creates a repository on top of store
func NewKVTwoFARepository(store kvstore.Store) *KVTwoFARepository {
	return &KVTwoFARepository{store: store}
}

// RecordKey returns the storage key of a record kind for an account
func RecordKey(accountID uuid.UUID, kind string) string {
	return fmt.Sprintf("twofa/%s/%s", accountID, kind)
}

func (r *KVTwoFARepository) GetPendingEnrollment(ctx context.Context, accountID uuid.UUID) (*PendingEnrollment, error) {
	var pending PendingEnrollment
	found, err := r.get(ctx, RecordKey(accountID, kindSetup), &pending)
	if err != nil || !found {
		return nil, err
	}
	return &pending, nil
}

func (r *KVTwoFARepository) SavePendingEnrollment(ctx context.Context, accountID uuid.UUID, pending PendingEnrollment) error {
	return r.set(ctx, RecordKey(accountID, kindSetup), pending)
}

func (r *KVTwoFARepository) DeletePendingEnrollment(ctx context.Context, accountID uuid.UUID) error {
	return r.delete(ctx, RecordKey(accountID, kindSetup))
}

func (r *KVTwoFARepository) GetEnabledRecord(ctx context.Context, accountID uuid.UUID) (*EnabledRecord, error) {
	var record EnabledRecord
	found, err := r.get(ctx, RecordKey(accountID, kindEnabled), &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (r *KVTwoFARepository) SaveEnabledRecord(ctx context.Context, accountID uuid.UUID, record EnabledRecord) error {
	return r.set(ctx, RecordKey(accountID, kindEnabled), record)
}

func (r *KVTwoFARepository) DeleteEnabledRecord(ctx context.Context, accountID uuid.UUID) error {
	return r.delete(ctx, RecordKey(accountID, kindEnabled))
}

func (r *KVTwoFARepository) GetLockoutState(ctx context.Context, accountID uuid.UUID) (LockoutState, error) {
	var state LockoutState
	if _, err := r.get(ctx, RecordKey(accountID, kindLockout), &state); err != nil {
		return LockoutState{}, err
	}
	return state, nil
}

func (r *KVTwoFARepository) SaveLockoutState(ctx context.Context, accountID uuid.UUID, state LockoutState) error {
	return r.set(ctx, RecordKey(accountID, kindLockout), state)
}

func (r *KVTwoFARepository) DeleteLockoutState(ctx context.Context, accountID uuid.UUID) error {
	return r.delete(ctx, RecordKey(accountID, kindLockout))
}

func (r *KVTwoFARepository) get(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, found, err := r.store.Get(ctx, key)
	if err != nil {
		return false, storageError(err, "failed to read "+key)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, storageError(err, "failed to decode "+key)
	}
	return true, nil
}

func (r *KVTwoFARepository) set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return storageError(err, "failed to encode "+key)
	}
	return storageError(r.store.Set(ctx, key, string(raw)), "failed to write "+key)
}

func (r *KVTwoFARepository) delete(ctx context.Context, key string) error {
	return storageError(r.store.Delete(ctx, key), "failed to delete "+key)
}
