package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/tendant/simple-twofa/pkg/errors"
	"github.com/tendant/simple-twofa/pkg/kvstore"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type brokenStore struct {
	kvstore.Store
}

func (brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func newTestService() (*SettingsService, *kvstore.InMemoryStore) {
	store := kvstore.NewInMemoryStore()
	return NewSettingsService(store, WithClock(func() time.Time { return fixedNow })), store
}

func TestGetSecuritySettingsDefaults(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.GetSecuritySettings(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultSecuritySettings(fixedNow), got)
	assert.False(t, got.TwoFactorAuth.Enabled)
	assert.Equal(t, []string{MethodAuthenticator}, got.TwoFactorAuth.Methods)
	assert.Equal(t, int64(300000), got.RateLimiting.BlockDuration)
}

func TestSaveAndGetSecuritySettings(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	accountID := uuid.New()

	in := DefaultSecuritySettings(time.Time{})
	in.Session.MaxSessions = 2
	in.TwoFactorAuth.Methods = []string{"email", "carrier-pigeon", "email"}

	saved, err := svc.SaveSecuritySettings(ctx, accountID, in)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, saved.CreatedAt)
	assert.Equal(t, fixedNow, saved.UpdatedAt)
	assert.Equal(t, []string{MethodEmail}, saved.TwoFactorAuth.Methods)

	got, err := svc.GetSecuritySettings(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Session.MaxSessions)
	assert.Equal(t, []string{MethodEmail}, got.TwoFactorAuth.Methods)
}

func TestSaveSecuritySettingsRejectsNegativeValues(t *testing.T) {
	svc, store := newTestService()

	in := DefaultSecuritySettings(fixedNow)
	in.Session.TimeoutMinutes = -1

	_, err := svc.SaveSecuritySettings(context.Background(), uuid.New(), in)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidInput))
	assert.Contains(t, err.Error(), "session.timeout_minutes")
	assert.Equal(t, 0, store.Len())
}

func TestGetSecuritySettingsCorruptDocumentFallsBack(t *testing.T) {
	svc, store := newTestService()
	accountID := uuid.New()
	require.NoError(t, store.Set(context.Background(), settingsKey(accountID), "{not json"))

	got, err := svc.GetSecuritySettings(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, DefaultSecuritySettings(fixedNow), got)
}

func TestGetSecuritySettingsStorageFailure(t *testing.T) {
	svc := NewSettingsService(brokenStore{})

	_, err := svc.GetSecuritySettings(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrCodeStorageFailure))
}

func TestSyncTwoFactor(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	accountID := uuid.New()

	before := DefaultSecuritySettings(fixedNow)
	before.Session.MaxSessions = 7
	_, err := svc.SaveSecuritySettings(ctx, accountID, before)
	require.NoError(t, err)

	require.NoError(t, svc.SyncTwoFactor(ctx, accountID, true, []string{MethodAuthenticator}))
	got, err := svc.GetSecuritySettings(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorAuth.Enabled)
	assert.Equal(t, []string{MethodAuthenticator}, got.TwoFactorAuth.Methods)
	assert.Equal(t, 7, got.Session.MaxSessions, "other sections are preserved")

	require.NoError(t, svc.SyncTwoFactor(ctx, accountID, false, nil))
	got, err = svc.GetSecuritySettings(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, got.TwoFactorAuth.Enabled)
	assert.Empty(t, got.TwoFactorAuth.Methods)
}

func TestFilterMethods(t *testing.T) {
	assert.Equal(t, []string{}, FilterMethods(nil))
	assert.Equal(t, []string{"sms", "authenticator"}, FilterMethods([]string{"sms", "push", "authenticator", "sms"}))
}
