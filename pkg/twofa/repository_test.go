package twofa

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-twofa/pkg/kvstore"
)

func TestKVTwoFARepositoryRoundTrip(t *testing.T) {
	store := kvstore.NewInMemoryStore()
	repo := NewKVTwoFARepository(store)
	ctx := context.Background()
	accountID := uuid.New()

	pending, err := repo.GetPendingEnrollment(ctx, accountID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	record, err := repo.GetEnabledRecord(ctx, accountID)
	require.NoError(t, err)
	assert.Nil(t, record)

	state, err := repo.GetLockoutState(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, LockoutState{}, state)

	until := time.Date(2024, 3, 1, 12, 15, 0, 0, time.UTC)
	require.NoError(t, repo.SaveLockoutState(ctx, accountID, LockoutState{FailedAttempts: 3, LockedUntil: &until}))

	raw, found, err := store.Get(ctx, "twofa/"+accountID.String()+"/lockout")
	require.NoError(t, err)
	require.True(t, found)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.EqualValues(t, 3, doc["failed_attempts"])
	assert.Equal(t, "2024-03-01T12:15:00Z", doc["locked_until"])

	state, err = repo.GetLockoutState(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, state.FailedAttempts)
	assert.True(t, state.LockedUntil.Equal(until))

	require.NoError(t, repo.DeleteLockoutState(ctx, accountID))
	state, err = repo.GetLockoutState(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, LockoutState{}, state)
}

func TestLockoutControllerRecordFailure(t *testing.T) {
	repo := NewKVTwoFARepository(kvstore.NewInMemoryStore())
	clock := newFakeClock()
	lockout := NewLockoutController(repo, 3, 15*time.Minute, clock.Now)
	ctx := context.Background()
	accountID := uuid.New()

	outcome, err := lockout.RecordFailure(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, FailureOutcome{FailedAttempts: 1, RemainingAttempts: 2}, outcome)

	_, err = lockout.RecordFailure(ctx, accountID)
	require.NoError(t, err)
	outcome, err = lockout.RecordFailure(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, outcome.Locked)
	assert.Equal(t, 0, outcome.RemainingAttempts)
	assert.True(t, outcome.LockedUntil.Equal(clock.Now().Add(15*time.Minute)))

	// the counter never exceeds the maximum
	outcome, err = lockout.RecordFailure(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.FailedAttempts)

	locked, err := lockout.CheckLocked(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, lockout.RecordSuccess(ctx, accountID))
	locked, err = lockout.CheckLocked(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockoutControllerDefaults(t *testing.T) {
	lockout := NewLockoutController(NewKVTwoFARepository(kvstore.NewInMemoryStore()), 0, 0, nil)
	assert.Equal(t, DefaultMaxAttempts, lockout.MaxAttempts())
	assert.Equal(t, DefaultLockoutDuration, lockout.lockoutDuration)
}
