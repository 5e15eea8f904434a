package twofa

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/tendant/simple-twofa/pkg/errors"
	"github.com/tendant/simple-twofa/pkg/kvstore"
	"github.com/tendant/simple-twofa/pkg/notification"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	service *TwoFaService
	store   *kvstore.InMemoryStore
	clock   *fakeClock
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := kvstore.NewInMemoryStore()
	clock := newFakeClock()
	all := append([]Option{WithClock(clock.Now)}, opts...)
	return &testEnv{
		service: NewTwoFaService(NewKVTwoFARepository(store), all...),
		store:   store,
		clock:   clock,
	}
}

func (e *testEnv) currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := e.service.Generator().CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a 6-digit code that does not match any accepted window
func (e *testEnv) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		ok, err := e.service.Generator().Matches(secret, candidate, e.clock.Now())
		require.NoError(t, err)
		if !ok {
			return candidate
		}
	}
	t.Fatal("no wrong code found")
	return ""
}

// enable runs setup and confirmation, returning the setup result
func (e *testEnv) enable(t *testing.T, accountID uuid.UUID) SetupResult {
	t.Helper()
	ctx := context.Background()
	setup, err := e.service.BeginSetup(ctx, accountID, "admin@example.com")
	require.NoError(t, err)
	result, err := e.service.VerifySetup(ctx, accountID, e.currentCode(t, setup.Secret))
	require.NoError(t, err)
	require.True(t, result.Success)
	return setup
}

func TestBeginSetup(t *testing.T) {
	env := newTestEnv(t, WithIssuer("MyApp"))
	ctx := context.Background()
	accountID := uuid.New()

	setup, err := env.service.BeginSetup(ctx, accountID, "admin@example.com")
	require.NoError(t, err)

	assert.Len(t, setup.Secret, SecretLength)
	assert.Len(t, setup.BackupCodes, BackupCodeCount)
	assert.Equal(t, setup.Secret, setup.QRPayload.Secret)
	assert.Equal(t, "MyApp", setup.QRPayload.Issuer)
	assert.Equal(t, "admin@example.com", setup.QRPayload.AccountLabel)
	assert.Contains(t, setup.QRPayload.URL, "otpauth://totp/")
	assert.Contains(t, setup.QRPayload.URL, "secret="+setup.Secret)

	enabled, err := env.service.IsEnabled(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, enabled)

	_, found, err := env.store.Get(ctx, RecordKey(accountID, kindSetup))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBeginSetupDefaultsAccountLabel(t *testing.T) {
	env := newTestEnv(t)

	setup, err := env.service.BeginSetup(context.Background(), uuid.New(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultAccountLabel, setup.QRPayload.AccountLabel)
	assert.Equal(t, DefaultIssuer, setup.QRPayload.Issuer)
}

func TestBeginSetupReplacesPendingSetup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()

	first, err := env.service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)
	second, err := env.service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	result, err := env.service.VerifySetup(ctx, accountID, env.currentCode(t, second.Secret))
	require.NoError(t, err)
	assert.True(t, result.Success)

	codes, err := env.service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, second.BackupCodes, codes)
}

func TestPendingSetup(t *testing.T) {
	env := newTestEnv(t, WithIssuer("MyApp"))
	ctx := context.Background()
	accountID := uuid.New()

	_, err := env.service.PendingSetup(ctx, accountID)
	assert.ErrorIs(t, err, ErrSetupNotFound)

	setup, err := env.service.BeginSetup(ctx, accountID, "ops@example.com")
	require.NoError(t, err)

	payload, err := env.service.PendingSetup(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, setup.QRPayload, payload)

	_, err = env.service.VerifySetup(ctx, accountID, env.currentCode(t, setup.Secret))
	require.NoError(t, err)
	_, err = env.service.PendingSetup(ctx, accountID)
	assert.ErrorIs(t, err, ErrSetupNotFound)
}

func TestVerifySetupAcceptsAdjacentWindows(t *testing.T) {
	for _, offset := range []int64{-1, 0, 1} {
		env := newTestEnv(t)
		ctx := context.Background()
		accountID := uuid.New()

		setup, err := env.service.BeginSetup(ctx, accountID, "admin")
		require.NoError(t, err)

		window := TimeWindow(env.clock.Now().Unix())
		code, err := env.service.Generator().CodeAt(setup.Secret, window+offset)
		require.NoError(t, err)

		result, err := env.service.VerifySetup(ctx, accountID, code)
		require.NoError(t, err, "offset %d", offset)
		assert.True(t, result.Success)
		assert.Equal(t, MethodTOTP, result.Method)

		enabled, err := env.service.IsEnabled(ctx, accountID)
		require.NoError(t, err)
		assert.True(t, enabled)

		_, found, err := env.store.Get(ctx, RecordKey(accountID, kindSetup))
		require.NoError(t, err)
		assert.False(t, found, "pending setup should be removed")
	}
}

func TestVerifySetupWithoutSetup(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.service.VerifySetup(context.Background(), uuid.New(), "123456")
	assert.ErrorIs(t, err, ErrSetupNotFound)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestVerifySetupInvalidCodeIsNotCounted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()

	setup, err := env.service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		result, err := env.service.VerifySetup(ctx, accountID, env.wrongCode(t, setup.Secret))
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.False(t, result.Success)
		assert.Nil(t, result.RemainingAttempts)
	}

	locked, err := env.service.IsLocked(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, locked)

	// the pending setup survives failed confirmations
	result, err := env.service.VerifySetup(ctx, accountID, env.currentCode(t, setup.Secret))
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestVerifySetupExpiredSetup(t *testing.T) {
	env := newTestEnv(t, WithSetupTTL(10*time.Minute))
	ctx := context.Background()
	accountID := uuid.New()

	setup, err := env.service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)

	env.clock.Advance(11 * time.Minute)
	_, err = env.service.VerifySetup(ctx, accountID, env.currentCode(t, setup.Secret))
	assert.ErrorIs(t, err, ErrSetupNotFound)

	_, found, err := env.store.Get(ctx, RecordKey(accountID, kindSetup))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVerifyWithTOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)

	env.clock.Advance(5 * time.Minute)
	result, err := env.service.Verify(ctx, accountID, env.currentCode(t, setup.Secret))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, MethodTOTP, result.Method)

	status, err := env.service.Status(ctx, accountID)
	require.NoError(t, err)
	require.NotNil(t, status.LastUsedAt)
	assert.True(t, status.LastUsedAt.Equal(env.clock.Now()))
	assert.Equal(t, BackupCodeCount, status.BackupCodesRemaining)
}

func TestVerifyBackupCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)
	code := setup.BackupCodes[0]

	result, err := env.service.Verify(ctx, accountID, code)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, MethodBackupCode, result.Method)

	codes, err := env.service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.NotContains(t, codes, code)
	assert.Len(t, codes, BackupCodeCount-1)

	result, err = env.service.Verify(ctx, accountID, code)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.False(t, result.Success)
	require.NotNil(t, result.RemainingAttempts)
	assert.Equal(t, DefaultMaxAttempts-1, *result.RemainingAttempts)
}

func TestVerifyLocksAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)
	wrong := env.wrongCode(t, setup.Secret)

	for _, want := range []int{2, 1} {
		result, err := env.service.Verify(ctx, accountID, wrong)
		assert.ErrorIs(t, err, ErrInvalidCode)
		require.NotNil(t, result.RemainingAttempts)
		assert.Equal(t, want, *result.RemainingAttempts)

		remaining, ok := RemainingAttemptsFromError(err)
		assert.True(t, ok)
		assert.Equal(t, want, remaining)
	}

	lockedAt := env.clock.Now()
	result, err := env.service.Verify(ctx, accountID, wrong)
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.False(t, result.Success)
	require.NotNil(t, result.RemainingAttempts)
	assert.Equal(t, 0, *result.RemainingAttempts)
	require.NotNil(t, result.LockedUntil)
	assert.True(t, result.LockedUntil.Equal(lockedAt.Add(DefaultLockoutDuration)))

	until, ok := UnlockTimeFromError(err)
	assert.True(t, ok)
	assert.True(t, until.Equal(*result.LockedUntil))

	// a correct code is refused while locked and does not extend the lock
	env.clock.Advance(5 * time.Minute)
	result, err = env.service.Verify(ctx, accountID, env.currentCode(t, setup.Secret))
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.False(t, result.Success)
	unlock, err := env.service.UnlockTime(ctx, accountID)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, unlock.Equal(lockedAt.Add(DefaultLockoutDuration)))

	// backup codes are refused too
	_, err = env.service.Verify(ctx, accountID, setup.BackupCodes[0])
	assert.ErrorIs(t, err, ErrAccountLocked)
	codes, err := env.service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Contains(t, codes, setup.BackupCodes[0])

	env.clock.Advance(10 * time.Minute)
	result, err = env.service.Verify(ctx, accountID, env.currentCode(t, setup.Secret))
	require.NoError(t, err)
	assert.True(t, result.Success)

	status, err := env.service.Status(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Equal(t, 0, status.FailedAttempts)
}

func TestExpiredLockClearsFailureCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)
	wrong := env.wrongCode(t, setup.Secret)

	for i := 0; i < DefaultMaxAttempts; i++ {
		_, _ = env.service.Verify(ctx, accountID, wrong)
	}
	locked, err := env.service.IsLocked(ctx, accountID)
	require.NoError(t, err)
	require.True(t, locked)

	env.clock.Advance(DefaultLockoutDuration)

	// UnlockTime does not modify state
	unlock, err := env.service.UnlockTime(ctx, accountID)
	require.NoError(t, err)
	assert.Nil(t, unlock)
	_, found, err := env.store.Get(ctx, RecordKey(accountID, kindLockout))
	require.NoError(t, err)
	assert.True(t, found)

	locked, err = env.service.IsLocked(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, locked)
	_, found, err = env.store.Get(ctx, RecordKey(accountID, kindLockout))
	require.NoError(t, err)
	assert.False(t, found)

	wrong = env.wrongCode(t, setup.Secret)
	result, err := env.service.Verify(ctx, accountID, wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, DefaultMaxAttempts-1, *result.RemainingAttempts)
}

func TestLockHoldsUntilDeadline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)
	wrong := env.wrongCode(t, setup.Secret)

	for i := 0; i < DefaultMaxAttempts; i++ {
		_, _ = env.service.Verify(ctx, accountID, wrong)
	}

	env.clock.Advance(DefaultLockoutDuration - time.Nanosecond)
	locked, err := env.service.IsLocked(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, locked)
	_, err = env.service.Verify(ctx, accountID, env.currentCode(t, setup.Secret))
	assert.ErrorIs(t, err, ErrAccountLocked)

	env.clock.Advance(time.Nanosecond)
	locked, err = env.service.IsLocked(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)
	wrong := env.wrongCode(t, setup.Secret)

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		_, err := env.service.Verify(ctx, accountID, wrong)
		require.ErrorIs(t, err, ErrInvalidCode)
	}
	_, err := env.service.Verify(ctx, accountID, setup.BackupCodes[0])
	require.NoError(t, err)

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		_, err := env.service.Verify(ctx, accountID, wrong)
		require.ErrorIs(t, err, ErrInvalidCode)
	}
	locked, err := env.service.IsLocked(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestCustomLockoutPolicy(t *testing.T) {
	env := newTestEnv(t, WithMaxAttempts(5), WithLockoutDuration(time.Minute))
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)
	wrong := env.wrongCode(t, setup.Secret)

	for i := 0; i < 4; i++ {
		_, err := env.service.Verify(ctx, accountID, wrong)
		require.ErrorIs(t, err, ErrInvalidCode)
	}
	result, err := env.service.Verify(ctx, accountID, wrong)
	require.ErrorIs(t, err, ErrAccountLocked)
	assert.True(t, result.LockedUntil.Equal(env.clock.Now().Add(time.Minute)))
}

func TestVerifyNotEnabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()

	for i := 0; i < 5; i++ {
		result, err := env.service.Verify(ctx, accountID, "123456")
		assert.ErrorIs(t, err, ErrNotEnabled)
		assert.False(t, result.Success)
	}

	assert.Equal(t, 0, env.store.Len())
}

func TestDisable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)

	// leave a pending setup and a failure behind
	_, err := env.service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)
	_, err = env.service.Verify(ctx, accountID, env.wrongCode(t, setup.Secret))
	require.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, env.service.Disable(ctx, accountID, "ignored"))
	assert.Equal(t, 0, env.store.Len())

	enabled, err := env.service.IsEnabled(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, enabled)

	_, err = env.service.Verify(ctx, accountID, env.currentCode(t, setup.Secret))
	assert.ErrorIs(t, err, ErrNotEnabled)
	_, err = env.service.Verify(ctx, accountID, setup.BackupCodes[0])
	assert.ErrorIs(t, err, ErrNotEnabled)

	// disabling again is a no-op
	require.NoError(t, env.service.Disable(ctx, accountID, ""))
}

func TestBackupCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()

	codes, err := env.service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, codes)
	assert.NotNil(t, codes)

	_, err = env.service.RegenerateBackupCodes(ctx, accountID)
	assert.ErrorIs(t, err, ErrNotEnabled)

	setup := env.enable(t, accountID)
	codes, err = env.service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, setup.BackupCodes, codes)

	fresh, err := env.service.RegenerateBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, fresh, BackupCodeCount)

	codes, err = env.service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, fresh, codes)

	for _, old := range setup.BackupCodes {
		if contains(fresh, old) {
			continue
		}
		_, err = env.service.Verify(ctx, accountID, old)
		assert.ErrorIs(t, err, ErrInvalidCode)
		break
	}
	result, err := env.service.Verify(ctx, accountID, fresh[0])
	require.NoError(t, err)
	assert.Equal(t, MethodBackupCode, result.Method)
}

func TestBackupCodeStoreConsume(t *testing.T) {
	store := kvstore.NewInMemoryStore()
	repo := NewKVTwoFARepository(store)
	codes := NewBackupCodeStore(repo, NewCodeGenerator(nil, nil))
	ctx := context.Background()
	accountID := uuid.New()

	err := codes.Consume(ctx, accountID, "12345678")
	assert.ErrorIs(t, err, ErrNotEnabled)

	require.NoError(t, repo.SaveEnabledRecord(ctx, accountID, EnabledRecord{
		Enabled:     true,
		Secret:      rfcSecret,
		BackupCodes: []string{"11111111", "22222222", "11111111"},
	}))

	ok, err := codes.Contains(ctx, accountID, "1111 1111")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, codes.Consume(ctx, accountID, "11111111"))
	remaining, err := codes.List(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, []string{"22222222"}, remaining)

	err = codes.Consume(ctx, accountID, "11111111")
	assert.ErrorIs(t, err, ErrCodeNotFound)

	record := &EnabledRecord{Enabled: true, BackupCodes: []string{"33333333", "44444444"}}
	assert.True(t, codes.Take(record, " 3333-3333 "))
	assert.Equal(t, []string{"44444444"}, record.BackupCodes)
	assert.False(t, codes.Take(record, "33333333"))
	assert.False(t, codes.Take(record, ""))
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()

	status, err := env.service.Status(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.False(t, status.SetupPending)
	assert.Equal(t, DefaultMaxAttempts, status.MaxAttempts)

	_, err = env.service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)
	status, err = env.service.Status(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, status.SetupPending)

	setup := env.enable(t, accountID)
	_, err = env.service.Verify(ctx, accountID, env.wrongCode(t, setup.Secret))
	require.ErrorIs(t, err, ErrInvalidCode)

	status, err = env.service.Status(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.False(t, status.SetupPending)
	assert.Equal(t, "admin@example.com", status.AccountLabel)
	assert.Equal(t, 1, status.FailedAttempts)
	assert.False(t, status.Locked)
	require.NotNil(t, status.EnabledAt)
}

type failingStore struct {
	kvstore.Store
	failGet    bool
	failSet    bool
	failDelete bool
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failGet {
		return "", false, errDiskFull
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.failSet {
		return errDiskFull
	}
	return s.Store.Set(ctx, key, value)
}

func (s *failingStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return errDiskFull
	}
	return s.Store.Delete(ctx, key)
}

func TestStorageFailuresAreReported(t *testing.T) {
	store := &failingStore{Store: kvstore.NewInMemoryStore()}
	clock := newFakeClock()
	service := NewTwoFaService(NewKVTwoFARepository(store), WithClock(clock.Now))
	ctx := context.Background()
	accountID := uuid.New()

	setup, err := service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)
	code, err := service.Generator().CurrentCode(setup.Secret, clock.Now())
	require.NoError(t, err)
	_, err = service.VerifySetup(ctx, accountID, code)
	require.NoError(t, err)

	store.failGet = true
	result, err := service.Verify(ctx, accountID, code)
	assert.False(t, result.Success)
	assert.True(t, errs.IsCode(err, errs.ErrCodeStorageFailure))
	assert.ErrorIs(t, err, errDiskFull)
	assert.NotErrorIs(t, err, ErrInvalidCode)

	_, err = service.IsEnabled(ctx, accountID)
	assert.True(t, errs.IsCode(err, errs.ErrCodeStorageFailure))

	store.failGet = false
	store.failSet = true
	_, err = service.Verify(ctx, accountID, "000000")
	assert.True(t, errs.IsCode(err, errs.ErrCodeStorageFailure))
	_, err = service.BeginSetup(ctx, uuid.New(), "admin")
	assert.True(t, errs.IsCode(err, errs.ErrCodeStorageFailure))
}

func TestCorruptRecordIsStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := uuid.New()
	require.NoError(t, env.store.Set(ctx, RecordKey(accountID, kindEnabled), "{not json"))

	_, err := env.service.Verify(ctx, accountID, "123456")
	assert.True(t, errs.IsCode(err, errs.ErrCodeStorageFailure))
}

func TestConcurrentBackupCodeUseSucceedsOnce(t *testing.T) {
	env := newTestEnv(t, WithMaxAttempts(100))
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)

	var successes int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.service.Verify(ctx, accountID, setup.BackupCodes[0])
			if err == nil && result.Success {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	codes, err := env.service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, codes, BackupCodeCount-1)
}

func TestConcurrentFailuresAreAllCounted(t *testing.T) {
	const attempts = 50
	env := newTestEnv(t, WithMaxAttempts(attempts+1))
	ctx := context.Background()
	accountID := uuid.New()
	setup := env.enable(t, accountID)
	wrong := env.wrongCode(t, setup.Secret)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.service.Verify(ctx, accountID, wrong)
		}()
	}
	wg.Wait()

	status, err := env.service.Status(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, attempts, status.FailedAttempts)
	assert.False(t, status.Locked)

	_, err = env.service.Verify(ctx, accountID, wrong)
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestFailedLockoutResetKeepsBackupCode(t *testing.T) {
	store := &failingStore{Store: kvstore.NewInMemoryStore()}
	clock := newFakeClock()
	service := NewTwoFaService(NewKVTwoFARepository(store), WithClock(clock.Now))
	ctx := context.Background()
	accountID := uuid.New()

	setup, err := service.BeginSetup(ctx, accountID, "admin")
	require.NoError(t, err)
	code, err := service.Generator().CurrentCode(setup.Secret, clock.Now())
	require.NoError(t, err)
	_, err = service.VerifySetup(ctx, accountID, code)
	require.NoError(t, err)

	_, err = service.Verify(ctx, accountID, "0000000000")
	require.ErrorIs(t, err, ErrInvalidCode)

	store.failDelete = true
	result, err := service.Verify(ctx, accountID, setup.BackupCodes[0])
	assert.False(t, result.Success)
	assert.True(t, errs.IsCode(err, errs.ErrCodeStorageFailure))

	store.failDelete = false
	codes, err := service.GetBackupCodes(ctx, accountID)
	require.NoError(t, err)
	assert.Contains(t, codes, setup.BackupCodes[0])

	result, err = service.Verify(ctx, accountID, setup.BackupCodes[0])
	require.NoError(t, err)
	assert.Equal(t, MethodBackupCode, result.Method)
}

type recordingSync struct {
	mu    sync.Mutex
	calls []bool
	err   error
}

func (r *recordingSync) SyncTwoFactor(ctx context.Context, accountID uuid.UUID, enabled bool, methods []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, enabled)
	if enabled && len(methods) != 1 {
		return errors.New("unexpected methods")
	}
	return r.err
}

func TestSettingsSyncAndNotifications(t *testing.T) {
	settingsSync := &recordingSync{}
	mock := &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions("security@example.com", notification.WithDefaultTemplates())
	require.NoError(t, err)
	nm.RegisterNotifier(notification.LogSystem, mock)

	env := newTestEnv(t, WithSettingsSync(settingsSync), WithNotificationManager(nm))
	ctx := context.Background()
	accountID := uuid.New()

	setup := env.enable(t, accountID)
	_, err = env.service.Verify(ctx, accountID, env.currentCode(t, setup.Secret))
	require.NoError(t, err)
	_, err = env.service.RegenerateBackupCodes(ctx, accountID)
	require.NoError(t, err)
	require.NoError(t, env.service.Disable(ctx, accountID, ""))

	assert.Equal(t, []bool{true, false}, settingsSync.calls)
	assert.Equal(t, []notification.NoticeType{
		notification.TwoFactorEnabled,
		notification.BackupCodesRegenerated,
		notification.TwoFactorDisabled,
	}, mock.Types())
	assert.Equal(t, "admin@example.com", mock.SentNotifications[0].To)
	assert.Equal(t, accountID.String(), mock.SentNotifications[0].Data["AccountID"])
}

func TestSettingsSyncFailureDoesNotFailEnable(t *testing.T) {
	env := newTestEnv(t, WithSettingsSync(&recordingSync{err: errors.New("settings down")}))
	accountID := uuid.New()
	env.enable(t, accountID)

	enabled, err := env.service.IsEnabled(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestHashDerivationService(t *testing.T) {
	env := newTestEnv(t, WithDeriver(HashDeriver{}))
	accountID := uuid.New()
	setup := env.enable(t, accountID)

	expected, err := HashDeriver{}.Derive(setup.Secret, TimeWindow(env.clock.Now().Unix()))
	require.NoError(t, err)
	result, err := env.service.Verify(context.Background(), accountID, expected)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestAccountsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	aliceSetup := env.enable(t, alice)
	env.enable(t, bob)

	wrong := env.wrongCode(t, aliceSetup.Secret)
	for i := 0; i < DefaultMaxAttempts; i++ {
		_, _ = env.service.Verify(ctx, alice, wrong)
	}

	locked, err := env.service.IsLocked(ctx, alice)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = env.service.IsLocked(ctx, bob)
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = env.service.Verify(ctx, bob, aliceSetup.BackupCodes[0])
	assert.Error(t, err)
}

func TestNoOpTwoFactorService(t *testing.T) {
	svc := NewNoOpTwoFactorService()
	ctx := context.Background()
	id := uuid.New()

	enabled, err := svc.IsEnabled(ctx, id)
	require.NoError(t, err)
	assert.False(t, enabled)

	_, err = svc.Verify(ctx, id, "123456")
	assert.ErrorIs(t, err, ErrNotEnabled)
	_, err = svc.BeginSetup(ctx, id, "admin")
	assert.ErrorIs(t, err, ErrNotEnabled)

	codes, err := svc.GetBackupCodes(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestNewTwoFaServiceFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	_, err := NewTwoFaServiceFromConfig(kvstore.NewInMemoryStore(), cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.CodeDerivation = "md5"
	_, err = NewTwoFaServiceFromConfig(kvstore.NewInMemoryStore(), cfg)
	assert.Error(t, err)

	_, err = NewTwoFaServiceFromConfig(nil, DefaultConfig())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Issuer = "Acme"
	cfg.MaxAttempts = 4
	svc, err := NewTwoFaServiceFromConfig(kvstore.NewInMemoryStore(), cfg)
	require.NoError(t, err)
	status, err := svc.Status(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 4, status.MaxAttempts)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
