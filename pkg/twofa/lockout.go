package twofa

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 15 * time.Minute
)

// FailureOutcome is the lockout state after a recorded failure
type FailureOutcome struct {
	FailedAttempts    int
	RemainingAttempts int
	Locked            bool
	LockedUntil       *time.Time
}

// LockoutController counts consecutive failed verifications and locks an
// account once the count reaches maxAttempts. Callers serialize per account.
type LockoutController struct {
	repo            TwoFARepository
	maxAttempts     int
	lockoutDuration time.Duration
	now             func() time.Time
}

func NewLockoutController(repo TwoFARepository, maxAttempts int, lockoutDuration time.Duration, now func() time.Time) *LockoutController {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockoutDuration <= 0 {
		lockoutDuration = DefaultLockoutDuration
	}
	if now == nil {
		now = time.Now
	}
	return &LockoutController{
		repo:            repo,
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		now:             now,
	}
}

// MaxAttempts returns the number of failures that trigger a lock
func (c *LockoutController) MaxAttempts() int {
	return c.maxAttempts
}

// RecordFailure increments the failure counter, locking the account when it
// reaches maxAttempts. Counter and deadline are written together.
func (c *LockoutController) RecordFailure(ctx context.Context, accountID uuid.UUID) (FailureOutcome, error) {
	state, err := c.repo.GetLockoutState(ctx, accountID)
	if err != nil {
		return FailureOutcome{}, err
	}

	state.FailedAttempts++
	if state.FailedAttempts >= c.maxAttempts {
		state.FailedAttempts = c.maxAttempts
		until := c.now().Add(c.lockoutDuration)
		state.LockedUntil = &until
	}

	if err := c.repo.SaveLockoutState(ctx, accountID, state); err != nil {
		return FailureOutcome{}, err
	}

	return FailureOutcome{
		FailedAttempts:    state.FailedAttempts,
		RemainingAttempts: c.maxAttempts - state.FailedAttempts,
		Locked:            state.LockedUntil != nil,
		LockedUntil:       state.LockedUntil,
	}, nil
}

// RecordSuccess clears the failure counter and any lock
func (c *LockoutController) RecordSuccess(ctx context.Context, accountID uuid.UUID) error {
	return c.repo.DeleteLockoutState(ctx, accountID)
}

// CheckLocked reports whether the account is locked now. An expired lock is
// cleared together with the failure counter.
func (c *LockoutController) CheckLocked(ctx context.Context, accountID uuid.UUID) (bool, error) {
	_, locked, err := c.check(ctx, accountID)
	return locked, err
}

// UnlockTime returns the current lock deadline, or nil when the account is
// not locked. It does not modify state.
func (c *LockoutController) UnlockTime(ctx context.Context, accountID uuid.UUID) (*time.Time, error) {
	state, err := c.repo.GetLockoutState(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if state.LockedUntil == nil || !c.now().Before(*state.LockedUntil) {
		return nil, nil
	}
	until := *state.LockedUntil
	return &until, nil
}

func (c *LockoutController) check(ctx context.Context, accountID uuid.UUID) (LockoutState, bool, error) {
	state, err := c.repo.GetLockoutState(ctx, accountID)
	if err != nil {
		return LockoutState{}, false, err
	}
	if state.LockedUntil == nil {
		return state, false, nil
	}
	if c.now().Before(*state.LockedUntil) {
		return state, true, nil
	}

	if err := c.repo.DeleteLockoutState(ctx, accountID); err != nil {
		return LockoutState{}, false, err
	}
	return LockoutState{}, false, nil
}
