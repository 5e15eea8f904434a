package twofa

import (
	"time"

	errs "github.com/tendant/simple-twofa/pkg/errors"
)

// Sentinel errors. Match with errors.Is; the returned errors may carry details.
var (
	ErrSetupNotFound = errs.New(errs.ErrCode2FASetupNotFound, "2FA setup not found, please start setup again")
	ErrInvalidCode   = errs.New(errs.ErrCode2FAInvalid, "invalid 2FA code")
	ErrAccountLocked = errs.New(errs.ErrCodeAccountLocked, "too many failed attempts, account is locked")
	ErrNotEnabled    = errs.New(errs.ErrCode2FANotEnabled, "2FA not enabled")
	ErrCodeNotFound  = errs.New(errs.ErrCodeBackupCodeNotFound, "backup code not found")
)

const (
	detailUnlockAt          = "unlock_at"
	detailRemainingAttempts = "remaining_attempts"
)

func lockedError(until time.Time) error {
	return ErrAccountLocked.WithDetail(detailUnlockAt, until)
}

func invalidCodeError(remaining int) error {
	return ErrInvalidCode.WithDetail(detailRemainingAttempts, remaining)
}

func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	return errs.StorageFailure(err, message)
}

// UnlockTimeFromError returns the unlock time carried by an AccountLocked error
func UnlockTimeFromError(err error) (time.Time, bool) {
	until, ok := errs.GetDetails(err)[detailUnlockAt].(time.Time)
	return until, ok
}

// RemainingAttemptsFromError returns the attempts left carried by an InvalidCode error
func RemainingAttemptsFromError(err error) (int, bool) {
	remaining, ok := errs.GetDetails(err)[detailRemainingAttempts].(int)
	return remaining, ok
}
