// Package twofa implements time-based two-factor authentication with
// single-use backup codes and brute-force lockout.
//
// # Overview
//
// An account moves through three states:
//
//	not enrolled --BeginSetup--> pending --VerifySetup--> enabled --Disable--> not enrolled
//
// BeginSetup issues a 32-character base32 secret, an otpauth:// URL for
// authenticator apps and ten 8-digit backup codes. VerifySetup confirms the
// setup with a current 6-digit code. Once enabled, Verify accepts either a
// backup code (consumed on use) or a time-based code from the current 30
// second window or one window either side.
//
// Three consecutive failed Verify calls lock the account for 15 minutes.
// A successful verification resets the counter; an expired lock is cleared
// on the next check.
//
// # Basic Usage
//
//	import (
//		"github.com/tendant/simple-twofa/pkg/kvstore"
//		"github.com/tendant/simple-twofa/pkg/twofa"
//	)
//
//	store := kvstore.NewInMemoryStore()
//	service := twofa.NewTwoFaService(
//		twofa.NewKVTwoFARepository(store),
//		twofa.WithIssuer("MyApp"),
//		twofa.WithMaxAttempts(3),
//		twofa.WithLockoutDuration(15*time.Minute),
//	)
//
//	setup, err := service.BeginSetup(ctx, accountID, "admin@example.com")
//	// show setup.QRPayload.URL as a QR code and setup.BackupCodes once
//
//	result, err := service.VerifySetup(ctx, accountID, "123456")
//
//	result, err = service.Verify(ctx, accountID, code)
//	switch {
//	case errors.Is(err, twofa.ErrAccountLocked):
//		until, _ := twofa.UnlockTimeFromError(err)
//	case errors.Is(err, twofa.ErrInvalidCode):
//		remaining := *result.RemainingAttempts
//	}
//
// # Errors
//
// Errors are *errors.Error values from pkg/errors and match the sentinels
// ErrSetupNotFound, ErrInvalidCode, ErrAccountLocked, ErrNotEnabled and
// ErrCodeNotFound with errors.Is. Persistence problems carry
// ErrCodeStorageFailure and are never reported as an invalid code.
//
// # Code derivation
//
// TOTPDeriver (default) produces RFC 6238 codes compatible with Google
// Authenticator and similar apps. HashDeriver is a SHA-256 based
// alternative kept for deployments that already issued codes with it.
//
// # Disabling 2FA
//
// Use NewNoOpTwoFactorService when 2FA is switched off; it reports every
// account as not enrolled.
package twofa
