// Package errors provides structured error handling with error codes for simple-twofa.
//
// Errors carry a typed code, a human-readable message, optional details and an
// optional wrapped cause. Codes map to HTTP status codes so handlers can render
// any service error without inspecting its concrete type.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-twofa/pkg/errors"
//
//	// Declare a sentinel
//	var ErrInvalidCode = errors.New(errors.ErrCode2FAInvalid, "invalid verification code")
//
//	// Attach details to a copy of the sentinel
//	err := ErrInvalidCode.WithDetail("remaining_attempts", 2)
//
//	// Sentinels match by code
//	stderrors.Is(err, ErrInvalidCode) // true
//
//	// Wrap persistence failures so they are never mistaken for user errors
//	err := errors.StorageFailure(dbErr, "failed to load 2FA record")
//
// # Inspecting Errors
//
//	if errors.IsCode(err, errors.ErrCodeAccountLocked) {
//		until := errors.GetDetails(err)["unlock_at"]
//	}
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
package errors
