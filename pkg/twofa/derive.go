package twofa

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Deriver maps a secret and a time window to a 6-digit code.
// Implementations must be deterministic.
type Deriver interface {
	Derive(secret string, window int64) (string, error)
}

const (
	DerivationTOTP = "totp"
	DerivationHash = "hash"
)

// TOTPDeriver derives RFC 6238 codes (HMAC-SHA1, 30 second period),
// compatible with standard authenticator apps.
type TOTPDeriver struct{}

func (TOTPDeriver) Derive(secret string, window int64) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, time.Unix(window*TimeStep, 0).UTC(), totp.ValidateOpts{
		Period:    TimeStep,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to derive totp code: %w", err)
	}
	return code, nil
}

// HashDeriver derives codes from SHA-256(secret || decimal window).
// It is not interoperable with authenticator apps.
type HashDeriver struct{}

func (HashDeriver) Derive(secret string, window int64) (string, error) {
	sum := sha256.Sum256([]byte(secret + strconv.FormatInt(window, 10)))
	n := binary.BigEndian.Uint64(sum[:8]) % 1000000
	return fmt.Sprintf("%06d", n), nil
}

// DeriverByName returns the deriver for a configured derivation name
func DeriverByName(name string) (Deriver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DerivationTOTP:
		return TOTPDeriver{}, nil
	case DerivationHash:
		return HashDeriver{}, nil
	default:
		return nil, fmt.Errorf("unsupported code derivation: %s (supported: totp, hash)", name)
	}
}
