package twofa

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// SecretAlphabet is the RFC 4648 base32 alphabet used for shared secrets
	SecretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	// SecretLength is the number of characters in a generated secret (160 bits)
	SecretLength = 32
	// BackupCodeCount is the number of backup codes issued per enrollment
	BackupCodeCount = 10
	// BackupCodeLength is the number of decimal digits in a backup code
	BackupCodeLength = 8
	// CodeDigits is the number of digits in a time-based code
	CodeDigits = 6
	// TimeStep is the length of a time window in seconds
	TimeStep = 30
	// ClockDrift is the number of windows accepted on either side of the current one
	ClockDrift = 1
)

// CodeGenerator produces secrets, backup codes and time-based codes.
type CodeGenerator struct {
	rand    io.Reader
	deriver Deriver
}

// NewCodeGenerator returns a generator reading randomness from r.
// A nil reader means crypto/rand and a nil deriver means TOTPDeriver.
func NewCodeGenerator(r io.Reader, deriver Deriver) *CodeGenerator {
	if r == nil {
		r = rand.Reader
	}
	if deriver == nil {
		deriver = TOTPDeriver{}
	}
	return &CodeGenerator{rand: r, deriver: deriver}
}

// GenerateSecret returns a fresh 32-character base32 secret
func (g *CodeGenerator) GenerateSecret() (string, error) {
	buf := make([]byte, SecretLength)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	// 256 is a multiple of 32, so masking keeps the distribution uniform.
	secret := make([]byte, SecretLength)
	for i, b := range buf {
		secret[i] = SecretAlphabet[b&31]
	}
	return string(secret), nil
}

// GenerateBackupCodes returns BackupCodeCount codes of BackupCodeLength digits.
// Codes are independent draws, so duplicates are possible but improbable.
func (g *CodeGenerator) GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	for i := 0; i < BackupCodeCount; i++ {
		code, err := g.randomDigits(BackupCodeLength)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// randomDigits draws n uniform decimal digits, rejecting bytes >= 250
func (g *CodeGenerator) randomDigits(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	buf := make([]byte, n)
	for sb.Len() < n {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			sb.WriteByte('0' + b%10)
			if sb.Len() == n {
				break
			}
		}
	}
	return sb.String(), nil
}

// CodeAt derives the code for secret in the given time window
func (g *CodeGenerator) CodeAt(secret string, window int64) (string, error) {
	return g.deriver.Derive(normalizeSecret(secret), window)
}

// CurrentCode derives the code for secret at now
func (g *CodeGenerator) CurrentCode(secret string, now time.Time) (string, error) {
	return g.CodeAt(secret, TimeWindow(now.Unix()))
}

// Matches reports whether code equals the code of any window within
// ClockDrift of the window containing now.
func (g *CodeGenerator) Matches(secret, code string, now time.Time) (bool, error) {
	if len(code) != CodeDigits {
		return false, nil
	}
	window := TimeWindow(now.Unix())
	for offset := int64(-ClockDrift); offset <= ClockDrift; offset++ {
		expected, err := g.CodeAt(secret, window+offset)
		if err != nil {
			return false, err
		}
		if expected == code {
			return true, nil
		}
	}
	return false, nil
}

// TimeWindow returns floor(unixSeconds / TimeStep)
func TimeWindow(unixSeconds int64) int64 {
	w := unixSeconds / TimeStep
	if unixSeconds < 0 && unixSeconds%TimeStep != 0 {
		w--
	}
	return w
}

func normalizeSecret(secret string) string {
	return strings.ToUpper(strings.TrimSpace(secret))
}

// normalizeCode strips whitespace and dashes users tend to type
func normalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			return -1
		}
		return r
	}, code)
}
