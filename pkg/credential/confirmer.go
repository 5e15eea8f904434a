package credential

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Confirmer checks the confirmation token required to disable 2FA.
// With no hash configured every token is accepted.
type Confirmer struct {
	hash   string
	hasher PasswordHasher
}

// NewConfirmer validates hash as a bcrypt hash. An empty hash disables confirmation.
func NewConfirmer(hash string) (*Confirmer, error) {
	hash = strings.TrimSpace(hash)
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
		}
	}
	return &Confirmer{hash: hash, hasher: BcryptHasher{}}, nil
}

// Required reports whether a token must be supplied
func (c *Confirmer) Required() bool {
	return c != nil && c.hash != ""
}

// Confirm reports whether token matches the configured hash
func (c *Confirmer) Confirm(token string) (bool, error) {
	if !c.Required() {
		return true, nil
	}
	if token == "" {
		return false, nil
	}
	return c.hasher.Verify(token, c.hash)
}
