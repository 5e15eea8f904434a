package config

import (
	"time"
)

// JWTConfig holds the HS256 settings shared by the server and the token command
type JWTConfig struct {
	Secret      string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer      string        `env:"JWT_ISSUER" env-default:"simple-twofa"`
	Audience    string        `env:"JWT_AUDIENCE" env-default:"simple-twofa"`
	TokenExpiry time.Duration `env:"JWT_TOKEN_EXPIRY" env-default:"15m"`
}

// IsDefaultSecret reports whether the secret was left at its development default
func (j JWTConfig) IsDefaultSecret() bool {
	return j.Secret == "very-secure-jwt-secret"
}
