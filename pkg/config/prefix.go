package config

import "strings"

// PrefixConfig holds the mount points of the API route groups
type PrefixConfig struct {
	TwoFA    string `env:"API_PREFIX_2FA" env-default:"/api/2fa"`
	Settings string `env:"API_PREFIX_SETTINGS" env-default:"/api/settings"`
}

// Normalized returns the prefixes with a leading and no trailing slash
func (p PrefixConfig) Normalized() PrefixConfig {
	return PrefixConfig{
		TwoFA:    normalizePrefix(p.TwoFA, "/api/2fa"),
		Settings: normalizePrefix(p.Settings, "/api/settings"),
	}
}

func normalizePrefix(prefix, fallback string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fallback
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if len(prefix) > 1 {
		prefix = strings.TrimRight(prefix, "/")
	}
	return prefix
}
