// Package config loads the twofa server configuration from environment
// variables with cleanenv. Each concern has its own struct:
//
//	ServerConfig     chi-demo AppConfig, BASE_URL, CORS_ORIGINS, API_PREFIX_*
//	StoreConfig      TWOFA_STORE, TWOFA_DATA_DIR, TWOFA_SQLITE_PATH, TWOFA_PG_*
//	TwoFAConfig      TWOFA_ISSUER, TWOFA_MAX_ATTEMPTS, TWOFA_LOCKOUT_DURATION, ...
//	JWTConfig        JWT_SECRET, JWT_ISSUER, JWT_AUDIENCE, JWT_TOKEN_EXPIRY
//	EmailConfig      EMAIL_HOST, EMAIL_PORT, EMAIL_FROM, ...
//	LogConfig        LOG_LEVEL, LOG_FORMAT, LOG_FILE, LOG_MAX_*
//	RateLimitConfig  RATELIMIT_*
//
// Typical startup:
//
//	config.LoadEnvFile()
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Each struct has a converter to the options type of the package it
// configures, e.g. TwoFAConfig.ToEngineConfig and StoreConfig.ToKVStoreConfig.
package config
