package config

import "github.com/tendant/simple-twofa/pkg/logging"

// LogConfig controls the process logger
type LogConfig struct {
	Level      string `env:"LOG_LEVEL" env-default:"info"`
	Format     string `env:"LOG_FORMAT" env-description:"text or json; json in production when empty"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"5"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"30"`
}

// ToLoggingConfig converts the config for logging.Setup
func (l LogConfig) ToLoggingConfig(env Environment) logging.Config {
	format := l.Format
	if format == "" {
		format = logging.FormatText
		if env.IsProduction() {
			format = logging.FormatJSON
		}
	}
	return logging.Config{
		Level:      l.Level,
		Format:     format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}
