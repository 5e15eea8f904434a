package config

import (
	"github.com/tendant/simple-twofa/pkg/notification"
)

// EmailConfig holds SMTP settings for security notices. Notices go to the log
// only while Host is empty.
type EmailConfig struct {
	Host             string `env:"EMAIL_HOST"`
	Port             uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username         string `env:"EMAIL_USERNAME"`
	Password         string `env:"EMAIL_PASSWORD"`
	From             string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS              bool   `env:"EMAIL_TLS" env-default:"false"`
	DefaultRecipient string `env:"EMAIL_DEFAULT_RECIPIENT"`
}

// IsConfigured returns true if an SMTP host is set
func (e EmailConfig) IsConfigured() bool {
	return e.Host != ""
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}
