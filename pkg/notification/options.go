package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithLogger adds a notifier that writes notices to logger
func WithLogger(logger *slog.Logger) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(LogSystem, NewLogNotifier(logger))
		return nil
	}
}

// WithTwoFactorEnabledTemplate registers the 2FA enabled templates
func WithTwoFactorEnabledTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		if err := nm.RegisterNotification(TwoFactorEnabled, EmailSystem, NoticeTemplate{
			Subject: "Two-factor authentication enabled",
			Html:    loadTemplate("templates/email/two_factor_enabled.html"),
		}); err != nil {
			return err
		}
		return nm.RegisterNotification(TwoFactorEnabled, LogSystem, NoticeTemplate{
			Subject: "Two-factor authentication enabled",
			Text:    "2FA enabled for {{.AccountLabel}}",
		})
	}
}

// WithTwoFactorDisabledTemplate registers the 2FA disabled templates
func WithTwoFactorDisabledTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		if err := nm.RegisterNotification(TwoFactorDisabled, EmailSystem, NoticeTemplate{
			Subject: "Two-factor authentication disabled",
			Html:    loadTemplate("templates/email/two_factor_disabled.html"),
		}); err != nil {
			return err
		}
		return nm.RegisterNotification(TwoFactorDisabled, LogSystem, NoticeTemplate{
			Subject: "Two-factor authentication disabled",
			Text:    "2FA disabled for {{.AccountLabel}}",
		})
	}
}

// WithBackupCodesRegeneratedTemplate registers the backup code regeneration templates
func WithBackupCodesRegeneratedTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		if err := nm.RegisterNotification(BackupCodesRegenerated, EmailSystem, NoticeTemplate{
			Subject: "Backup codes regenerated",
			Html:    loadTemplate("templates/email/backup_codes_regenerated.html"),
		}); err != nil {
			return err
		}
		return nm.RegisterNotification(BackupCodesRegenerated, LogSystem, NoticeTemplate{
			Subject: "Backup codes regenerated",
			Text:    "Backup codes regenerated for {{.AccountLabel}}",
		})
	}
}

// WithDefaultTemplates registers all default notice templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		options := []NotificationManagerOption{
			WithTwoFactorEnabledTemplate(),
			WithTwoFactorDisabledTemplate(),
			WithBackupCodesRegeneratedTemplate(),
		}

		for _, opt := range options {
			if err := opt(nm); err != nil {
				return err
			}
		}

		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(defaultRecipient string, opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager(defaultRecipient)

	// Apply all options
	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
