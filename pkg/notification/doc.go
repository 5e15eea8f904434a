// Package notification sends security notices about 2FA changes.
//
// A NotificationManager holds one Notifier per delivery system and one
// NoticeTemplate per notice type and system. Send renders and delivers a
// notice on every system that has both.
//
// Two notifiers are provided:
//
//   - EmailNotifier delivers over SMTP using go-mail
//   - LogNotifier writes the notice to a slog.Logger
//
// # Usage
//
//	nm, err := notification.NewNotificationManagerWithOptions(
//	    "security@example.com",
//	    notification.WithSMTP(notification.SMTPConfig{
//	        Host: "smtp.example.com",
//	        Port: 587,
//	        TLS:  true,
//	        From: "noreply@example.com",
//	    }),
//	    notification.WithLogger(slog.Default()),
//	    notification.WithDefaultTemplates(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = nm.Send(notification.TwoFactorEnabled, notification.NotificationData{
//	    Data: map[string]string{"AccountLabel": "admin@example.com"},
//	})
//
// An empty NotificationData.To falls back to the manager's default recipient.
package notification
