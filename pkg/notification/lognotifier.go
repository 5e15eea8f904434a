package notification

import (
	"log/slog"
)

// LogNotifier writes notices to a structured logger instead of delivering them
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	text, err := render(template.Text, notification.Data)
	if err != nil {
		return err
	}
	if text == "" {
		text = notification.Body
	}
	l.logger.Info("Security notice",
		"type", noticeType,
		"to", notification.To,
		"subject", subjectFor(notification, template),
		"account_id", notification.Data["AccountID"],
		"message", text)
	return nil
}
