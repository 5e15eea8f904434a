package notification

type NotificationData struct {
	To      string            // Recipient email address; the manager's default recipient is used when empty
	Subject string            // Optional: overrides the template subject
	Body    string            // Optional: plain body used when the template has no text part
	Data    map[string]string // Template fields (AccountID, AccountLabel, OccurredAt, ...)
}

// NoticeTemplate holds the subject and bodies rendered for a notice
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
