package notification

import (
	"errors"
	"fmt"
	"sort"
)

// NotificationSystem represents a delivery channel (e.g., email, log).
type NotificationSystem string

// NoticeType represents a kind of security notice.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	LogSystem   NotificationSystem = "log"

	TwoFactorEnabled       NoticeType = "two_factor_enabled"
	TwoFactorDisabled      NoticeType = "two_factor_disabled"
	BackupCodesRegenerated NoticeType = "backup_codes_regenerated"
)

// NotificationManager manages notifiers and notice templates.
type NotificationManager struct {
	notifiers            map[NotificationSystem]Notifier                            // Delivery channel implementations
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate // Templates per notice and channel
	defaultRecipient     string
}

// NewNotificationManager creates a manager. defaultRecipient receives
// notices whose data carries no recipient of its own.
func NewNotificationManager(defaultRecipient string) *NotificationManager {
	return &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
		defaultRecipient:     defaultRecipient,
	}
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template of a notice for a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid template for %s/%s: text or html body required", noticeType, system)
	}

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers the notice on every system that has both a notifier and a
// template for it. Errors from individual systems are joined.
func (nm *NotificationManager) Send(noticeType NoticeType, notification NotificationData) error {
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	if notification.To == "" {
		notification.To = nm.defaultRecipient
	}

	systems := make([]string, 0, len(systemTemplates))
	for system := range systemTemplates {
		systems = append(systems, string(system))
	}
	sort.Strings(systems)

	var errs []error
	sent := 0
	for _, name := range systems {
		system := NotificationSystem(name)
		notifier, ok := nm.notifiers[system]
		if !ok {
			continue
		}
		sent++
		if err := notifier.Send(noticeType, notification, systemTemplates[system]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", system, err))
		}
	}
	if sent == 0 {
		return fmt.Errorf("no notifier registered for notice type: %s", noticeType)
	}
	return errors.Join(errs...)
}
