package notification

import "sync"

type MockNotifier struct {
	mu                sync.Mutex
	SentNotifications []NotificationData
	SentTypes         []NoticeType
	Err               error
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentNotifications = append(m.SentNotifications, notification)
	m.SentTypes = append(m.SentTypes, noticeType)
	return m.Err
}

// Types returns a copy of the notice types sent so far
func (m *MockNotifier) Types() []NoticeType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NoticeType(nil), m.SentTypes...)
}
