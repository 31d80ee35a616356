package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/you/medrecsvc/domain"
)

// SentCode records one SendCode call
type SentCode struct {
	To   domain.Recipient
	Code string
	TTL  time.Duration
}

// MockNotificationSender implements domain.NotificationSender interface for testing
type MockNotificationSender struct {
	SendCodeFunc func(ctx context.Context, to domain.Recipient, code string, ttl time.Duration) error

	mu   sync.Mutex
	sent []SentCode
}

// NewMockNotificationSender creates a new MockNotificationSender with default behaviors
func NewMockNotificationSender() *MockNotificationSender {
	return &MockNotificationSender{}
}

// SendCode records the call and delivers nothing
func (m *MockNotificationSender) SendCode(ctx context.Context, to domain.Recipient, code string, ttl time.Duration) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentCode{To: to, Code: code, TTL: ttl})
	m.mu.Unlock()

	if m.SendCodeFunc != nil {
		return m.SendCodeFunc(ctx, to, code, ttl)
	}
	// Default behavior: success (no actual message sent in tests)
	return nil
}

// CallCount returns how many times SendCode was called
func (m *MockNotificationSender) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// LastSent returns the most recent call, if any
func (m *MockNotificationSender) LastSent() (SentCode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return SentCode{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// Compile-time interface compliance verification
var _ domain.NotificationSender = (*MockNotificationSender)(nil)
