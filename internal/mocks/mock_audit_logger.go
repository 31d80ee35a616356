package mocks

import (
	"context"
	"sync"

	"github.com/you/medrecsvc/domain"
)

// MockAuditLogger implements domain.AuditLogger and keeps every event
type MockAuditLogger struct {
	LogEventFunc func(ctx context.Context, event *domain.AuditEvent) error

	mu     sync.Mutex
	events []*domain.AuditEvent
}

// NewMockAuditLogger creates a new MockAuditLogger
func NewMockAuditLogger() *MockAuditLogger {
	return &MockAuditLogger{}
}

// LogEvent records the event
func (m *MockAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.LogEventFunc != nil {
		return m.LogEventFunc(ctx, event)
	}
	return nil
}

// EventTypes lists the recorded event types in order
func (m *MockAuditLogger) EventTypes() []domain.AuditEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.AuditEventType, len(m.events))
	for i, e := range m.events {
		types[i] = e.EventType
	}
	return types
}

// Compile-time interface compliance verification
var _ domain.AuditLogger = (*MockAuditLogger)(nil)
