package mocks

import (
	"context"
	"sync"

	"github.com/you/kycstore/domain"
)

// MockAuditLogger implements domain.AuditLogger and records every event
type MockAuditLogger struct {
	mu     sync.Mutex
	Events []domain.AuditEvent
}

// NewMockAuditLogger creates a new MockAuditLogger
func NewMockAuditLogger() *MockAuditLogger {
	return &MockAuditLogger{}
}

// LogEvent records an event
func (m *MockAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, *event)
}

// Count returns how many events of the given type were logged
func (m *MockAuditLogger) Count(eventType domain.AuditEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// Compile-time interface compliance verification
var _ domain.AuditLogger = (*MockAuditLogger)(nil)
