package mocks

import (
	"context"
	"sync"

	"github.com/you/kycstore/domain"
)

// MockTokenStore implements domain.TokenStore interface for testing. Without
// Func overrides it behaves like an in-memory store.
type MockTokenStore struct {
	LoadFunc   func(ctx context.Context, clientID string) (*domain.PersistedSession, error)
	SaveFunc   func(ctx context.Context, clientID string, session *domain.PersistedSession) error
	DeleteFunc func(ctx context.Context, clientID string) error

	mu       sync.Mutex
	sessions map[string]domain.PersistedSession
}

// NewMockTokenStore creates a new MockTokenStore with default behaviors
func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{sessions: make(map[string]domain.PersistedSession)}
}

// Load loads a persisted session
func (m *MockTokenStore) Load(ctx context.Context, clientID string) (*domain.PersistedSession, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, clientID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

// Save persists a session
func (m *MockTokenStore) Save(ctx context.Context, clientID string, session *domain.PersistedSession) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, clientID, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[clientID] = *session
	return nil
}

// Delete removes a persisted session
func (m *MockTokenStore) Delete(ctx context.Context, clientID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, clientID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, clientID)
	return nil
}

// Has reports whether a session is stored for clientID (test helper)
func (m *MockTokenStore) Has(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[clientID]
	return ok
}

// Put stores a session directly (test helper)
func (m *MockTokenStore) Put(clientID string, session domain.PersistedSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[clientID] = session
}

// MockPendingStore implements domain.PendingStore interface for testing
type MockPendingStore struct {
	LoadFunc   func(ctx context.Context, clientID string) (*domain.PendingVerification, error)
	SaveFunc   func(ctx context.Context, clientID string, pending *domain.PendingVerification) error
	DeleteFunc func(ctx context.Context, clientID string) error

	mu      sync.Mutex
	pending map[string]domain.PendingVerification
}

// NewMockPendingStore creates a new MockPendingStore with default behaviors
func NewMockPendingStore() *MockPendingStore {
	return &MockPendingStore{pending: make(map[string]domain.PendingVerification)}
}

// Load loads the pending verification
func (m *MockPendingStore) Load(ctx context.Context, clientID string) (*domain.PendingVerification, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, clientID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[clientID]
	if !ok {
		return nil, domain.ErrPendingNotFound
	}
	return &p, nil
}

// Save stores the pending verification
func (m *MockPendingStore) Save(ctx context.Context, clientID string, pending *domain.PendingVerification) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, clientID, pending)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[clientID] = *pending
	return nil
}

// Delete removes the pending verification
func (m *MockPendingStore) Delete(ctx context.Context, clientID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, clientID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, clientID)
	return nil
}

// MockResendThrottle implements domain.ResendThrottle interface for testing
type MockResendThrottle struct {
	CanResendFunc func(ctx context.Context, identifier string) (bool, int64, error)
	MarkSentFunc  func(ctx context.Context, identifier string) error
}

// NewMockResendThrottle creates a new MockResendThrottle with default behaviors
func NewMockResendThrottle() *MockResendThrottle {
	return &MockResendThrottle{}
}

// CanResend checks whether an OTP may be sent again
func (m *MockResendThrottle) CanResend(ctx context.Context, identifier string) (bool, int64, error) {
	if m.CanResendFunc != nil {
		return m.CanResendFunc(ctx, identifier)
	}
	// Default behavior: always allowed
	return true, 0, nil
}

// MarkSent records an OTP send
func (m *MockResendThrottle) MarkSent(ctx context.Context, identifier string) error {
	if m.MarkSentFunc != nil {
		return m.MarkSentFunc(ctx, identifier)
	}
	return nil
}

// MockCheckoutJournal implements domain.CheckoutJournal interface for testing
type MockCheckoutJournal struct {
	RecordFunc             func(ctx context.Context, record *domain.CheckoutRecord) error
	FindByGatewayOrderFunc func(ctx context.Context, gatewayOrderID string) (*domain.CheckoutRecord, error)
	TransitionFunc         func(ctx context.Context, gatewayOrderID string, from, to domain.CheckoutStatus, reason string) error
	ListByClientFunc       func(ctx context.Context, clientID string, limit int) ([]domain.CheckoutRecord, error)

	mu      sync.Mutex
	records map[string]domain.CheckoutRecord
}

// NewMockCheckoutJournal creates a new MockCheckoutJournal backed by a map
func NewMockCheckoutJournal() *MockCheckoutJournal {
	return &MockCheckoutJournal{records: make(map[string]domain.CheckoutRecord)}
}

// Record stores a checkout record
func (m *MockCheckoutJournal) Record(ctx context.Context, record *domain.CheckoutRecord) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.GatewayOrderID] = *record
	return nil
}

// FindByGatewayOrder finds a record by gateway order id
func (m *MockCheckoutJournal) FindByGatewayOrder(ctx context.Context, gatewayOrderID string) (*domain.CheckoutRecord, error) {
	if m.FindByGatewayOrderFunc != nil {
		return m.FindByGatewayOrderFunc(ctx, gatewayOrderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[gatewayOrderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &rec, nil
}

// Transition moves a record out of the from status
func (m *MockCheckoutJournal) Transition(ctx context.Context, gatewayOrderID string, from, to domain.CheckoutStatus, reason string) error {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, gatewayOrderID, from, to, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[gatewayOrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if rec.Status != from {
		return domain.ErrOrderFinalized
	}
	rec.Status = to
	rec.Reason = reason
	m.records[gatewayOrderID] = rec
	return nil
}

// ListByClient lists the records of a client
func (m *MockCheckoutJournal) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.CheckoutRecord, error) {
	if m.ListByClientFunc != nil {
		return m.ListByClientFunc(ctx, clientID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CheckoutRecord
	for _, rec := range m.records {
		if rec.ClientID == clientID {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Status returns the status of a record (test helper)
func (m *MockCheckoutJournal) Status(gatewayOrderID string) domain.CheckoutStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[gatewayOrderID].Status
}

// Compile-time interface compliance verification
var (
	_ domain.TokenStore      = (*MockTokenStore)(nil)
	_ domain.PendingStore    = (*MockPendingStore)(nil)
	_ domain.ResendThrottle  = (*MockResendThrottle)(nil)
	_ domain.CheckoutJournal = (*MockCheckoutJournal)(nil)
)
