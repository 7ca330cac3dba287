package mocks

import (
	"strings"

	"github.com/you/kycstore/domain"
)

// MockTokenInspector implements domain.TokenInspector interface for testing
type MockTokenInspector struct {
	InspectFunc func(token string) (*domain.TokenClaims, error)
}

// NewMockTokenInspector creates a new MockTokenInspector with default behaviors
func NewMockTokenInspector() *MockTokenInspector {
	return &MockTokenInspector{}
}

// Inspect decodes a token
func (m *MockTokenInspector) Inspect(token string) (*domain.TokenClaims, error) {
	if m.InspectFunc != nil {
		return m.InspectFunc(token)
	}
	// Default behavior: tokens starting with "expired" are expired, "bad" are malformed
	switch {
	case token == "", strings.HasPrefix(token, "bad"):
		return nil, domain.ErrTokenMalformed
	case strings.HasPrefix(token, "expired"):
		return nil, domain.ErrTokenExpired
	}
	return &domain.TokenClaims{Format: "jwt", UserID: "user-1", Role: domain.RoleUser}, nil
}

// Compile-time interface compliance verification
var _ domain.TokenInspector = (*MockTokenInspector)(nil)
