package mocks

import (
	"context"
	"sync"

	"github.com/you/kycstore/domain"
)

// MockIdentityProvider implements domain.IdentityProvider interface for testing
type MockIdentityProvider struct {
	SendVerificationCodeFunc func(ctx context.Context, e164Number, challengeToken string) (string, error)
	ConfirmCodeFunc          func(ctx context.Context, verificationID, code string) (string, error)
}

// NewMockIdentityProvider creates a new MockIdentityProvider with default behaviors
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{}
}

// SendVerificationCode sends a phone verification code
func (m *MockIdentityProvider) SendVerificationCode(ctx context.Context, e164Number, challengeToken string) (string, error) {
	if m.SendVerificationCodeFunc != nil {
		return m.SendVerificationCodeFunc(ctx, e164Number, challengeToken)
	}
	return "verification-" + e164Number, nil
}

// ConfirmCode exchanges a code for an identity token
func (m *MockIdentityProvider) ConfirmCode(ctx context.Context, verificationID, code string) (string, error) {
	if m.ConfirmCodeFunc != nil {
		return m.ConfirmCodeFunc(ctx, verificationID, code)
	}
	return "id-token", nil
}

// MockChallengeVerifier implements domain.ChallengeVerifier interface for testing
type MockChallengeVerifier struct {
	mu       sync.Mutex
	token    string
	Disposed bool
}

// Arm stores a solved challenge
func (m *MockChallengeVerifier) Arm(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disposed {
		return domain.ErrVerifierDisposed
	}
	m.token = token
	return nil
}

// Token hands out the challenge once
func (m *MockChallengeVerifier) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disposed {
		return "", domain.ErrVerifierDisposed
	}
	if m.token == "" {
		return "", domain.ErrVerifierConsumed
	}
	t := m.token
	m.token = ""
	return t, nil
}

// Dispose releases the verifier
func (m *MockChallengeVerifier) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disposed = true
	m.token = ""
}

// IsDisposed reports whether Dispose was called
func (m *MockChallengeVerifier) IsDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Disposed
}

// MockVerifierFactory implements domain.VerifierFactory and remembers what it created
type MockVerifierFactory struct {
	mu      sync.Mutex
	Created []*MockChallengeVerifier
}

// NewMockVerifierFactory creates a new MockVerifierFactory
func NewMockVerifierFactory() *MockVerifierFactory {
	return &MockVerifierFactory{}
}

// NewVerifier creates a verifier
func (f *MockVerifierFactory) NewVerifier(clientID string) domain.ChallengeVerifier {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := &MockChallengeVerifier{}
	f.Created = append(f.Created, v)
	return v
}

// Count returns how many verifiers were created
func (f *MockVerifierFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

// Last returns the most recently created verifier
func (f *MockVerifierFactory) Last() *MockChallengeVerifier {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Created) == 0 {
		return nil
	}
	return f.Created[len(f.Created)-1]
}

// Compile-time interface compliance verification
var (
	_ domain.IdentityProvider  = (*MockIdentityProvider)(nil)
	_ domain.ChallengeVerifier = (*MockChallengeVerifier)(nil)
	_ domain.VerifierFactory   = (*MockVerifierFactory)(nil)
)
