package identity

import (
	"strings"
	"sync"

	"github.com/you/kycstore/domain"
)

// RecaptchaVerifier holds the solved anti-abuse challenge of one phone flow.
// The browser solves the widget; the token it yields is valid for exactly
// one verification send.
type RecaptchaVerifier struct {
	mu       sync.Mutex
	clientID string
	token    string
	disposed bool
}

// Arm implements domain.ChallengeVerifier
func (v *RecaptchaVerifier) Arm(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return domain.ErrVerifierDisposed
	}
	v.token = strings.TrimSpace(token)
	return nil
}

// Token implements domain.ChallengeVerifier. The token is handed out once.
func (v *RecaptchaVerifier) Token() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return "", domain.ErrVerifierDisposed
	}
	if v.token == "" {
		return "", domain.ErrVerifierConsumed
	}
	t := v.token
	v.token = ""
	return t, nil
}

// Dispose implements domain.ChallengeVerifier
func (v *RecaptchaVerifier) Dispose() {
	v.mu.Lock()
	v.disposed = true
	v.token = ""
	v.mu.Unlock()
}

// RecaptchaFactory implements domain.VerifierFactory
type RecaptchaFactory struct{}

// NewVerifier implements domain.VerifierFactory
func (RecaptchaFactory) NewVerifier(clientID string) domain.ChallengeVerifier {
	return &RecaptchaVerifier{clientID: clientID}
}

var (
	_ domain.ChallengeVerifier = (*RecaptchaVerifier)(nil)
	_ domain.VerifierFactory   = RecaptchaFactory{}
)
