package domain

import (
	"errors"
	"fmt"
)

// Session errors
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session has expired")
	ErrSessionSuperseded = errors.New("session was logged out while the request was in flight")
)

// Token errors
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("malformed token")
)

// Flow errors
var (
	ErrRequestInFlight       = errors.New("a request is already in progress")
	ErrNoPendingVerification = errors.New("no pending verification")
	ErrPendingNotFound       = errors.New("pending verification not found")
	ErrResendTooSoon         = errors.New("otp resend requested too soon")
	ErrVerifierDisposed      = errors.New("challenge verifier has been disposed")
	ErrVerifierConsumed      = errors.New("challenge verifier token already used")
)

// Cart and checkout errors
var (
	ErrCompositionChanged = errors.New("order changed while the coupon was being validated")
	ErrEmptySelection     = errors.New("no services or plan selected")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrOrderNotFound      = errors.New("checkout order not found")
	ErrOrderFinalized     = errors.New("checkout order already finalized")
	ErrWidgetUnavailable  = errors.New("payment widget unavailable")
)

// ErrorKind classifies every failure surfaced to the UI
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindBackend    ErrorKind = "backend"
	KindNetwork    ErrorKind = "network"
	KindProvider   ErrorKind = "provider"
)

// Error is the normalized failure shape. Provider- and backend-specific
// fields never leave the boundary that produced them.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Field   string    `json:"field,omitempty"`
	Status  int       `json:"-"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether trying the same action again may succeed
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Code == ProviderCodeTooManyRequests
}

// NewValidationError builds a local, pre-network error for a field
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NewBackendError builds a definitive rejection from the backend
func NewBackendError(status int, message string) *Error {
	return &Error{Kind: KindBackend, Status: status, Message: message}
}

// NewNetworkError builds a transport failure
func NewNetworkError(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// NewProviderError builds a mapped identity-provider or payment-widget failure
func NewProviderError(code, message string, err error) *Error {
	return &Error{Kind: KindProvider, Code: code, Message: message, Err: err}
}

// AsError extracts a normalized error from err
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not normalized
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

// Provider codes after normalization
const (
	ProviderCodeInvalidPhone    = "invalid-phone-number"
	ProviderCodeTooManyRequests = "too-many-requests"
	ProviderCodeInvalidCode     = "invalid-verification-code"
	ProviderCodeCodeExpired     = "code-expired"
	ProviderCodeMissingSession  = "missing-verification"
	ProviderCodeUnknown         = "unknown"
	ProviderCodeScriptLoad      = "script-load-failed"
)
