package domain

import (
	"context"
	"time"
)

// TokenStore persists the session of a client across restarts
type TokenStore interface {
	Load(ctx context.Context, clientID string) (*PersistedSession, error)
	Save(ctx context.Context, clientID string, session *PersistedSession) error
	Delete(ctx context.Context, clientID string) error
}

// PendingStore persists the single pending verification of a client
type PendingStore interface {
	Load(ctx context.Context, clientID string) (*PendingVerification, error)
	Save(ctx context.Context, clientID string, pending *PendingVerification) error
	Delete(ctx context.Context, clientID string) error
}

// ResendThrottle enforces the wait between two OTP sends to one identifier
type ResendThrottle interface {
	CanResend(ctx context.Context, identifier string) (bool, int64, error)
	MarkSent(ctx context.Context, identifier string) error
}

// TokenInspector decodes a bearer token locally, without verifying its signature
type TokenInspector interface {
	Inspect(token string) (*TokenClaims, error)
}

// TokenClaims represents what could be read from a bearer token
type TokenClaims struct {
	Format    string `json:"format"`
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// AuthAPI is the identity part of the storefront backend
type AuthAPI interface {
	Register(ctx context.Context, reg Registration) error
	Login(ctx context.Context, email, password, location string) (*AuthResult, error)
	SendEmailOTP(ctx context.Context, email string) error
	VerifyEmailOTP(ctx context.Context, email, otp string) (*AuthResult, error)
	PhoneRegister(ctx context.Context, idToken string, reg Registration) (*AuthResult, error)
	PhoneLogin(ctx context.Context, idToken string) (*AuthResult, error)
	SendPasswordResetOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) (*AuthResult, error)
	ResetPasswordByPhone(ctx context.Context, idToken, newPassword string) (*AuthResult, error)
	GetProfile(ctx context.Context, token string) (*User, error)
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*User, error)
}

// CouponAPI validates coupons against an order
type CouponAPI interface {
	Validate(ctx context.Context, token string, req CouponRequest) (*AppliedCoupon, error)
}

// OrderAPI creates orders and verifies their payment
type OrderAPI interface {
	Create(ctx context.Context, token string, req CreateOrderRequest) (*CreatedOrder, error)
	VerifyPayment(ctx context.Context, token string, completion PaymentCompletion) error
}

// IdentityProvider performs phone verification with the external provider.
// A verification id is bound to one send and is opaque to callers.
type IdentityProvider interface {
	SendVerificationCode(ctx context.Context, e164Number, challengeToken string) (string, error)
	ConfirmCode(ctx context.Context, verificationID, code string) (string, error)
}

// ChallengeVerifier is the anti-abuse challenge owned by one phone flow.
// Arm stores the solved challenge, Token hands it out once.
type ChallengeVerifier interface {
	Arm(token string) error
	Token() (string, error)
	Dispose()
}

// VerifierFactory creates challenge verifiers
type VerifierFactory interface {
	NewVerifier(clientID string) ChallengeVerifier
}

// Prefill is the customer data shown in the payment widget
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// PaymentIntent is what the payment widget is opened with
type PaymentIntent struct {
	OrderID        string
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Description    string
	Prefill        Prefill
}

// WidgetTheme of the payment widget
type WidgetTheme struct {
	Color string `json:"color,omitempty"`
}

// WidgetOptions are handed to the browser to render the payment widget
type WidgetOptions struct {
	ScriptURL   string            `json:"scriptUrl"`
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OrderID     string            `json:"order_id"`
	Prefill     Prefill           `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
	Theme       WidgetTheme       `json:"theme"`
}

// PaymentWidget loads and opens the external payment widget
type PaymentWidget interface {
	Load(ctx context.Context) error
	Open(ctx context.Context, intent PaymentIntent) (*WidgetOptions, error)
}

// CheckoutJournal keeps the local record of handed-off orders
type CheckoutJournal interface {
	Record(ctx context.Context, record *CheckoutRecord) error
	FindByGatewayOrder(ctx context.Context, gatewayOrderID string) (*CheckoutRecord, error)
	// Transition moves a record from one status to another. It fails with
	// ErrOrderFinalized when the record is no longer in the from status.
	Transition(ctx context.Context, gatewayOrderID string, from, to CheckoutStatus, reason string) error
	ListByClient(ctx context.Context, clientID string, limit int) ([]CheckoutRecord, error)
}

// NotificationService defines notification operations
type NotificationService interface {
	SendSMS(to, message string) error
}

// PolicyService defines route authorization policy operations
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}

// Clock abstracts time for timers that must be testable
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback
type Timer interface {
	Stop() bool
}
