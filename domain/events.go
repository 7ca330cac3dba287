package domain

import (
	"context"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Identity events
	OTPRequestEvent       AuditEventType = "OTP_REQUESTED"
	OTPVerifyEvent        AuditEventType = "OTP_VERIFIED"
	OTPFailureEvent       AuditEventType = "OTP_VERIFICATION_FAILED"
	UserLoginEvent        AuditEventType = "USER_LOGIN"
	UserLoginFailureEvent AuditEventType = "USER_LOGIN_FAILED"
	UserRegistrationEvent AuditEventType = "USER_REGISTERED"
	PasswordResetEvent    AuditEventType = "PASSWORD_RESET"

	// Session events
	UserLogoutEvent     AuditEventType = "USER_LOGOUT"
	SessionExpiredEvent AuditEventType = "SESSION_EXPIRED"

	// Commerce events
	CouponAppliedEvent   AuditEventType = "COUPON_APPLIED"
	CouponRejectedEvent  AuditEventType = "COUPON_REJECTED"
	OrderCreatedEvent    AuditEventType = "ORDER_CREATED"
	PaymentVerifiedEvent AuditEventType = "PAYMENT_VERIFIED"
	PaymentFailedEvent   AuditEventType = "PAYMENT_FAILED"
)

// AuditEvent represents a business event that occurred for a client
type AuditEvent struct {
	EventType AuditEventType         `json:"event_type"`
	ClientID  string                 `json:"client_id"`
	UserID    string                 `json:"user_id,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Phone     string                 `json:"phone,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ErrorMsg  string                 `json:"error_msg,omitempty"`
	Success   bool                   `json:"success"`
}

// AuditLogger records audit events
type AuditLogger interface {
	LogEvent(ctx context.Context, event *AuditEvent)
}

// NewAuditEvent creates a new audit event with common fields populated
func NewAuditEvent(eventType AuditEventType, clientID string) *AuditEvent {
	return &AuditEvent{
		EventType: eventType,
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
		Success:   true,
	}
}

// WithError sets error information on the audit event
func (e *AuditEvent) WithError(err error) *AuditEvent {
	e.Success = false
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// WithUser copies the identifying fields of u
func (e *AuditEvent) WithUser(u *User) *AuditEvent {
	if u != nil {
		e.UserID = u.ID
		e.Email = u.Email
		e.Phone = u.Phone
	}
	return e
}

// WithEmail sets the email field
func (e *AuditEvent) WithEmail(email string) *AuditEvent {
	e.Email = email
	return e
}

// WithPhone sets the phone field
func (e *AuditEvent) WithPhone(phone string) *AuditEvent {
	e.Phone = phone
	return e
}

// WithMetadata adds metadata to the event
func (e *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	e.Metadata[key] = value
	return e
}
