package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/metrics"
	"go.uber.org/zap"
)

// FlowStep is where a client is in the identity flow
type FlowStep string

const (
	StepIdle             FlowStep = "idle"
	StepAwaitingEmailOTP FlowStep = "awaiting_email_otp"
	StepAwaitingPhoneOTP FlowStep = "awaiting_phone_otp"
	StepAuthenticated    FlowStep = "authenticated"
)

// FlowStatus is the observable state of a client's identity flow
type FlowStatus struct {
	Step         FlowStep                   `json:"step"`
	Purpose      domain.VerificationPurpose `json:"purpose,omitempty"`
	PendingEmail string                     `json:"pendingEmail,omitempty"`
	PendingPhone string                     `json:"pendingPhone,omitempty"`
}

// RegisterInput is what the registration form collects
type RegisterInput struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password"`
	Company    string `json:"company"`
	Location   string `json:"location"`
	DialCode   string `json:"dialCode"`
}

// LoginInput is what the login form collects
type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password"`
	Location   string `json:"location"`
	DialCode   string `json:"dialCode"`
}

// FlowDeps are the collaborators shared by every client's flow controller
type FlowDeps struct {
	Auth            domain.AuthAPI
	Provider        domain.IdentityProvider
	Verifiers       domain.VerifierFactory
	Pending         domain.PendingStore
	Throttle        domain.ResendThrottle
	Audit           domain.AuditLogger
	Clock           domain.Clock
	Logger          *zap.Logger
	SendTimeout     time.Duration
	DefaultDialCode string
}

// AuthFlow drives one client from an identifier and secret to a session,
// over the email+OTP and phone+OTP paths. Only one request runs at a time.
type AuthFlow struct {
	clientID string
	session  *SessionManager
	deps     FlowDeps

	busy atomic.Bool

	mu       sync.Mutex
	verifier domain.ChallengeVerifier
	// password of a pending phone registration, never persisted
	password string
}

// NewAuthFlow creates the flow controller of one client. Pending state is
// cleared whenever the session logs out.
func NewAuthFlow(clientID string, session *SessionManager, deps FlowDeps) *AuthFlow {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 30 * time.Second
	}
	if deps.DefaultDialCode == "" {
		deps.DefaultDialCode = DialCodes[0]
	}
	f := &AuthFlow{clientID: clientID, session: session, deps: deps}
	session.OnLogout(func(ctx context.Context, _ string) {
		f.clearPending(ctx)
	})
	return f
}

func (f *AuthFlow) acquire() (func(), error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrRequestInFlight
	}
	return func() { f.busy.Store(false) }, nil
}

// Busy reports whether a request is in flight
func (f *AuthFlow) Busy() bool { return f.busy.Load() }

// ArmChallenge stores the solved anti-abuse challenge for the next phone
// send, creating the verifier on first use
func (f *AuthFlow) ArmChallenge(token string) error {
	if strings.TrimSpace(token) == "" {
		return domain.NewValidationError("recaptchaToken", "Please complete the security check")
	}
	return f.acquireVerifier().Arm(token)
}

func (f *AuthFlow) acquireVerifier() domain.ChallengeVerifier {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifier == nil {
		f.verifier = f.deps.Verifiers.NewVerifier(f.clientID)
	}
	return f.verifier
}

func (f *AuthFlow) disposeVerifier() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifier != nil {
		f.verifier.Dispose()
		f.verifier = nil
	}
}

func (f *AuthFlow) pendingPassword() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.password
}

// Register starts a registration. Email identifiers go through the backend,
// which mails the OTP; phone identifiers go through the identity provider.
func (f *AuthFlow) Register(ctx context.Context, in RegisterInput) (FlowStatus, error) {
	release, err := f.acquire()
	if err != nil {
		return FlowStatus{}, err
	}
	defer release()

	if err := ValidateName(in.Name); err != nil {
		return FlowStatus{}, err
	}
	kind, err := ClassifyIdentifier(in.Identifier)
	if err != nil {
		return FlowStatus{}, err
	}
	identifier := strings.TrimSpace(in.Identifier)
	reg := domain.Registration{
		Name:     strings.TrimSpace(in.Name),
		Password: in.Password,
		Company:  strings.TrimSpace(in.Company),
		Location: in.Location,
	}

	if kind == domain.VerificationPhone {
		if in.Password != "" {
			if err := ValidatePassword(in.Password); err != nil {
				return FlowStatus{}, err
			}
		}
		e164, err := NormalizePhone(identifier, f.dialCode(in.DialCode))
		if err != nil {
			return FlowStatus{}, err
		}
		return f.sendPhoneChallenge(ctx, e164, f.dialCode(in.DialCode), domain.PurposeRegister, &reg)
	}

	if err := ValidatePassword(in.Password); err != nil {
		return FlowStatus{}, err
	}
	reg.Email = strings.ToLower(identifier)
	if err := f.deps.Auth.Register(ctx, reg); err != nil {
		f.recordAttempt(ctx, "register", kind, err, domain.NewAuditEvent(domain.UserRegistrationEvent, f.clientID).WithEmail(reg.Email))
		return FlowStatus{}, err
	}
	f.markSent(ctx, reg.Email)
	f.recordAttempt(ctx, "register", kind, nil, domain.NewAuditEvent(domain.OTPRequestEvent, f.clientID).WithEmail(reg.Email))

	return f.savePending(ctx, &domain.PendingVerification{
		Kind:    domain.VerificationEmail,
		Purpose: domain.PurposeRegister,
		Address: reg.Email,
	})
}

// Login authenticates with email and password, or starts a phone OTP login.
// An email login the backend answers without a token continues with an
// email OTP.
func (f *AuthFlow) Login(ctx context.Context, in LoginInput) (FlowStatus, error) {
	release, err := f.acquire()
	if err != nil {
		return FlowStatus{}, err
	}
	defer release()

	kind, err := ClassifyIdentifier(in.Identifier)
	if err != nil {
		return FlowStatus{}, err
	}
	identifier := strings.TrimSpace(in.Identifier)

	if kind == domain.VerificationPhone {
		dial := f.dialCode(in.DialCode)
		e164, err := NormalizePhone(identifier, dial)
		if err != nil {
			return FlowStatus{}, err
		}
		return f.sendPhoneChallenge(ctx, e164, dial, domain.PurposeLogin, nil)
	}

	if err := ValidatePassword(in.Password); err != nil {
		return FlowStatus{}, err
	}
	email := strings.ToLower(identifier)
	ticket := f.session.BeginLogin()
	result, err := f.deps.Auth.Login(ctx, email, in.Password, in.Location)
	if err != nil {
		f.recordAttempt(ctx, "login", kind, err, domain.NewAuditEvent(domain.UserLoginFailureEvent, f.clientID).WithEmail(email))
		return FlowStatus{}, err
	}

	if result == nil || result.Token == "" {
		if err := f.deps.Auth.SendEmailOTP(ctx, email); err != nil {
			return FlowStatus{}, err
		}
		f.markSent(ctx, email)
		return f.savePending(ctx, &domain.PendingVerification{
			Kind:    domain.VerificationEmail,
			Purpose: domain.PurposeLogin,
			Address: email,
		})
	}

	if err := f.establish(ctx, ticket, result, "login", kind, domain.UserLoginEvent); err != nil {
		return FlowStatus{}, err
	}
	return FlowStatus{Step: StepAuthenticated}, nil
}

// VerifyOtp answers the pending challenge. On failure the pending state is
// kept so the user can retry or resend.
func (f *AuthFlow) VerifyOtp(ctx context.Context, code string) (FlowStatus, error) {
	release, err := f.acquire()
	if err != nil {
		return FlowStatus{}, err
	}
	defer release()

	pending, err := f.loadPending(ctx)
	if err != nil {
		return FlowStatus{}, err
	}
	if pending.Purpose == domain.PurposePasswordReset {
		return statusOf(pending), domain.NewValidationError("newPassword", "Please choose a new password")
	}
	if err := ValidateOTP(pending.Kind, code); err != nil {
		return statusOf(pending), err
	}
	code = strings.TrimSpace(code)

	ticket := f.session.BeginLogin()
	var result *domain.AuthResult
	eventType := domain.UserLoginEvent
	if pending.Purpose == domain.PurposeRegister {
		eventType = domain.UserRegistrationEvent
	}

	if pending.Kind == domain.VerificationEmail {
		result, err = f.deps.Auth.VerifyEmailOTP(ctx, pending.Address, code)
	} else {
		var idToken string
		idToken, err = f.deps.Provider.ConfirmCode(ctx, pending.ProviderVerificationID, code)
		if err == nil {
			if pending.Purpose == domain.PurposeRegister {
				reg := domain.Registration{}
				if pending.Registration != nil {
					reg = *pending.Registration
				}
				reg.Password = f.pendingPassword()
				result, err = f.deps.Auth.PhoneRegister(ctx, idToken, reg)
			} else {
				result, err = f.deps.Auth.PhoneLogin(ctx, idToken)
			}
		}
	}
	if err != nil {
		f.recordAttempt(ctx, "verify_otp", pending.Kind, err, f.pendingEvent(domain.OTPFailureEvent, pending))
		return statusOf(pending), err
	}

	if err := f.establish(ctx, ticket, result, "verify_otp", pending.Kind, eventType); err != nil {
		return statusOf(pending), err
	}
	f.clearPending(ctx)
	return FlowStatus{Step: StepAuthenticated}, nil
}

// ResendOtp sends a fresh code to the pending identifier. The newest send
// replaces the previous challenge.
func (f *AuthFlow) ResendOtp(ctx context.Context) (FlowStatus, error) {
	release, err := f.acquire()
	if err != nil {
		return FlowStatus{}, err
	}
	defer release()

	pending, err := f.loadPending(ctx)
	if err != nil {
		return FlowStatus{}, err
	}

	if pending.Kind == domain.VerificationPhone {
		return f.sendPhoneChallenge(ctx, pending.E164Number, pending.DialCode, pending.Purpose, pending.Registration)
	}

	if err := f.checkThrottle(ctx, pending.Address); err != nil {
		return statusOf(pending), err
	}
	send := f.deps.Auth.SendEmailOTP
	if pending.Purpose == domain.PurposePasswordReset {
		send = f.deps.Auth.SendPasswordResetOTP
	}
	if err := send(ctx, pending.Address); err != nil {
		f.recordAttempt(ctx, "resend_otp", pending.Kind, err, f.pendingEvent(domain.OTPRequestEvent, pending))
		return statusOf(pending), err
	}
	f.markSent(ctx, pending.Address)
	f.recordAttempt(ctx, "resend_otp", pending.Kind, nil, f.pendingEvent(domain.OTPRequestEvent, pending))
	return f.savePending(ctx, pending)
}

// SendPasswordResetOtp starts a password reset for an email or phone number
func (f *AuthFlow) SendPasswordResetOtp(ctx context.Context, identifier, dialCode string) (FlowStatus, error) {
	release, err := f.acquire()
	if err != nil {
		return FlowStatus{}, err
	}
	defer release()

	kind, err := ClassifyIdentifier(identifier)
	if err != nil {
		return FlowStatus{}, err
	}
	identifier = strings.TrimSpace(identifier)

	if kind == domain.VerificationPhone {
		dial := f.dialCode(dialCode)
		e164, err := NormalizePhone(identifier, dial)
		if err != nil {
			return FlowStatus{}, err
		}
		return f.sendPhoneChallenge(ctx, e164, dial, domain.PurposePasswordReset, nil)
	}

	email := strings.ToLower(identifier)
	if err := f.checkThrottle(ctx, email); err != nil {
		return FlowStatus{}, err
	}
	if err := f.deps.Auth.SendPasswordResetOTP(ctx, email); err != nil {
		f.recordAttempt(ctx, "password_reset_otp", kind, err, domain.NewAuditEvent(domain.OTPRequestEvent, f.clientID).WithEmail(email))
		return FlowStatus{}, err
	}
	f.markSent(ctx, email)
	return f.savePending(ctx, &domain.PendingVerification{
		Kind:    domain.VerificationEmail,
		Purpose: domain.PurposePasswordReset,
		Address: email,
	})
}

// ResetPassword completes an email password reset and signs the user in
func (f *AuthFlow) ResetPassword(ctx context.Context, email, otp, newPassword string) (FlowStatus, error) {
	release, err := f.acquire()
	if err != nil {
		return FlowStatus{}, err
	}
	defer release()

	email = strings.ToLower(strings.TrimSpace(email))
	if !IsEmail(email) {
		return FlowStatus{}, domain.NewValidationError("email", "Enter a valid email address")
	}
	if err := ValidateOTP(domain.VerificationEmail, otp); err != nil {
		return FlowStatus{}, err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return FlowStatus{}, err
	}

	ticket := f.session.BeginLogin()
	result, err := f.deps.Auth.ResetPassword(ctx, email, strings.TrimSpace(otp), newPassword)
	if err != nil {
		f.recordAttempt(ctx, "password_reset", domain.VerificationEmail, err, domain.NewAuditEvent(domain.PasswordResetEvent, f.clientID).WithEmail(email))
		return FlowStatus{}, err
	}
	if err := f.establish(ctx, ticket, result, "password_reset", domain.VerificationEmail, domain.PasswordResetEvent); err != nil {
		return FlowStatus{}, err
	}
	f.clearPending(ctx)
	return FlowStatus{Step: StepAuthenticated}, nil
}

// ResetPasswordByPhone completes a phone password reset started with
// SendPasswordResetOtp
func (f *AuthFlow) ResetPasswordByPhone(ctx context.Context, code, newPassword string) (FlowStatus, error) {
	release, err := f.acquire()
	if err != nil {
		return FlowStatus{}, err
	}
	defer release()

	pending, err := f.loadPending(ctx)
	if err != nil {
		return FlowStatus{}, err
	}
	if pending.Kind != domain.VerificationPhone || pending.Purpose != domain.PurposePasswordReset {
		return statusOf(pending), domain.NewValidationError("otp", "Please request a password reset OTP first")
	}
	if err := ValidateOTP(domain.VerificationPhone, code); err != nil {
		return statusOf(pending), err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return statusOf(pending), err
	}

	ticket := f.session.BeginLogin()
	idToken, err := f.deps.Provider.ConfirmCode(ctx, pending.ProviderVerificationID, strings.TrimSpace(code))
	var result *domain.AuthResult
	if err == nil {
		result, err = f.deps.Auth.ResetPasswordByPhone(ctx, idToken, newPassword)
	}
	if err != nil {
		f.recordAttempt(ctx, "password_reset", domain.VerificationPhone, err, f.pendingEvent(domain.PasswordResetEvent, pending))
		return statusOf(pending), err
	}
	if err := f.establish(ctx, ticket, result, "password_reset", domain.VerificationPhone, domain.PasswordResetEvent); err != nil {
		return statusOf(pending), err
	}
	f.clearPending(ctx)
	return FlowStatus{Step: StepAuthenticated}, nil
}

// GetProfile fetches the profile and caches it in the session. A rejected
// token logs the client out.
func (f *AuthFlow) GetProfile(ctx context.Context) (*domain.User, error) {
	token := f.session.Token()
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	user, err := f.deps.Auth.GetProfile(ctx, token)
	if err != nil {
		f.logoutOnUnauthorized(ctx, err)
		return nil, err
	}
	if err := f.session.SetUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile saves the editable profile fields
func (f *AuthFlow) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	token := f.session.Token()
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	update.Name = strings.TrimSpace(update.Name)
	update.Company = strings.TrimSpace(update.Company)
	if update.Name == "" {
		return nil, domain.NewValidationError("name", "Name is required")
	}
	if update.Phone = strings.TrimSpace(update.Phone); update.Phone != "" {
		e164, err := NormalizePhone(update.Phone, f.deps.DefaultDialCode)
		if err != nil {
			return nil, err
		}
		update.Phone = e164
	}

	user, err := f.deps.Auth.UpdateProfile(ctx, token, update)
	if err != nil {
		f.logoutOnUnauthorized(ctx, err)
		return nil, err
	}
	if err := f.session.SetUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Reset abandons the pending verification and releases the challenge
func (f *AuthFlow) Reset(ctx context.Context) {
	f.clearPending(ctx)
}

// Status reports the current step of the flow
func (f *AuthFlow) Status(ctx context.Context) FlowStatus {
	if f.session.Snapshot().IsAuthenticated {
		return FlowStatus{Step: StepAuthenticated}
	}
	pending, err := f.deps.Pending.Load(ctx, f.clientID)
	if err != nil {
		return FlowStatus{Step: StepIdle}
	}
	return statusOf(pending)
}

func (f *AuthFlow) sendPhoneChallenge(ctx context.Context, e164, dialCode string, purpose domain.VerificationPurpose, reg *domain.Registration) (FlowStatus, error) {
	if err := f.checkThrottle(ctx, e164); err != nil {
		return FlowStatus{}, err
	}
	challenge, err := f.acquireVerifier().Token()
	if err != nil {
		return FlowStatus{}, &domain.Error{
			Kind:    domain.KindValidation,
			Field:   "recaptchaToken",
			Message: "Please complete the security check",
			Err:     err,
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, f.deps.SendTimeout)
	defer cancel()

	event := domain.NewAuditEvent(domain.OTPRequestEvent, f.clientID).WithPhone(e164).
		WithMetadata("purpose", string(purpose))
	verificationID, err := f.deps.Provider.SendVerificationCode(sendCtx, e164, challenge)
	if err != nil {
		// a fresh widget is needed for the retry
		f.disposeVerifier()
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = domain.NewNetworkError("OTP request timed out. Please try again.", err)
		}
		f.recordAttempt(ctx, "send_otp", domain.VerificationPhone, err, event)
		return FlowStatus{}, err
	}
	f.markSent(ctx, e164)
	f.recordAttempt(ctx, "send_otp", domain.VerificationPhone, nil, event)

	f.mu.Lock()
	switch {
	case reg == nil:
		f.password = ""
	case reg.Password != "":
		// resends replay the stored registration, which has no password
		f.password = reg.Password
	}
	f.mu.Unlock()
	if reg != nil {
		stored := *reg
		stored.Password = ""
		reg = &stored
	}
	return f.savePending(ctx, &domain.PendingVerification{
		Kind:                   domain.VerificationPhone,
		Purpose:                purpose,
		E164Number:             e164,
		DialCode:               dialCode,
		ProviderVerificationID: verificationID,
		Registration:           reg,
	})
}

func (f *AuthFlow) establish(ctx context.Context, ticket LoginTicket, result *domain.AuthResult, action string, kind domain.VerificationKind, eventType domain.AuditEventType) error {
	var user *domain.User
	if result != nil {
		user = result.User
	}
	if err := f.session.Establish(ctx, ticket, result); err != nil {
		f.recordAttempt(ctx, action, kind, err, domain.NewAuditEvent(eventType, f.clientID).WithUser(user))
		return err
	}
	f.recordAttempt(ctx, action, kind, nil, domain.NewAuditEvent(eventType, f.clientID).WithUser(user))
	return nil
}

func (f *AuthFlow) checkThrottle(ctx context.Context, identifier string) error {
	ok, wait, err := f.deps.Throttle.CanResend(ctx, identifier)
	if err != nil {
		// advisory only
		f.deps.Logger.Warn("resend throttle unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return &domain.Error{
			Kind:    domain.KindValidation,
			Field:   "otp",
			Message: fmt.Sprintf("Please wait %d seconds before requesting a new OTP", wait),
			Err:     domain.ErrResendTooSoon,
		}
	}
	return nil
}

func (f *AuthFlow) markSent(ctx context.Context, identifier string) {
	if err := f.deps.Throttle.MarkSent(ctx, identifier); err != nil {
		f.deps.Logger.Warn("failed to record OTP send", zap.Error(err))
	}
}

func (f *AuthFlow) loadPending(ctx context.Context) (*domain.PendingVerification, error) {
	pending, err := f.deps.Pending.Load(ctx, f.clientID)
	if err != nil {
		if errors.Is(err, domain.ErrPendingNotFound) {
			return nil, &domain.Error{
				Kind:    domain.KindValidation,
				Field:   "otp",
				Message: "Please request OTP first",
				Err:     domain.ErrNoPendingVerification,
			}
		}
		return nil, fmt.Errorf("failed to load pending verification: %w", err)
	}
	return pending, nil
}

func (f *AuthFlow) savePending(ctx context.Context, pending *domain.PendingVerification) (FlowStatus, error) {
	pending.IssuedAt = f.deps.Clock.Now()
	if err := f.deps.Pending.Save(ctx, f.clientID, pending); err != nil {
		return FlowStatus{}, fmt.Errorf("failed to save pending verification: %w", err)
	}
	return statusOf(pending), nil
}

func (f *AuthFlow) clearPending(ctx context.Context) {
	if err := f.deps.Pending.Delete(ctx, f.clientID); err != nil {
		f.deps.Logger.Warn("failed to clear pending verification",
			zap.String("client_id", f.clientID), zap.Error(err))
	}
	f.mu.Lock()
	f.password = ""
	f.mu.Unlock()
	f.disposeVerifier()
}

func (f *AuthFlow) logoutOnUnauthorized(ctx context.Context, err error) {
	if e, ok := domain.AsError(err); ok && e.Kind == domain.KindBackend && e.Status == http.StatusUnauthorized {
		f.session.Logout(ctx, LogoutReasonInvalid)
	}
}

func (f *AuthFlow) pendingEvent(eventType domain.AuditEventType, pending *domain.PendingVerification) *domain.AuditEvent {
	event := domain.NewAuditEvent(eventType, f.clientID).WithMetadata("purpose", string(pending.Purpose))
	if pending.Kind == domain.VerificationPhone {
		return event.WithPhone(pending.E164Number)
	}
	return event.WithEmail(pending.Address)
}

func (f *AuthFlow) recordAttempt(ctx context.Context, action string, kind domain.VerificationKind, err error, event *domain.AuditEvent) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeRejected
		if k := domain.KindOf(err); k == domain.KindNetwork || k == "" {
			outcome = metrics.OutcomeError
		}
		event.WithError(err)
	}
	metrics.AuthAttempts.WithLabelValues(action, string(kind), outcome).Inc()
	if f.deps.Audit != nil {
		f.deps.Audit.LogEvent(ctx, event)
	}
}

func (f *AuthFlow) dialCode(dialCode string) string {
	if dialCode = strings.TrimPrefix(strings.TrimSpace(dialCode), "+"); dialCode == "" {
		return f.deps.DefaultDialCode
	}
	return dialCode
}

func statusOf(pending *domain.PendingVerification) FlowStatus {
	if pending == nil {
		return FlowStatus{Step: StepIdle}
	}
	status := FlowStatus{Purpose: pending.Purpose}
	if pending.Kind == domain.VerificationPhone {
		status.Step = StepAwaitingPhoneOTP
		status.PendingPhone = pending.E164Number
	} else {
		status.Step = StepAwaitingEmailOTP
		status.PendingEmail = pending.Address
	}
	return status
}
