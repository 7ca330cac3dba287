package mocks

import (
	"context"

	"github.com/you/kycstore/domain"
)

// MockAuthAPI implements domain.AuthAPI interface for testing
type MockAuthAPI struct {
	RegisterFunc             func(ctx context.Context, reg domain.Registration) error
	LoginFunc                func(ctx context.Context, email, password, location string) (*domain.AuthResult, error)
	SendEmailOTPFunc         func(ctx context.Context, email string) error
	VerifyEmailOTPFunc       func(ctx context.Context, email, otp string) (*domain.AuthResult, error)
	PhoneRegisterFunc        func(ctx context.Context, idToken string, reg domain.Registration) (*domain.AuthResult, error)
	PhoneLoginFunc           func(ctx context.Context, idToken string) (*domain.AuthResult, error)
	SendPasswordResetOTPFunc func(ctx context.Context, email string) error
	ResetPasswordFunc        func(ctx context.Context, email, otp, newPassword string) (*domain.AuthResult, error)
	ResetPasswordByPhoneFunc func(ctx context.Context, idToken, newPassword string) (*domain.AuthResult, error)
	GetProfileFunc           func(ctx context.Context, token string) (*domain.User, error)
	UpdateProfileFunc        func(ctx context.Context, token string, update domain.ProfileUpdate) (*domain.User, error)
}

// NewMockAuthAPI creates a new MockAuthAPI with default behaviors
func NewMockAuthAPI() *MockAuthAPI {
	return &MockAuthAPI{}
}

func mockAuthResult(email string) *domain.AuthResult {
	return &domain.AuthResult{
		User:  &domain.User{ID: "user-1", Name: "Test User", Email: email, Role: domain.RoleUser, EmailVerified: true},
		Token: "mock_token",
	}
}

// Register registers a new user
func (m *MockAuthAPI) Register(ctx context.Context, reg domain.Registration) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, reg)
	}
	return nil
}

// Login authenticates with email and password
func (m *MockAuthAPI) Login(ctx context.Context, email, password, location string) (*domain.AuthResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, location)
	}
	return mockAuthResult(email), nil
}

// SendEmailOTP sends an email OTP
func (m *MockAuthAPI) SendEmailOTP(ctx context.Context, email string) error {
	if m.SendEmailOTPFunc != nil {
		return m.SendEmailOTPFunc(ctx, email)
	}
	return nil
}

// VerifyEmailOTP verifies an email OTP
func (m *MockAuthAPI) VerifyEmailOTP(ctx context.Context, email, otp string) (*domain.AuthResult, error) {
	if m.VerifyEmailOTPFunc != nil {
		return m.VerifyEmailOTPFunc(ctx, email, otp)
	}
	return mockAuthResult(email), nil
}

// PhoneRegister registers with a provider identity token
func (m *MockAuthAPI) PhoneRegister(ctx context.Context, idToken string, reg domain.Registration) (*domain.AuthResult, error) {
	if m.PhoneRegisterFunc != nil {
		return m.PhoneRegisterFunc(ctx, idToken, reg)
	}
	return mockAuthResult(reg.Email), nil
}

// PhoneLogin logs in with a provider identity token
func (m *MockAuthAPI) PhoneLogin(ctx context.Context, idToken string) (*domain.AuthResult, error) {
	if m.PhoneLoginFunc != nil {
		return m.PhoneLoginFunc(ctx, idToken)
	}
	return mockAuthResult(""), nil
}

// SendPasswordResetOTP sends a password reset OTP
func (m *MockAuthAPI) SendPasswordResetOTP(ctx context.Context, email string) error {
	if m.SendPasswordResetOTPFunc != nil {
		return m.SendPasswordResetOTPFunc(ctx, email)
	}
	return nil
}

// ResetPassword resets a password with an email OTP
func (m *MockAuthAPI) ResetPassword(ctx context.Context, email, otp, newPassword string) (*domain.AuthResult, error) {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, otp, newPassword)
	}
	return mockAuthResult(email), nil
}

// ResetPasswordByPhone resets a password with a provider identity token
func (m *MockAuthAPI) ResetPasswordByPhone(ctx context.Context, idToken, newPassword string) (*domain.AuthResult, error) {
	if m.ResetPasswordByPhoneFunc != nil {
		return m.ResetPasswordByPhoneFunc(ctx, idToken, newPassword)
	}
	return mockAuthResult(""), nil
}

// GetProfile loads the profile
func (m *MockAuthAPI) GetProfile(ctx context.Context, token string) (*domain.User, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, token)
	}
	return mockAuthResult("a@b.com").User, nil
}

// UpdateProfile updates the profile
func (m *MockAuthAPI) UpdateProfile(ctx context.Context, token string, update domain.ProfileUpdate) (*domain.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, token, update)
	}
	u := mockAuthResult("a@b.com").User
	u.Name, u.Company, u.Phone = update.Name, update.Company, update.Phone
	return u, nil
}

// Compile-time interface compliance verification
var _ domain.AuthAPI = (*MockAuthAPI)(nil)
