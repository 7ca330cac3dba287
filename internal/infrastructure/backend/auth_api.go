package backend

import (
	"context"
	"net/http"

	"github.com/you/kycstore/domain"
)

// AuthAPI implements domain.AuthAPI
type AuthAPI struct{ *Client }

// NewAuthAPI wraps c as the identity endpoints
func NewAuthAPI(c *Client) *AuthAPI { return &AuthAPI{c} }

type userPayload struct {
	User *domain.User `json:"user"`
}

func (a *AuthAPI) Register(ctx context.Context, reg domain.Registration) error {
	body := map[string]string{
		"name":     reg.Name,
		"email":    reg.Email,
		"password": reg.Password,
	}
	if reg.Company != "" {
		body["company"] = reg.Company
	}
	if reg.Location != "" {
		body["location"] = reg.Location
	}
	return a.do(ctx, http.MethodPost, "/auth/register", "", body, nil, "Registration failed")
}

func (a *AuthAPI) Login(ctx context.Context, email, password, location string) (*domain.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	if location != "" {
		body["location"] = location
	}
	var out domain.AuthResult
	if err := a.do(ctx, http.MethodPost, "/auth/login", "", body, &out, "Login failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) SendEmailOTP(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPost, "/auth/send-email-otp", "", map[string]string{"email": email}, nil, "Failed to send OTP")
}

func (a *AuthAPI) VerifyEmailOTP(ctx context.Context, email, otp string) (*domain.AuthResult, error) {
	var out domain.AuthResult
	body := map[string]string{"email": email, "otp": otp}
	if err := a.do(ctx, http.MethodPost, "/auth/verify-email-otp", "", body, &out, "OTP verification failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) PhoneRegister(ctx context.Context, idToken string, reg domain.Registration) (*domain.AuthResult, error) {
	body := map[string]string{"idToken": idToken, "name": reg.Name}
	if reg.Company != "" {
		body["company"] = reg.Company
	}
	if reg.Password != "" {
		body["password"] = reg.Password
	}
	var out domain.AuthResult
	if err := a.do(ctx, http.MethodPost, "/auth/phone/register", "", body, &out, "Phone registration failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) PhoneLogin(ctx context.Context, idToken string) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := a.do(ctx, http.MethodPost, "/auth/phone/login", "", map[string]string{"idToken": idToken}, &out, "Phone login failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) SendPasswordResetOTP(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPost, "/auth/password/send-otp", "", map[string]string{"email": email}, nil, "Failed to send reset OTP")
}

func (a *AuthAPI) ResetPassword(ctx context.Context, email, otp, newPassword string) (*domain.AuthResult, error) {
	body := map[string]string{"email": email, "otp": otp, "newPassword": newPassword}
	var out domain.AuthResult
	if err := a.do(ctx, http.MethodPost, "/auth/password/reset", "", body, &out, "Password reset failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) ResetPasswordByPhone(ctx context.Context, idToken, newPassword string) (*domain.AuthResult, error) {
	body := map[string]string{"idToken": idToken, "newPassword": newPassword}
	var out domain.AuthResult
	if err := a.do(ctx, http.MethodPost, "/auth/password/reset-phone", "", body, &out, "Password reset failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) GetProfile(ctx context.Context, token string) (*domain.User, error) {
	var out userPayload
	if err := a.do(ctx, http.MethodGet, "/auth/profile", token, nil, &out, "Failed to load profile"); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (a *AuthAPI) UpdateProfile(ctx context.Context, token string, update domain.ProfileUpdate) (*domain.User, error) {
	var out userPayload
	if err := a.do(ctx, http.MethodPut, "/auth/profile", token, update, &out, "Failed to update profile"); err != nil {
		return nil, err
	}
	return out.User, nil
}

var _ domain.AuthAPI = (*AuthAPI)(nil)
