package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you/kycstore/domain"
)

// User-facing messages for provider failures
const (
	MsgInvalidPhone    = "Invalid phone number"
	MsgTooManyRequests = "Too many attempts. Try again later."
	MsgSendFailed      = "Failed to send OTP"
	MsgIncorrectOTP    = "Incorrect OTP"
	MsgOTPExpired      = "OTP has expired"
	MsgVerifyFailed    = "Invalid OTP"
	MsgRequestFirst    = "Please request OTP first"
)

// FirebaseProvider implements domain.IdentityProvider against the Identity
// Toolkit REST API
type FirebaseProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewFirebaseProvider creates a provider for the given project API key
func NewFirebaseProvider(baseURL, apiKey string, timeout time.Duration) *FirebaseProvider {
	return &FirebaseProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type sendCodeResponse struct {
	SessionInfo string `json:"sessionInfo"`
}

type signInResponse struct {
	IDToken     string `json:"idToken"`
	PhoneNumber string `json:"phoneNumber"`
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendVerificationCode implements domain.IdentityProvider
func (p *FirebaseProvider) SendVerificationCode(ctx context.Context, e164Number, challengeToken string) (string, error) {
	body := map[string]string{
		"phoneNumber":    e164Number,
		"recaptchaToken": challengeToken,
	}
	var out sendCodeResponse
	if err := p.call(ctx, "accounts:sendVerificationCode", body, &out, sendFailure); err != nil {
		return "", err
	}
	if out.SessionInfo == "" {
		return "", domain.NewProviderError(domain.ProviderCodeUnknown, MsgSendFailed, fmt.Errorf("empty sessionInfo"))
	}
	return out.SessionInfo, nil
}

// ConfirmCode implements domain.IdentityProvider
func (p *FirebaseProvider) ConfirmCode(ctx context.Context, verificationID, code string) (string, error) {
	if verificationID == "" {
		return "", domain.NewProviderError(domain.ProviderCodeMissingSession, MsgRequestFirst, nil)
	}
	body := map[string]string{
		"sessionInfo": verificationID,
		"code":        code,
	}
	var out signInResponse
	if err := p.call(ctx, "accounts:signInWithPhoneNumber", body, &out, verifyFailure); err != nil {
		return "", err
	}
	if out.IDToken == "" {
		return "", domain.NewProviderError(domain.ProviderCodeUnknown, MsgVerifyFailed, fmt.Errorf("empty idToken"))
	}
	return out.IDToken, nil
}

func (p *FirebaseProvider) call(ctx context.Context, method string, body, out interface{}, mapErr func(string, error) *domain.Error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/%s?key=%s", p.baseURL, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return domain.NewNetworkError("Network error. Please check your connection and try again.", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var pe providerError
		_ = json.NewDecoder(resp.Body).Decode(&pe)
		return mapErr(pe.Error.Message, fmt.Errorf("%s: %d %s", method, resp.StatusCode, pe.Error.Message))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return mapErr("", fmt.Errorf("decode %s: %w", method, err))
	}
	return nil
}

// providerCode extracts the leading error code of messages like
// "INVALID_CODE : The SMS verification code ..."
func providerCode(message string) string {
	code, _, _ := strings.Cut(message, " ")
	return strings.TrimSpace(code)
}

func sendFailure(message string, cause error) *domain.Error {
	switch providerCode(message) {
	case "INVALID_PHONE_NUMBER", "MISSING_PHONE_NUMBER":
		return domain.NewProviderError(domain.ProviderCodeInvalidPhone, MsgInvalidPhone, cause)
	case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED":
		return domain.NewProviderError(domain.ProviderCodeTooManyRequests, MsgTooManyRequests, cause)
	default:
		return domain.NewProviderError(domain.ProviderCodeUnknown, MsgSendFailed, cause)
	}
}

func verifyFailure(message string, cause error) *domain.Error {
	switch providerCode(message) {
	case "INVALID_CODE":
		return domain.NewProviderError(domain.ProviderCodeInvalidCode, MsgIncorrectOTP, cause)
	case "SESSION_EXPIRED", "CODE_EXPIRED":
		return domain.NewProviderError(domain.ProviderCodeCodeExpired, MsgOTPExpired, cause)
	case "MISSING_SESSION_INFO", "INVALID_SESSION_INFO":
		return domain.NewProviderError(domain.ProviderCodeMissingSession, MsgRequestFirst, cause)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return domain.NewProviderError(domain.ProviderCodeTooManyRequests, MsgTooManyRequests, cause)
	default:
		return domain.NewProviderError(domain.ProviderCodeUnknown, MsgVerifyFailed, cause)
	}
}

var _ domain.IdentityProvider = (*FirebaseProvider)(nil)
