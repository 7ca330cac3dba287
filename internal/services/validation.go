package services

import (
	"regexp"
	"strings"

	"github.com/you/kycstore/domain"
)

// DialCodes are the selectable country calling codes
var DialCodes = []string{"91", "1", "44", "61", "65", "971"}

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneLikePattern = regexp.MustCompile(`^\+?\d[\d\s-]*$`)
	e164Pattern      = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	nonDigits        = regexp.MustCompile(`\D`)
	allDigits        = regexp.MustCompile(`^\d+$`)
)

// Password and OTP rules
const (
	MinPasswordLength = 6
	EmailOTPLength    = 6
	MinPhoneOTPLength = 4
)

// IsEmail reports whether v has the local@domain.tld shape
func IsEmail(v string) bool {
	return emailPattern.MatchString(strings.TrimSpace(v))
}

// IsPhoneLike reports whether v could be a phone number
func IsPhoneLike(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.Contains(v, "@") && phoneLikePattern.MatchString(v)
}

// ClassifyIdentifier decides which identity path an identifier takes
func ClassifyIdentifier(identifier string) (domain.VerificationKind, error) {
	switch {
	case IsEmail(identifier):
		return domain.VerificationEmail, nil
	case IsPhoneLike(identifier):
		return domain.VerificationPhone, nil
	default:
		return "", domain.NewValidationError("identifier", "Enter a valid email or phone number")
	}
}

// FormatToE164 normalizes a raw phone number to +<country><number>. Input
// that already starts with + is returned unchanged.
func FormatToE164(raw, dialCode string) string {
	input := strings.TrimSpace(raw)
	if strings.HasPrefix(input, "+") {
		return input
	}
	if dialCode == "" {
		dialCode = DialCodes[0]
	}

	digits := strings.TrimLeft(nonDigits.ReplaceAllString(input, ""), "0")
	if len(digits) == 10 {
		return "+" + dialCode + digits
	}
	if strings.HasPrefix(digits, dialCode) && len(digits) > len(dialCode) {
		for strings.HasPrefix(digits, dialCode+dialCode) {
			digits = digits[len(dialCode):]
		}
		return "+" + digits
	}
	return "+" + dialCode + digits
}

// ValidateDialCode checks dialCode against the supported list
func ValidateDialCode(dialCode string) error {
	for _, c := range DialCodes {
		if c == dialCode {
			return nil
		}
	}
	return domain.NewValidationError("dialCode", "Unsupported country code")
}

// NormalizePhone formats and checks a phone number before any network call
func NormalizePhone(raw, dialCode string) (string, error) {
	if err := ValidateDialCode(dialCode); err != nil {
		return "", err
	}
	e164 := FormatToE164(raw, dialCode)
	if !e164Pattern.MatchString(e164) {
		return "", domain.NewValidationError("phone", "Invalid phone number")
	}
	return e164, nil
}

// ValidatePassword enforces the minimum password length
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.NewValidationError("password", "Password must be at least 6 characters")
	}
	return nil
}

// ValidateOTP checks the code shape for the given path: exactly six digits
// for email, at least four for phone.
func ValidateOTP(kind domain.VerificationKind, code string) error {
	code = strings.TrimSpace(code)
	if !allDigits.MatchString(code) {
		return domain.NewValidationError("otp", "OTP must contain only digits")
	}
	switch kind {
	case domain.VerificationEmail:
		if len(code) != EmailOTPLength {
			return domain.NewValidationError("otp", "Please enter the 6-digit OTP")
		}
	case domain.VerificationPhone:
		if len(code) < MinPhoneOTPLength {
			return domain.NewValidationError("otp", "Please enter a valid OTP")
		}
	}
	return nil
}

// ValidateName rejects blank names on registration
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewValidationError("name", "Name is required")
	}
	return nil
}
