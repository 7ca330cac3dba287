package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/mocks"
)

type flowFixture struct {
	flow      *AuthFlow
	session   *SessionManager
	tokens    *mocks.MockTokenStore
	auth      *mocks.MockAuthAPI
	provider  *mocks.MockIdentityProvider
	verifiers *mocks.MockVerifierFactory
	pending   *mocks.MockPendingStore
	throttle  *mocks.MockResendThrottle
	audit     *mocks.MockAuditLogger
}

// createAuthFlowForTest creates an AuthFlow with mock dependencies
func createAuthFlowForTest(t *testing.T) *flowFixture {
	t.Helper()

	fx := &flowFixture{
		tokens:    mocks.NewMockTokenStore(),
		auth:      mocks.NewMockAuthAPI(),
		provider:  mocks.NewMockIdentityProvider(),
		verifiers: mocks.NewMockVerifierFactory(),
		pending:   mocks.NewMockPendingStore(),
		throttle:  mocks.NewMockResendThrottle(),
		audit:     mocks.NewMockAuditLogger(),
	}
	fx.session = NewSessionManager("client-1", SessionDeps{
		Store:     fx.tokens,
		Inspector: mocks.NewMockTokenInspector(),
		Audit:     fx.audit,
		Clock:     mocks.NewFakeClock(time.Now()),
		MaxAge:    testMaxAge,
	})
	fx.flow = NewAuthFlow("client-1", fx.session, FlowDeps{
		Auth:        fx.auth,
		Provider:    fx.provider,
		Verifiers:   fx.verifiers,
		Pending:     fx.pending,
		Throttle:    fx.throttle,
		Audit:       fx.audit,
		SendTimeout: time.Second,
	})
	return fx
}

func TestAuthFlow_EmailRegistrationHappyPath(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()

	var registered domain.Registration
	fx.auth.RegisterFunc = func(ctx context.Context, reg domain.Registration) error {
		registered = reg
		return nil
	}

	status, err := fx.flow.Register(ctx, RegisterInput{Name: "A", Identifier: "a@b.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingEmailOTP, status.Step)
	assert.Equal(t, "a@b.com", status.PendingEmail)
	assert.Equal(t, "a@b.com", registered.Email)
	assert.False(t, fx.session.Snapshot().IsAuthenticated)

	fx.auth.VerifyEmailOTPFunc = func(ctx context.Context, email, otp string) (*domain.AuthResult, error) {
		assert.Equal(t, "a@b.com", email)
		assert.Equal(t, "123456", otp)
		return &domain.AuthResult{Token: "good", User: &domain.User{ID: "u1", Email: email}}, nil
	}

	status, err = fx.flow.VerifyOtp(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, StepAuthenticated, status.Step)
	assert.True(t, fx.session.Snapshot().IsAuthenticated)
	assert.Empty(t, fx.flow.Status(ctx).PendingEmail)

	_, err = fx.pending.Load(ctx, "client-1")
	assert.ErrorIs(t, err, domain.ErrPendingNotFound)
	assert.Equal(t, 1, fx.audit.Count(domain.UserRegistrationEvent))
}

func TestAuthFlow_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		run   func(f *AuthFlow) error
		field string
	}{
		{
			name: "short password",
			run: func(f *AuthFlow) error {
				_, err := f.Register(context.Background(), RegisterInput{Name: "A", Identifier: "a@b.com", Password: "12345"})
				return err
			},
			field: "password",
		},
		{
			name: "missing name",
			run: func(f *AuthFlow) error {
				_, err := f.Register(context.Background(), RegisterInput{Identifier: "a@b.com", Password: "secret1"})
				return err
			},
			field: "name",
		},
		{
			name: "unclassifiable identifier",
			run: func(f *AuthFlow) error {
				_, err := f.Login(context.Background(), LoginInput{Identifier: "nobody", Password: "secret1"})
				return err
			},
			field: "identifier",
		},
		{
			name: "phone too short",
			run: func(f *AuthFlow) error {
				_, err := f.Login(context.Background(), LoginInput{Identifier: "123", DialCode: "91"})
				return err
			},
			field: "phone",
		},
		{
			name: "unsupported dial code",
			run: func(f *AuthFlow) error {
				_, err := f.Login(context.Background(), LoginInput{Identifier: "9876543210", DialCode: "999"})
				return err
			},
			field: "dialCode",
		},
		{
			name: "reset with short otp",
			run: func(f *AuthFlow) error {
				_, err := f.ResetPassword(context.Background(), "a@b.com", "123", "secret1")
				return err
			},
			field: "otp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := createAuthFlowForTest(t)
			called := false
			fx.auth.RegisterFunc = func(ctx context.Context, reg domain.Registration) error {
				called = true
				return nil
			}
			fx.auth.LoginFunc = func(ctx context.Context, email, password, location string) (*domain.AuthResult, error) {
				called = true
				return nil, nil
			}
			fx.auth.ResetPasswordFunc = func(ctx context.Context, email, otp, newPassword string) (*domain.AuthResult, error) {
				called = true
				return nil, nil
			}
			fx.provider.SendVerificationCodeFunc = func(ctx context.Context, e164Number, challengeToken string) (string, error) {
				called = true
				return "", nil
			}

			err := tt.run(fx.flow)

			e, ok := domain.AsError(err)
			require.True(t, ok, "expected normalized error, got %v", err)
			assert.Equal(t, domain.KindValidation, e.Kind)
			assert.Equal(t, tt.field, e.Field)
			assert.False(t, called, "no network call may be made")
		})
	}
}

func TestAuthFlow_EmailLogin(t *testing.T) {
	t.Run("token establishes the session", func(t *testing.T) {
		fx := createAuthFlowForTest(t)
		status, err := fx.flow.Login(context.Background(), LoginInput{Identifier: "A@B.com", Password: "secret1"})

		require.NoError(t, err)
		assert.Equal(t, StepAuthenticated, status.Step)
		assert.True(t, fx.session.Snapshot().IsAuthenticated)
	})

	t.Run("answer without token continues with email otp", func(t *testing.T) {
		fx := createAuthFlowForTest(t)
		fx.auth.LoginFunc = func(ctx context.Context, email, password, location string) (*domain.AuthResult, error) {
			return &domain.AuthResult{User: &domain.User{Email: email}}, nil
		}
		otpSent := ""
		fx.auth.SendEmailOTPFunc = func(ctx context.Context, email string) error {
			otpSent = email
			return nil
		}

		status, err := fx.flow.Login(context.Background(), LoginInput{Identifier: "a@b.com", Password: "secret1"})

		require.NoError(t, err)
		assert.Equal(t, StepAwaitingEmailOTP, status.Step)
		assert.Equal(t, domain.PurposeLogin, status.Purpose)
		assert.Equal(t, "a@b.com", otpSent)
		assert.False(t, fx.session.Snapshot().IsAuthenticated)
	})

	t.Run("backend rejection leaves session unchanged", func(t *testing.T) {
		fx := createAuthFlowForTest(t)
		fx.auth.LoginFunc = func(ctx context.Context, email, password, location string) (*domain.AuthResult, error) {
			return nil, domain.NewBackendError(401, "Invalid credentials")
		}

		_, err := fx.flow.Login(context.Background(), LoginInput{Identifier: "a@b.com", Password: "secret1"})

		e, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid credentials", e.Message)
		assert.False(t, fx.session.Snapshot().IsAuthenticated)
		assert.False(t, fx.tokens.Has("client-1"))
		assert.Equal(t, 1, fx.audit.Count(domain.UserLoginFailureEvent))
	})
}

func TestAuthFlow_FailedVerifyKeepsPending(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()

	_, err := fx.flow.Register(ctx, RegisterInput{Name: "A", Identifier: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	fx.auth.VerifyEmailOTPFunc = func(ctx context.Context, email, otp string) (*domain.AuthResult, error) {
		return nil, domain.NewBackendError(400, "Invalid OTP")
	}
	status, err := fx.flow.VerifyOtp(ctx, "000000")

	assert.Error(t, err)
	assert.Equal(t, StepAwaitingEmailOTP, status.Step)
	assert.Equal(t, "a@b.com", fx.flow.Status(ctx).PendingEmail)
	assert.False(t, fx.session.Snapshot().IsAuthenticated)
}

func TestAuthFlow_VerifyWithoutPending(t *testing.T) {
	fx := createAuthFlowForTest(t)

	_, err := fx.flow.VerifyOtp(context.Background(), "123456")

	assert.ErrorIs(t, err, domain.ErrNoPendingVerification)
	e, _ := domain.AsError(err)
	assert.Equal(t, "Please request OTP first", e.Message)
}

func TestAuthFlow_PhoneLogin(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()

	// Without a solved challenge nothing is sent
	_, err := fx.flow.Login(ctx, LoginInput{Identifier: "09876543210", DialCode: "91"})
	assert.ErrorIs(t, err, domain.ErrVerifierConsumed)

	var sentTo, usedChallenge string
	fx.provider.SendVerificationCodeFunc = func(ctx context.Context, e164Number, challengeToken string) (string, error) {
		sentTo, usedChallenge = e164Number, challengeToken
		return "vid-1", nil
	}
	require.NoError(t, fx.flow.ArmChallenge("captcha-1"))

	status, err := fx.flow.Login(ctx, LoginInput{Identifier: "09876543210", DialCode: "91"})
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingPhoneOTP, status.Step)
	assert.Equal(t, "+919876543210", status.PendingPhone)
	assert.Equal(t, "+919876543210", sentTo)
	assert.Equal(t, "captcha-1", usedChallenge)

	fx.provider.ConfirmCodeFunc = func(ctx context.Context, verificationID, code string) (string, error) {
		assert.Equal(t, "vid-1", verificationID)
		assert.Equal(t, "1234", code)
		return "id-token-1", nil
	}
	fx.auth.PhoneLoginFunc = func(ctx context.Context, idToken string) (*domain.AuthResult, error) {
		assert.Equal(t, "id-token-1", idToken)
		return &domain.AuthResult{Token: "good", User: &domain.User{ID: "u2", Phone: "+919876543210"}}, nil
	}

	status, err = fx.flow.VerifyOtp(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, StepAuthenticated, status.Step)
	assert.True(t, fx.session.Snapshot().IsAuthenticated)
	assert.True(t, fx.verifiers.Last().IsDisposed(), "verifier is released once the flow completes")
}

func TestAuthFlow_PhoneRegistrationReplaysProfile(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()
	require.NoError(t, fx.flow.ArmChallenge("captcha"))

	_, err := fx.flow.Register(ctx, RegisterInput{
		Name: "Asha", Identifier: "9876543210", Password: "secret1", Company: "Acme", DialCode: "+91",
	})
	require.NoError(t, err)

	stored, err := fx.pending.Load(ctx, "client-1")
	require.NoError(t, err)
	assert.Empty(t, stored.Registration.Password, "password is never persisted")

	var got domain.Registration
	fx.auth.PhoneRegisterFunc = func(ctx context.Context, idToken string, reg domain.Registration) (*domain.AuthResult, error) {
		got = reg
		return &domain.AuthResult{Token: "good", User: &domain.User{ID: "u3", Name: reg.Name}}, nil
	}

	_, err = fx.flow.VerifyOtp(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, "secret1", got.Password)
}

func TestAuthFlow_ProviderErrorsSurface(t *testing.T) {
	tests := []struct {
		name     string
		sendErr  error
		kind     domain.ErrorKind
		code     string
		disposed bool
	}{
		{
			name:     "invalid phone",
			sendErr:  domain.NewProviderError(domain.ProviderCodeInvalidPhone, "Invalid phone number", nil),
			kind:     domain.KindProvider,
			code:     domain.ProviderCodeInvalidPhone,
			disposed: true,
		},
		{
			name:     "rate limited",
			sendErr:  domain.NewProviderError(domain.ProviderCodeTooManyRequests, "Too many attempts. Try again later.", nil),
			kind:     domain.KindProvider,
			code:     domain.ProviderCodeTooManyRequests,
			disposed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := createAuthFlowForTest(t)
			fx.provider.SendVerificationCodeFunc = func(ctx context.Context, e164Number, challengeToken string) (string, error) {
				return "", tt.sendErr
			}
			require.NoError(t, fx.flow.ArmChallenge("captcha"))

			_, err := fx.flow.Login(context.Background(), LoginInput{Identifier: "9876543210"})

			e, ok := domain.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.disposed, fx.verifiers.Last().IsDisposed())
			assert.Equal(t, StepIdle, fx.flow.Status(context.Background()).Step)
		})
	}
}

func TestAuthFlow_SendTimeout(t *testing.T) {
	fx := createAuthFlowForTest(t)
	fx.flow.deps.SendTimeout = 10 * time.Millisecond
	fx.provider.SendVerificationCodeFunc = func(ctx context.Context, e164Number, challengeToken string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	require.NoError(t, fx.flow.ArmChallenge("captcha"))

	_, err := fx.flow.Login(context.Background(), LoginInput{Identifier: "9876543210"})

	e, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindNetwork, e.Kind)
	assert.True(t, e.Retryable())
	assert.False(t, fx.flow.Busy())
}

func TestAuthFlow_ResendOtp(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()

	_, err := fx.flow.Register(ctx, RegisterInput{Name: "A", Identifier: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	sends := 0
	fx.auth.SendEmailOTPFunc = func(ctx context.Context, email string) error {
		sends++
		return nil
	}
	status, err := fx.flow.ResendOtp(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", status.PendingEmail)
	assert.Equal(t, 1, sends)

	fx.throttle.CanResendFunc = func(ctx context.Context, identifier string) (bool, int64, error) {
		return false, 42, nil
	}
	_, err = fx.flow.ResendOtp(ctx)
	assert.ErrorIs(t, err, domain.ErrResendTooSoon)
	e, _ := domain.AsError(err)
	assert.Contains(t, e.Message, "42 seconds")
	assert.Equal(t, 1, sends)
}

func TestAuthFlow_PhoneResendReplacesChallenge(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()

	n := 0
	fx.provider.SendVerificationCodeFunc = func(ctx context.Context, e164Number, challengeToken string) (string, error) {
		n++
		return []string{"vid-1", "vid-2"}[n-1], nil
	}
	require.NoError(t, fx.flow.ArmChallenge("c1"))
	_, err := fx.flow.Login(ctx, LoginInput{Identifier: "9876543210"})
	require.NoError(t, err)

	// the challenge is one-shot
	_, err = fx.flow.ResendOtp(ctx)
	assert.ErrorIs(t, err, domain.ErrVerifierConsumed)

	require.NoError(t, fx.flow.ArmChallenge("c2"))
	_, err = fx.flow.ResendOtp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.verifiers.Count(), "the verifier is reused while the flow is alive")

	fx.provider.ConfirmCodeFunc = func(ctx context.Context, verificationID, code string) (string, error) {
		if verificationID != "vid-2" {
			return "", domain.NewProviderError(domain.ProviderCodeCodeExpired, "OTP has expired", nil)
		}
		return "id-token", nil
	}
	_, err = fx.flow.VerifyOtp(ctx, "1234")
	require.NoError(t, err)
}

func TestAuthFlow_PasswordReset(t *testing.T) {
	t.Run("email", func(t *testing.T) {
		fx := createAuthFlowForTest(t)
		ctx := context.Background()

		status, err := fx.flow.SendPasswordResetOtp(ctx, "a@b.com", "")
		require.NoError(t, err)
		assert.Equal(t, domain.PurposePasswordReset, status.Purpose)

		_, err = fx.flow.VerifyOtp(ctx, "123456")
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))

		status, err = fx.flow.ResetPassword(ctx, "a@b.com", "123456", "newpass1")
		require.NoError(t, err)
		assert.Equal(t, StepAuthenticated, status.Step)
		assert.Equal(t, 1, fx.audit.Count(domain.PasswordResetEvent))
	})

	t.Run("phone", func(t *testing.T) {
		fx := createAuthFlowForTest(t)
		ctx := context.Background()
		require.NoError(t, fx.flow.ArmChallenge("captcha"))

		_, err := fx.flow.SendPasswordResetOtp(ctx, "9876543210", "91")
		require.NoError(t, err)

		var gotToken, gotPassword string
		fx.auth.ResetPasswordByPhoneFunc = func(ctx context.Context, idToken, newPassword string) (*domain.AuthResult, error) {
			gotToken, gotPassword = idToken, newPassword
			return &domain.AuthResult{Token: "good", User: &domain.User{ID: "u1"}}, nil
		}
		status, err := fx.flow.ResetPasswordByPhone(ctx, "1234", "newpass1")
		require.NoError(t, err)
		assert.Equal(t, StepAuthenticated, status.Step)
		assert.Equal(t, "id-token", gotToken)
		assert.Equal(t, "newpass1", gotPassword)
	})
}

func TestAuthFlow_RequestInFlight(t *testing.T) {
	fx := createAuthFlowForTest(t)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	fx.auth.LoginFunc = func(ctx context.Context, email, password, location string) (*domain.AuthResult, error) {
		close(entered)
		<-unblock
		return &domain.AuthResult{Token: "good", User: &domain.User{ID: "u1"}}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = fx.flow.Login(context.Background(), LoginInput{Identifier: "a@b.com", Password: "secret1"})
	}()
	<-entered

	_, err := fx.flow.Login(context.Background(), LoginInput{Identifier: "a@b.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)

	close(unblock)
	wg.Wait()
	assert.False(t, fx.flow.Busy())
}

func TestAuthFlow_LogoutDuringLoginIsAuthoritative(t *testing.T) {
	fx := createAuthFlowForTest(t)
	fx.auth.LoginFunc = func(ctx context.Context, email, password, location string) (*domain.AuthResult, error) {
		// the validator tears the session down while the request is in flight
		fx.session.Logout(ctx, LogoutReasonExpired)
		return &domain.AuthResult{Token: "good", User: &domain.User{ID: "u1"}}, nil
	}

	_, err := fx.flow.Login(context.Background(), LoginInput{Identifier: "a@b.com", Password: "secret1"})

	assert.ErrorIs(t, err, domain.ErrSessionSuperseded)
	assert.False(t, fx.session.Snapshot().IsAuthenticated)
	assert.False(t, fx.tokens.Has("client-1"))
}

func TestAuthFlow_LogoutClearsPending(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()
	require.NoError(t, fx.flow.ArmChallenge("captcha"))
	_, err := fx.flow.Login(ctx, LoginInput{Identifier: "9876543210"})
	require.NoError(t, err)

	fx.session.Logout(ctx, LogoutReasonUser)

	assert.Equal(t, StepIdle, fx.flow.Status(ctx).Step)
	assert.True(t, fx.verifiers.Last().IsDisposed())
}

func TestAuthFlow_Profile(t *testing.T) {
	fx := createAuthFlowForTest(t)
	ctx := context.Background()

	_, err := fx.flow.GetProfile(ctx)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = fx.flow.Login(ctx, LoginInput{Identifier: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := fx.flow.UpdateProfile(ctx, domain.ProfileUpdate{Name: " Asha ", Phone: "09876543210"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "+919876543210", user.Phone)
	assert.Equal(t, "Asha", fx.session.Snapshot().User.Name)

	fx.auth.GetProfileFunc = func(ctx context.Context, token string) (*domain.User, error) {
		return nil, domain.NewBackendError(401, "Token expired")
	}
	_, err = fx.flow.GetProfile(ctx)
	assert.Error(t, err)
	assert.False(t, fx.session.Snapshot().IsAuthenticated, "a rejected token forces logout")
}

func TestAuthFlow_ResetDisposesVerifier(t *testing.T) {
	fx := createAuthFlowForTest(t)
	require.NoError(t, fx.flow.ArmChallenge("captcha"))
	require.NoError(t, fx.flow.ArmChallenge("captcha-again"))
	assert.Equal(t, 1, fx.verifiers.Count())

	fx.flow.Reset(context.Background())
	assert.True(t, fx.verifiers.Last().IsDisposed())

	require.NoError(t, fx.flow.ArmChallenge("captcha"))
	assert.Equal(t, 2, fx.verifiers.Count())
}

func TestAuthFlow_PendingStoreFailure(t *testing.T) {
	fx := createAuthFlowForTest(t)
	fx.pending.SaveFunc = func(ctx context.Context, clientID string, pending *domain.PendingVerification) error {
		return errors.New("redis down")
	}

	_, err := fx.flow.Register(context.Background(), RegisterInput{Name: "A", Identifier: "a@b.com", Password: "secret1"})

	assert.Error(t, err)
	assert.False(t, fx.flow.Busy())
}
