package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/infrastructure/auth"
	"github.com/you/kycstore/internal/mocks"
	"github.com/you/kycstore/internal/services"
	"go.uber.org/zap"
)

const (
	testCookie   = "kyc_sid"
	testClientID = "9b2f6c1e-4a7d-4f3e-8c55-0d1e2f3a4b5c"
)

// createTestEnforcer creates a Casbin enforcer with the storefront model
func createTestEnforcer(t *testing.T) *casbin.Enforcer {
	t.Helper()
	m, err := model.NewModelFromString(auth.DefaultModel)
	require.NoError(t, err)
	e, err := casbin.NewEnforcer(m)
	require.NoError(t, err)

	_, _ = e.AddGroupingPolicy(auth.SubjectUser, auth.SubjectAnonymous)
	_, _ = e.AddGroupingPolicy(auth.SubjectAdmin, auth.SubjectUser)
	_, _ = e.AddPolicy(auth.SubjectAnonymous, "/cart", "GET")
	_, _ = e.AddPolicy(auth.SubjectUser, "/orders", "GET")
	_, _ = e.AddPolicy(auth.SubjectAdmin, "/admin/*", "(GET|POST)")
	return e
}

func createRegistryForTest(t *testing.T) *services.ClientRegistry {
	t.Helper()
	return services.NewClientRegistry(services.RegistryDeps{
		Session: services.SessionDeps{
			Store:     mocks.NewMockTokenStore(),
			Inspector: mocks.NewMockTokenInspector(),
			Clock:     mocks.NewFakeClock(time.Now()),
			MaxAge:    time.Hour,
		},
		Flow: services.FlowDeps{Pending: mocks.NewMockPendingStore(), Throttle: mocks.NewMockResendThrottle()},
		Cart: services.CartDeps{Catalog: services.NewPriceCatalog(200, nil), Coupons: mocks.NewMockCouponAPI()},
	})
}

func buildGuardedRouter(t *testing.T, registry *services.ClientRegistry) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(Recovery(zap.NewNop()), ErrorHandling(), ClientSession(registry, CookieConfig{Name: testCookie, MaxAge: time.Hour}))
	guarded := router.Group("/", RouteGuard(services.NewCasbinEnforcer(createTestEnforcer(t))))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) }
	guarded.GET("/cart", ok)
	guarded.GET("/orders", ok)
	guarded.GET("/admin/policies", ok)
	return router
}

func TestRouteGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		role           string
		path           string
		expectedStatus int
	}{
		{name: "anonymous public route", path: "/cart", expectedStatus: http.StatusOK},
		{name: "anonymous protected route", path: "/orders", expectedStatus: http.StatusUnauthorized},
		{name: "user protected route", role: domain.RoleUser, path: "/orders", expectedStatus: http.StatusOK},
		{name: "user inherits anonymous routes", role: domain.RoleUser, path: "/cart", expectedStatus: http.StatusOK},
		{name: "user admin route", role: domain.RoleUser, path: "/admin/policies", expectedStatus: http.StatusForbidden},
		{name: "admin route", role: domain.RoleAdmin, path: "/admin/policies", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := createRegistryForTest(t)
			if tt.role != "" {
				cc := registry.Get(context.Background(), testClientID)
				err := cc.Session.Establish(context.Background(), cc.Session.BeginLogin(), &domain.AuthResult{
					Token: "good",
					User:  &domain.User{ID: "u1", Role: tt.role},
				})
				require.NoError(t, err)
			}
			router := buildGuardedRouter(t, registry)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.AddCookie(&http.Cookie{Name: testCookie, Value: testClientID})
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedStatus == http.StatusOK, body["success"])
		})
	}
}

func TestClientSession_IssuesCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := createRegistryForTest(t)
	router := gin.New()
	router.Use(ClientSession(registry, CookieConfig{Name: testCookie, MaxAge: time.Hour}))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": Client(c).ID})
	})

	tests := []struct {
		name   string
		cookie string
		keeps  bool
	}{
		{name: "no cookie"},
		{name: "malformed cookie", cookie: "../../etc"},
		{name: "valid cookie", cookie: testClientID, keeps: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: testCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.True(t, cookies[0].HttpOnly)
			if tt.keeps {
				assert.Equal(t, testClientID, cookies[0].Value)
			} else {
				assert.NotEqual(t, tt.cookie, cookies[0].Value)
				assert.Len(t, cookies[0].Value, 36)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(zap.NewNop()), Recovery(zap.NewNop()))
	router.GET("/boom", func(c *gin.Context) { panic("render failed") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body RecoveryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"reload", "home"}, body.Actions)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		message   string
		retryable bool
	}{
		{
			name:    "validation",
			err:     domain.NewValidationError("password", "Password must be at least 6 characters"),
			status:  http.StatusBadRequest,
			message: "Password must be at least 6 characters",
		},
		{
			name:    "resend throttled",
			err:     &domain.Error{Kind: domain.KindValidation, Message: "Please wait 30 seconds", Err: domain.ErrResendTooSoon},
			status:  http.StatusTooManyRequests,
			message: "Please wait 30 seconds",
		},
		{
			name:    "backend rejection keeps status",
			err:     domain.NewBackendError(http.StatusUnauthorized, "Invalid credentials"),
			status:  http.StatusUnauthorized,
			message: "Invalid credentials",
		},
		{
			name:    "backend server error",
			err:     domain.NewBackendError(http.StatusInternalServerError, "Order creation failed"),
			status:  http.StatusBadGateway,
			message: "Order creation failed",
		},
		{
			name:      "network",
			err:       domain.NewNetworkError("Network error", errors.New("dial")),
			status:    http.StatusServiceUnavailable,
			message:   "Network error",
			retryable: true,
		},
		{
			name:      "provider throttling",
			err:       domain.NewProviderError(domain.ProviderCodeTooManyRequests, "Too many attempts. Try again later.", nil),
			status:    http.StatusTooManyRequests,
			message:   "Too many attempts. Try again later.",
			retryable: true,
		},
		{
			name:    "provider invalid code",
			err:     domain.NewProviderError(domain.ProviderCodeInvalidCode, "Incorrect OTP", nil),
			status:  http.StatusBadRequest,
			message: "Incorrect OTP",
		},
		{
			name:    "in flight",
			err:     domain.ErrRequestInFlight,
			status:  http.StatusConflict,
			message: "A request is already in progress",
		},
		{
			name:      "unknown",
			err:       errors.New("boom"),
			status:    http.StatusInternalServerError,
			message:   "Something went wrong. Please try again.",
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := MapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, payload.Message)
			assert.False(t, payload.Success)
			assert.Equal(t, tt.retryable, payload.Error.Retryable)
		})
	}
}
