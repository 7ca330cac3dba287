package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
)

// ErrForbidden is recorded when the route guard denies an authenticated client
var ErrForbidden = errors.New("access denied")

// ErrorBody is the error part of every failed response
type ErrorBody struct {
	Kind      domain.ErrorKind `json:"kind"`
	Code      string           `json:"code,omitempty"`
	Field     string           `json:"field,omitempty"`
	Retryable bool             `json:"retryable"`
}

// ErrorResponse is the envelope of every failed response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Error   ErrorBody `json:"error"`
}

// ErrorHandling renders the last error recorded by a handler
func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}
		status, payload := MapError(lastErr.Err)
		c.AbortWithStatusJSON(status, payload)
	}
}

// AbortWithError records err for ErrorHandling and stops the chain
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// MapError converts any error to a status code and a user-facing payload
func MapError(err error) (int, ErrorResponse) {
	if e, ok := domain.AsError(err); ok {
		return statusOf(e), ErrorResponse{
			Message: e.Message,
			Error: ErrorBody{
				Kind:      e.Kind,
				Code:      e.Code,
				Field:     e.Field,
				Retryable: e.Retryable(),
			},
		}
	}

	status, message := http.StatusInternalServerError, "Something went wrong. Please try again."
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		status, message = http.StatusUnauthorized, "Please login to continue"
	case errors.Is(err, ErrForbidden):
		status, message = http.StatusForbidden, "Access denied"
	case errors.Is(err, domain.ErrRequestInFlight):
		status, message = http.StatusConflict, "A request is already in progress"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		status, message = http.StatusConflict, "Checkout is already in progress"
	case errors.Is(err, domain.ErrCompositionChanged):
		status, message = http.StatusConflict, "Your order changed. Please apply the coupon again."
	case errors.Is(err, domain.ErrSessionSuperseded):
		status, message = http.StatusConflict, "You were logged out. Please login again."
	case errors.Is(err, domain.ErrOrderNotFound):
		status, message = http.StatusNotFound, "Order not found"
	case errors.Is(err, domain.ErrOrderFinalized):
		status, message = http.StatusConflict, "Order has already been processed"
	case errors.Is(err, domain.ErrWidgetUnavailable):
		status, message = http.StatusServiceUnavailable, "Payment gateway is unavailable. Please try again."
	}
	return status, ErrorResponse{
		Message: message,
		Error: ErrorBody{
			Kind:      domain.KindBackend,
			Retryable: status >= http.StatusInternalServerError,
		},
	}
}

func statusOf(e *domain.Error) int {
	switch e.Kind {
	case domain.KindValidation:
		if errors.Is(e, domain.ErrResendTooSoon) {
			return http.StatusTooManyRequests
		}
		return http.StatusBadRequest
	case domain.KindBackend:
		if e.Status >= http.StatusBadRequest && e.Status < http.StatusInternalServerError {
			return e.Status
		}
		return http.StatusBadGateway
	case domain.KindNetwork:
		return http.StatusServiceUnavailable
	case domain.KindProvider:
		switch e.Code {
		case domain.ProviderCodeTooManyRequests:
			return http.StatusTooManyRequests
		case domain.ProviderCodeUnknown, domain.ProviderCodeScriptLoad:
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
