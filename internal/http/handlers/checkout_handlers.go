package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/http/middleware"
	"github.com/you/kycstore/internal/services"
)

const defaultOrdersLimit = 20

// CheckoutHandlers drives the payment of a client's cart
type CheckoutHandlers struct {
	checkout *services.CheckoutService
}

// NewCheckoutHandlers creates new checkout handlers
func NewCheckoutHandlers(checkout *services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// BeginCheckoutRequest starts a checkout
type BeginCheckoutRequest struct {
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

// DismissRequest reports a closed payment widget
type DismissRequest struct {
	GatewayOrderID string `json:"razorpay_order_id"`
}

// Begin creates the order and returns the payment widget options, or a
// login redirect for anonymous clients
func (h *CheckoutHandlers) Begin(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req BeginCheckoutRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	result, err := h.checkout.Begin(c.Request.Context(), cc, req.PaymentMethod)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, result)
}

// Complete reconciles the payment widget's success callback
func (h *CheckoutHandlers) Complete(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req domain.PaymentCompletion
	if !bind(c, &req) {
		return
	}
	nav, err := h.checkout.Complete(c.Request.Context(), cc, req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, gin.H{"navigation": nav})
}

// Dismiss records a payment widget closed without paying
func (h *CheckoutHandlers) Dismiss(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req DismissRequest
	if !bind(c, &req) {
		return
	}
	nav, err := h.checkout.Dismiss(c.Request.Context(), cc, req.GatewayOrderID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, gin.H{"navigation": nav})
}

// Orders lists the client's checkouts
func (h *CheckoutHandlers) Orders(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultOrdersLimit)))
	if err != nil || limit <= 0 || limit > 100 {
		middleware.AbortWithError(c, domain.NewValidationError("limit", "Limit must be between 1 and 100"))
		return
	}
	orders, err := h.checkout.Orders(c.Request.Context(), cc, limit)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, gin.H{"orders": orders})
}
