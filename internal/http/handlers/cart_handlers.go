package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/http/middleware"
)

// CartHandlers exposes a client's draft order
type CartHandlers struct{}

// NewCartHandlers creates new cart handlers
func NewCartHandlers() *CartHandlers {
	return &CartHandlers{}
}

// BillingPeriodRequest changes the billing period
type BillingPeriodRequest struct {
	BillingPeriod domain.BillingPeriod `json:"billingPeriod" binding:"required"`
}

// CouponRequest applies a coupon code
type CouponRequest struct {
	Code string `json:"code"`
}

// Get returns the cart with its totals
func (h *CartHandlers) Get(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	ok(c, cc.Cart.View())
}

// SetSelection replaces the order composition
func (h *CartHandlers) SetSelection(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req domain.OrderSelection
	if !bind(c, &req) {
		return
	}
	view, err := cc.Cart.SetSelection(req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, view)
}

// SetBillingPeriod changes the billing period of the order
func (h *CartHandlers) SetBillingPeriod(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req BillingPeriodRequest
	if !bind(c, &req) {
		return
	}
	view, err := cc.Cart.SetBillingPeriod(req.BillingPeriod)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, view)
}

// ApplyCoupon validates a coupon against the current order
func (h *CartHandlers) ApplyCoupon(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req CouponRequest
	if !bind(c, &req) {
		return
	}
	snap := cc.Session.Snapshot()
	userID := ""
	if snap.User != nil {
		userID = snap.User.ID
	}
	view, err := cc.Cart.ApplyCoupon(c.Request.Context(), req.Code, snap.Token, userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	okMessage(c, "Coupon applied successfully", view)
}

// RemoveCoupon drops the applied coupon
func (h *CartHandlers) RemoveCoupon(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	ok(c, cc.Cart.RemoveCoupon())
}
