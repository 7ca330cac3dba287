package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/metrics"
	"go.uber.org/zap"
)

// CartView is a consistent snapshot of a cart
type CartView struct {
	Selection  domain.OrderSelection `json:"selection"`
	Coupon     *domain.AppliedCoupon `json:"appliedCoupon"`
	Totals     domain.Totals         `json:"totals"`
	Revision   uint64                `json:"revision"`
	Processing bool                  `json:"isProcessing"`
}

// CartDeps are the collaborators shared by every cart
type CartDeps struct {
	Catalog PriceCatalog
	Coupons domain.CouponAPI
	Audit   domain.AuditLogger
	Logger  *zap.Logger
}

// Cart is one client's draft order with at most one applied coupon. Every
// change to the composition drops the coupon, and totals are always
// recomputed from the current selection and coupon.
type Cart struct {
	clientID string
	deps     CartDeps

	mu         sync.Mutex
	selection  domain.OrderSelection
	coupon     *domain.AppliedCoupon
	revision   uint64
	validating bool
	processing bool
}

// NewCart creates an empty monthly cart
func NewCart(clientID string, deps CartDeps) *Cart {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Cart{
		clientID:  clientID,
		deps:      deps,
		selection: domain.OrderSelection{BillingPeriod: domain.BillingMonthly},
	}
}

// SetSelection replaces the order composition
func (c *Cart) SetSelection(sel domain.OrderSelection) (CartView, error) {
	sel = sel.Clone()
	if sel.BillingPeriod == "" {
		sel.BillingPeriod = domain.BillingMonthly
	}
	if !sel.BillingPeriod.Valid() {
		return c.View(), domain.NewValidationError("billingPeriod", "Unsupported billing period")
	}
	if sel.HasPlan() && len(sel.Services) > 0 {
		return c.View(), domain.NewValidationError("selectedServices", "Choose either individual services or a plan")
	}
	if sel.Plan != nil && !sel.HasPlan() {
		sel.Plan = nil
	}
	sel.Services = dedupe(sel.Services)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = sel
	c.compositionChangedLocked()
	return c.viewLocked(), nil
}

// SetBillingPeriod changes the billing period
func (c *Cart) SetBillingPeriod(period domain.BillingPeriod) (CartView, error) {
	if !period.Valid() {
		return c.View(), domain.NewValidationError("billingPeriod", "Unsupported billing period")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection.BillingPeriod != period {
		c.selection.BillingPeriod = period
		c.compositionChangedLocked()
	}
	return c.viewLocked(), nil
}

func (c *Cart) compositionChangedLocked() {
	c.revision++
	c.coupon = nil
}

// ApplyCoupon validates code against the current order and, on success,
// replaces any applied coupon. Any failure leaves the cart without a
// coupon. An answer that arrives after the composition changed is dropped.
func (c *Cart) ApplyCoupon(ctx context.Context, code, token, userID string) (CartView, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return c.View(), domain.NewValidationError("couponCode", "Please enter a coupon code")
	}

	c.mu.Lock()
	if c.validating {
		c.mu.Unlock()
		return c.View(), domain.ErrRequestInFlight
	}
	if isEmpty(c.selection) {
		c.mu.Unlock()
		return c.View(), &domain.Error{
			Kind:    domain.KindValidation,
			Field:   "couponCode",
			Message: "Please select a service or plan first",
			Err:     domain.ErrEmptySelection,
		}
	}
	rev := c.revision
	serviceType, category := ServiceScope(c.selection)
	req := domain.CouponRequest{
		Code:        code,
		OrderAmount: round2(Subtotal(c.selection, c.deps.Catalog)),
		UserID:      userID,
		ServiceType: serviceType,
		Category:    category,
	}
	c.validating = true
	c.mu.Unlock()

	result, err := c.deps.Coupons.Validate(ctx, token, req)
	if err == nil && result == nil {
		err = domain.NewBackendError(0, "Invalid coupon code")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.validating = false

	if rev != c.revision {
		c.record(ctx, code, domain.ErrCompositionChanged)
		return c.viewLocked(), domain.ErrCompositionChanged
	}
	if err != nil {
		c.coupon = nil
		c.record(ctx, code, err)
		return c.viewLocked(), err
	}

	applied := *result
	applied.Coupon.Code = code
	c.coupon = &applied
	c.record(ctx, code, nil)
	return c.viewLocked(), nil
}

// Clear empties the cart after a confirmed purchase, keeping the billing period
func (c *Cart) Clear() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = domain.OrderSelection{BillingPeriod: c.selection.BillingPeriod}
	c.compositionChangedLocked()
	return c.viewLocked()
}

// RemoveCoupon drops the applied coupon
func (c *Cart) RemoveCoupon() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coupon = nil
	return c.viewLocked()
}

// View returns the current cart
func (c *Cart) View() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Cart) viewLocked() CartView {
	var coupon *domain.AppliedCoupon
	if c.coupon != nil {
		cp := *c.coupon
		coupon = &cp
	}
	return CartView{
		Selection:  c.selection.Clone(),
		Coupon:     coupon,
		Totals:     ComputeTotals(c.selection, c.coupon, c.deps.Catalog),
		Revision:   c.revision,
		Processing: c.processing,
	}
}

// BeginCheckout marks the cart as processing. It fails when a checkout is
// already running.
func (c *Cart) BeginCheckout() (CartView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return c.viewLocked(), domain.ErrCheckoutInProgress
	}
	c.processing = true
	return c.viewLocked(), nil
}

// EndCheckout clears the processing flag
func (c *Cart) EndCheckout() {
	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()
}

func (c *Cart) record(ctx context.Context, code string, err error) {
	outcome := metrics.OutcomeSuccess
	eventType := domain.CouponAppliedEvent
	if err != nil {
		eventType = domain.CouponRejectedEvent
		outcome = metrics.OutcomeRejected
		if domain.KindOf(err) == domain.KindNetwork || errors.Is(err, domain.ErrCompositionChanged) {
			outcome = metrics.OutcomeError
		}
	}
	metrics.CouponValidations.WithLabelValues(outcome).Inc()

	if c.deps.Audit == nil {
		return
	}
	event := domain.NewAuditEvent(eventType, c.clientID).WithMetadata("code", code)
	if err != nil {
		event.WithError(err)
	}
	c.deps.Audit.LogEvent(ctx, event)
}

func isEmpty(sel domain.OrderSelection) bool {
	return len(sel.Services) == 0 && !sel.HasPlan() && sel.Tier == nil
}

func dedupe(services []string) []string {
	if len(services) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(services))
	out := make([]string, 0, len(services))
	for _, s := range services {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
