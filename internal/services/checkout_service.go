package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/metrics"
	"go.uber.org/zap"
)

// Checkout steps as reported to metrics
const (
	StepCreateOrder   = "create_order"
	StepLoadWidget    = "load_widget"
	StepOpenWidget    = "open_widget"
	StepVerifyPayment = "verify_payment"
	StepDismiss       = "dismiss"
)

// Navigation targets of a checkout
const (
	PathLogin          = "/login"
	PathCheckout       = "/checkout"
	PathPaymentSuccess = "/payment-success"
	PathPaymentFailed  = "/payment-failed"
)

// CustomServiceName names orders built from individual verifications
const CustomServiceName = "Custom Verification Service"

// CheckoutDeps are the collaborators of the checkout orchestrator
type CheckoutDeps struct {
	Orders   domain.OrderAPI
	Widget   domain.PaymentWidget
	Journal  domain.CheckoutJournal
	Notifier domain.NotificationService
	Audit    domain.AuditLogger
	Logger   *zap.Logger
	Currency string
}

// CheckoutResult is the answer of Begin. Exactly one of Navigation and
// Widget is set.
type CheckoutResult struct {
	Navigation     *domain.Navigation    `json:"navigation,omitempty"`
	Widget         *domain.WidgetOptions `json:"widget,omitempty"`
	OrderID        string                `json:"orderId,omitempty"`
	GatewayOrderID string                `json:"gatewayOrderId,omitempty"`
	Totals         *domain.Totals        `json:"totals,omitempty"`
}

// CheckoutService turns a cart into a backend order, hands it to the payment
// widget and reconciles the widget's answer. Only a verified payment is
// ever reported as success.
type CheckoutService struct {
	deps CheckoutDeps
}

// NewCheckoutService creates the orchestrator
func NewCheckoutService(deps CheckoutDeps) *CheckoutService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Currency == "" {
		deps.Currency = "INR"
	}
	return &CheckoutService{deps: deps}
}

// LoginRedirect is where an anonymous client is sent, carrying sel so the
// checkout can resume after login
func LoginRedirect(sel domain.OrderSelection) *domain.Navigation {
	next := sel.Clone()
	return &domain.Navigation{
		Path: PathLogin,
		State: &domain.NavigationState{
			Message:    "Please login to continue to checkout",
			RedirectTo: PathCheckout,
			NextState:  &next,
		},
	}
}

// Begin creates the order for the client's cart and opens the payment
// widget. An anonymous client gets a login redirect instead.
func (s *CheckoutService) Begin(ctx context.Context, cc *ClientContext, method domain.PaymentMethod) (*CheckoutResult, error) {
	snap := cc.Session.Validate(ctx)
	if !snap.IsAuthenticated {
		return &CheckoutResult{Navigation: LoginRedirect(cc.Cart.View().Selection)}, nil
	}
	if method == "" {
		method = domain.PaymentCard
	}
	if !method.Valid() {
		return nil, domain.NewValidationError("paymentMethod", "Unsupported payment method")
	}

	view, err := cc.Cart.BeginCheckout()
	if err != nil {
		return nil, err
	}
	defer cc.Cart.EndCheckout()

	if isEmpty(view.Selection) {
		return nil, &domain.Error{
			Kind:    domain.KindValidation,
			Field:   "selectedServices",
			Message: "Please select a service or plan first",
			Err:     domain.ErrEmptySelection,
		}
	}

	req := BuildOrderRequest(view, method)
	created, err := s.deps.Orders.Create(ctx, snap.Token, req)
	if err != nil {
		s.logoutOnUnauthorized(ctx, cc, err)
		s.fail(ctx, cc, StepCreateOrder, "", err)
		return nil, err
	}

	if err := s.deps.Widget.Load(ctx); err != nil {
		s.fail(ctx, cc, StepLoadWidget, created.GatewayOrderID, err)
		return nil, err
	}

	amount := created.AmountMinor
	if amount <= 0 {
		amount = ToMinorUnits(view.Totals.Total)
	}
	currency := created.Currency
	if currency == "" {
		currency = s.deps.Currency
	}
	serviceName := created.Order.ServiceName
	if serviceName == "" {
		serviceName = req.ServiceName
	}

	record := &domain.CheckoutRecord{
		ClientID:       cc.ID,
		OrderID:        created.Order.OrderID,
		GatewayOrderID: created.GatewayOrderID,
		AmountMinor:    amount,
		Currency:       currency,
		ServiceName:    serviceName,
		Status:         domain.CheckoutPending,
	}
	if err := s.deps.Journal.Record(ctx, record); err != nil {
		err = fmt.Errorf("failed to record checkout: %w", err)
		s.fail(ctx, cc, StepOpenWidget, created.GatewayOrderID, err)
		return nil, err
	}

	opts, err := s.deps.Widget.Open(ctx, domain.PaymentIntent{
		OrderID:        created.Order.OrderID,
		GatewayOrderID: created.GatewayOrderID,
		AmountMinor:    amount,
		Currency:       currency,
		Description:    serviceName,
		Prefill:        prefillOf(snap.User),
	})
	if err != nil {
		_ = s.transition(ctx, created.GatewayOrderID, domain.CheckoutPending, domain.CheckoutFailed, "payment widget unavailable")
		s.fail(ctx, cc, StepOpenWidget, created.GatewayOrderID, err)
		return nil, err
	}

	metrics.CheckoutOutcomes.WithLabelValues(StepOpenWidget, metrics.OutcomeSuccess).Inc()
	s.audit(ctx, cc, domain.OrderCreatedEvent, record, nil)
	s.deps.Logger.Info("checkout handed to payment widget",
		zap.String("client_id", cc.ID),
		zap.String("order_id", record.OrderID),
		zap.String("gateway_order_id", record.GatewayOrderID),
		zap.Int64("amount", amount))

	totals := view.Totals
	return &CheckoutResult{
		Widget:         opts,
		OrderID:        record.OrderID,
		GatewayOrderID: record.GatewayOrderID,
		Totals:         &totals,
	}, nil
}

// Complete reconciles the widget's completion callback. Only a successful
// backend verification navigates to the success page. The record is claimed
// before verification, so a replayed or concurrent callback for the same
// order gets ErrOrderFinalized.
func (s *CheckoutService) Complete(ctx context.Context, cc *ClientContext, completion domain.PaymentCompletion) (*domain.Navigation, error) {
	record, err := s.pendingRecord(ctx, cc, completion.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, record.GatewayOrderID, domain.CheckoutPending, domain.CheckoutVerifying, ""); err != nil {
		return nil, err
	}
	if completion.OrderID == "" {
		completion.OrderID = record.OrderID
	}

	var verifyErr error
	switch {
	case completion.PaymentID == "" || completion.Signature == "":
		verifyErr = domain.NewValidationError("razorpay_signature", "Payment verification failed")
	default:
		verifyErr = s.deps.Orders.VerifyPayment(ctx, cc.Session.Token(), completion)
	}

	if verifyErr != nil {
		s.logoutOnUnauthorized(ctx, cc, verifyErr)
		reason := "Payment verification failed"
		if e, ok := domain.AsError(verifyErr); ok && e.Message != "" {
			reason = e.Message
		}
		_ = s.transition(ctx, record.GatewayOrderID, domain.CheckoutVerifying, domain.CheckoutFailed, reason)
		s.fail(ctx, cc, StepVerifyPayment, record.GatewayOrderID, verifyErr)
		s.audit(ctx, cc, domain.PaymentFailedEvent, record, verifyErr)
		return failedNavigation(reason), nil
	}

	if err := s.transition(ctx, record.GatewayOrderID, domain.CheckoutVerifying, domain.CheckoutConfirmed, ""); errors.Is(err, domain.ErrOrderFinalized) {
		return nil, err
	}
	metrics.CheckoutOutcomes.WithLabelValues(StepVerifyPayment, metrics.OutcomeSuccess).Inc()
	s.audit(ctx, cc, domain.PaymentVerifiedEvent, record, nil)
	s.deps.Logger.Info("payment verified",
		zap.String("client_id", cc.ID),
		zap.String("order_id", record.OrderID),
		zap.String("payment_id", completion.PaymentID))

	returnTo := cc.Cart.View().Selection.ReturnTo
	cc.Cart.Clear()
	s.sendReceipt(cc, record)

	nav := &domain.Navigation{
		Path: PathPaymentSuccess,
		Query: map[string]string{
			"orderId": record.OrderID,
			"amount":  decimal.New(record.AmountMinor, -2).StringFixed(2),
			"service": record.ServiceName,
		},
	}
	if returnTo != "" {
		nav.Query["returnTo"] = returnTo
	}
	return nav, nil
}

// Dismiss records that the widget was closed without a payment
func (s *CheckoutService) Dismiss(ctx context.Context, cc *ClientContext, gatewayOrderID string) (*domain.Navigation, error) {
	record, err := s.pendingRecord(ctx, cc, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	const reason = "Payment cancelled"
	if err := s.transition(ctx, record.GatewayOrderID, domain.CheckoutPending, domain.CheckoutFailed, reason); err != nil {
		return nil, err
	}
	metrics.CheckoutOutcomes.WithLabelValues(StepDismiss, metrics.OutcomeRejected).Inc()
	s.audit(ctx, cc, domain.PaymentFailedEvent, record, fmt.Errorf("widget dismissed"))
	return failedNavigation(reason), nil
}

// Orders lists the client's journaled checkouts, newest first
func (s *CheckoutService) Orders(ctx context.Context, cc *ClientContext, limit int) ([]domain.CheckoutRecord, error) {
	return s.deps.Journal.ListByClient(ctx, cc.ID, limit)
}

func (s *CheckoutService) pendingRecord(ctx context.Context, cc *ClientContext, gatewayOrderID string) (*domain.CheckoutRecord, error) {
	if strings.TrimSpace(gatewayOrderID) == "" {
		return nil, domain.NewValidationError("razorpay_order_id", "Missing payment order")
	}
	record, err := s.deps.Journal.FindByGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if record.ClientID != cc.ID {
		return nil, domain.ErrOrderNotFound
	}
	if record.Status != domain.CheckoutPending {
		return nil, domain.ErrOrderFinalized
	}
	return record, nil
}

func (s *CheckoutService) transition(ctx context.Context, gatewayOrderID string, from, to domain.CheckoutStatus, reason string) error {
	err := s.deps.Journal.Transition(ctx, gatewayOrderID, from, to, reason)
	if errors.Is(err, domain.ErrOrderFinalized) {
		s.deps.Logger.Warn("checkout already moved on",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.String("to", string(to)))
	} else if err != nil {
		s.deps.Logger.Error("failed to update checkout journal",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
	}
	return err
}

func (s *CheckoutService) sendReceipt(cc *ClientContext, record *domain.CheckoutRecord) {
	if s.deps.Notifier == nil {
		return
	}
	user := cc.Session.Snapshot().User
	if user == nil || user.Phone == "" {
		return
	}
	msg := fmt.Sprintf("Payment of %s %s received for %s (order %s). Thank you!",
		record.Currency, decimal.New(record.AmountMinor, -2).StringFixed(2), record.ServiceName, record.OrderID)
	if err := s.deps.Notifier.SendSMS(user.Phone, msg); err != nil {
		s.deps.Logger.Warn("failed to send payment receipt",
			zap.String("client_id", cc.ID),
			zap.String("order_id", record.OrderID),
			zap.Error(err))
	}
}

func (s *CheckoutService) logoutOnUnauthorized(ctx context.Context, cc *ClientContext, err error) {
	if e, ok := domain.AsError(err); ok && e.Kind == domain.KindBackend && e.Status == http.StatusUnauthorized {
		cc.Session.Logout(ctx, LogoutReasonInvalid)
	}
}

func (s *CheckoutService) fail(ctx context.Context, cc *ClientContext, step, gatewayOrderID string, err error) {
	outcome := metrics.OutcomeRejected
	if k := domain.KindOf(err); k == domain.KindNetwork || k == "" {
		outcome = metrics.OutcomeError
	}
	metrics.CheckoutOutcomes.WithLabelValues(step, outcome).Inc()
	s.deps.Logger.Warn("checkout step failed",
		zap.String("client_id", cc.ID),
		zap.String("step", step),
		zap.String("gateway_order_id", gatewayOrderID),
		zap.Error(err))
}

func (s *CheckoutService) audit(ctx context.Context, cc *ClientContext, eventType domain.AuditEventType, record *domain.CheckoutRecord, err error) {
	if s.deps.Audit == nil {
		return
	}
	event := domain.NewAuditEvent(eventType, cc.ID).
		WithUser(cc.Session.Snapshot().User).
		WithMetadata("order_id", record.OrderID).
		WithMetadata("gateway_order_id", record.GatewayOrderID).
		WithMetadata("amount", record.AmountMinor)
	if err != nil {
		event.WithError(err)
	}
	s.deps.Audit.LogEvent(ctx, event)
}

// BuildOrderRequest builds the order-creation payload for a cart
func BuildOrderRequest(view CartView, method domain.PaymentMethod) domain.CreateOrderRequest {
	sel := view.Selection
	req := domain.CreateOrderRequest{
		TotalAmount:   view.Totals.Subtotal,
		FinalAmount:   view.Totals.Total,
		BillingPeriod: sel.BillingPeriod,
		PaymentMethod: method,
	}

	switch {
	case sel.HasPlan():
		req.OrderType = domain.OrderTypePlan
		req.ServiceName = sel.Plan.Name
		req.ServiceDetails = domain.ServiceDetails{
			PlanName:      sel.Plan.Name,
			PlanType:      sel.BillingPeriod,
			Verifications: sel.Plan.IncludesVerifications,
			Features:      sel.Plan.Features,
		}
	case sel.Tier != nil:
		req.OrderType = domain.OrderTypeVerification
		req.ServiceName = sel.Tier.Title
		req.ServiceDetails = domain.ServiceDetails{
			TierTitle:        sel.Tier.Title,
			VerificationType: serviceFromTitle(sel.Tier.Title),
		}
	default:
		req.OrderType = domain.OrderTypeVerification
		req.ServiceName = CustomServiceName
		features := make([]string, 0, len(sel.Services))
		for _, svc := range sel.Services {
			features = append(features, svc+" verification")
		}
		req.ServiceDetails = domain.ServiceDetails{
			VerificationType: strings.Join(sel.Services, ", "),
			Features:         features,
		}
	}

	if c := view.Coupon; c != nil {
		req.CouponApplied = &domain.CouponReference{
			CouponID:      c.Coupon.ID,
			Code:          c.Coupon.Code,
			Discount:      view.Totals.CouponDiscount,
			DiscountType:  c.Coupon.DiscountType,
			DiscountValue: c.Coupon.DiscountValue,
		}
	}
	return req
}

func prefillOf(u *domain.User) domain.Prefill {
	if u == nil {
		return domain.Prefill{}
	}
	return domain.Prefill{Name: u.Name, Email: u.Email, Contact: u.Phone}
}

func failedNavigation(reason string) *domain.Navigation {
	return &domain.Navigation{
		Path:  PathPaymentFailed,
		State: &domain.NavigationState{Message: reason},
	}
}
