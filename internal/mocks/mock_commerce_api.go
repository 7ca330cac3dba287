package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/you/kycstore/domain"
)

// MockCouponAPI implements domain.CouponAPI interface for testing
type MockCouponAPI struct {
	ValidateFunc func(ctx context.Context, token string, req domain.CouponRequest) (*domain.AppliedCoupon, error)
}

// NewMockCouponAPI creates a new MockCouponAPI with default behaviors
func NewMockCouponAPI() *MockCouponAPI {
	return &MockCouponAPI{}
}

// Validate validates a coupon
func (m *MockCouponAPI) Validate(ctx context.Context, token string, req domain.CouponRequest) (*domain.AppliedCoupon, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, token, req)
	}
	// Default behavior: a flat 50 off
	discount := decimal.NewFromInt(50)
	return &domain.AppliedCoupon{
		Coupon: domain.Coupon{
			ID:            "coupon-1",
			Code:          req.Code,
			DiscountType:  domain.DiscountFixed,
			DiscountValue: discount,
		},
		Discount:       discount,
		FinalAmount:    req.OrderAmount.Sub(discount),
		OriginalAmount: req.OrderAmount,
	}, nil
}

// MockOrderAPI implements domain.OrderAPI interface for testing
type MockOrderAPI struct {
	CreateFunc        func(ctx context.Context, token string, req domain.CreateOrderRequest) (*domain.CreatedOrder, error)
	VerifyPaymentFunc func(ctx context.Context, token string, completion domain.PaymentCompletion) error
}

// NewMockOrderAPI creates a new MockOrderAPI with default behaviors
func NewMockOrderAPI() *MockOrderAPI {
	return &MockOrderAPI{}
}

// Create creates an order
func (m *MockOrderAPI) Create(ctx context.Context, token string, req domain.CreateOrderRequest) (*domain.CreatedOrder, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token, req)
	}
	return &domain.CreatedOrder{
		Order:          domain.BackendOrder{ID: "db-1", OrderID: "ORD-1", ServiceName: req.ServiceName},
		GatewayOrderID: "order_gw_1",
		AmountMinor:    req.FinalAmount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:       "INR",
	}, nil
}

// VerifyPayment verifies a payment
func (m *MockOrderAPI) VerifyPayment(ctx context.Context, token string, completion domain.PaymentCompletion) error {
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, token, completion)
	}
	return nil
}

// Compile-time interface compliance verification
var (
	_ domain.CouponAPI = (*MockCouponAPI)(nil)
	_ domain.OrderAPI  = (*MockOrderAPI)(nil)
)
