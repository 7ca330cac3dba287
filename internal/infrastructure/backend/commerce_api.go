package backend

import (
	"context"
	"net/http"

	"github.com/you/kycstore/domain"
)

// CouponAPI implements domain.CouponAPI
type CouponAPI struct{ *Client }

// NewCouponAPI wraps c as the coupon endpoints
func NewCouponAPI(c *Client) *CouponAPI { return &CouponAPI{c} }

func (a *CouponAPI) Validate(ctx context.Context, token string, req domain.CouponRequest) (*domain.AppliedCoupon, error) {
	var out domain.AppliedCoupon
	if err := a.do(ctx, http.MethodPost, "/coupons/validate", token, req, &out, "Invalid coupon code"); err != nil {
		return nil, err
	}
	return &out, nil
}

var _ domain.CouponAPI = (*CouponAPI)(nil)

// OrderAPI implements domain.OrderAPI
type OrderAPI struct{ *Client }

// NewOrderAPI wraps c as the order endpoints
func NewOrderAPI(c *Client) *OrderAPI { return &OrderAPI{c} }

func (a *OrderAPI) Create(ctx context.Context, token string, req domain.CreateOrderRequest) (*domain.CreatedOrder, error) {
	var out domain.CreatedOrder
	if err := a.do(ctx, http.MethodPost, "/orders", token, req, &out, "Order creation failed"); err != nil {
		return nil, err
	}
	if out.GatewayOrderID == "" {
		return nil, domain.NewBackendError(http.StatusBadGateway, "Order creation failed")
	}
	return &out, nil
}

func (a *OrderAPI) VerifyPayment(ctx context.Context, token string, completion domain.PaymentCompletion) error {
	return a.do(ctx, http.MethodPost, "/orders/verify-payment", token, completion, nil, "Payment verification failed")
}

var _ domain.OrderAPI = (*OrderAPI)(nil)
