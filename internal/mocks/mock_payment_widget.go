package mocks

import (
	"context"

	"github.com/you/kycstore/domain"
)

// MockPaymentWidget implements domain.PaymentWidget interface for testing
type MockPaymentWidget struct {
	LoadFunc func(ctx context.Context) error
	OpenFunc func(ctx context.Context, intent domain.PaymentIntent) (*domain.WidgetOptions, error)
}

// NewMockPaymentWidget creates a new MockPaymentWidget with default behaviors
func NewMockPaymentWidget() *MockPaymentWidget {
	return &MockPaymentWidget{}
}

// Load loads the widget script
func (m *MockPaymentWidget) Load(ctx context.Context) error {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil
}

// Open builds the widget options for an intent
func (m *MockPaymentWidget) Open(ctx context.Context, intent domain.PaymentIntent) (*domain.WidgetOptions, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, intent)
	}
	return &domain.WidgetOptions{
		Key:         "rzp_test_key",
		Amount:      intent.AmountMinor,
		Currency:    intent.Currency,
		Description: intent.Description,
		OrderID:     intent.GatewayOrderID,
		Prefill:     intent.Prefill,
	}, nil
}

// Compile-time interface compliance verification
var _ domain.PaymentWidget = (*MockPaymentWidget)(nil)
