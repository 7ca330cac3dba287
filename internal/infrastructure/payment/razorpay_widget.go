package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/you/kycstore/domain"
)

// RazorpayConfig configures the checkout widget
type RazorpayConfig struct {
	KeyID        string
	ScriptURL    string
	LoadTimeout  time.Duration
	MerchantName string
	ThemeColor   string
}

// RazorpayWidget implements domain.PaymentWidget. The checkout script is
// fetched on first use; a successful load is remembered, a failed one is not.
type RazorpayWidget struct {
	cfg  RazorpayConfig
	http *http.Client

	mu     sync.Mutex
	loaded bool
}

// NewRazorpayWidget creates the widget adapter
func NewRazorpayWidget(cfg RazorpayConfig) *RazorpayWidget {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	return &RazorpayWidget{
		cfg:  cfg,
		http: &http.Client{},
	}
}

// Load implements domain.PaymentWidget
func (w *RazorpayWidget) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loaded {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.LoadTimeout)
	defer cancel()

	if err := w.fetch(ctx); err != nil {
		return domain.NewProviderError(domain.ProviderCodeScriptLoad,
			"Failed to load payment gateway. Please try again.", err)
	}
	w.loaded = true
	return nil
}

func (w *RazorpayWidget) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.ScriptURL, nil)
	if err != nil {
		return err
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("script host returned %d", resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("empty checkout script")
	}
	return nil
}

// Loaded reports whether the script is available
func (w *RazorpayWidget) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Open implements domain.PaymentWidget
func (w *RazorpayWidget) Open(ctx context.Context, intent domain.PaymentIntent) (*domain.WidgetOptions, error) {
	if !w.Loaded() {
		return nil, domain.ErrWidgetUnavailable
	}
	if w.cfg.KeyID == "" {
		return nil, fmt.Errorf("%w: razorpay key not configured", domain.ErrWidgetUnavailable)
	}
	if intent.GatewayOrderID == "" || intent.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: incomplete payment intent", domain.ErrWidgetUnavailable)
	}

	return &domain.WidgetOptions{
		ScriptURL:   w.cfg.ScriptURL,
		Key:         w.cfg.KeyID,
		Amount:      intent.AmountMinor,
		Currency:    intent.Currency,
		Name:        w.cfg.MerchantName,
		Description: intent.Description,
		OrderID:     intent.GatewayOrderID,
		Prefill:     intent.Prefill,
		Notes:       map[string]string{"orderId": intent.OrderID},
		Theme:       domain.WidgetTheme{Color: w.cfg.ThemeColor},
	}, nil
}

var _ domain.PaymentWidget = (*RazorpayWidget)(nil)
