package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role values issued by the backend
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents the authenticated customer as returned by the backend
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role"`
	Company       string    `json:"company,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	PhoneVerified bool      `json:"phoneVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// AuthResult is the backend answer of every session-establishing call
type AuthResult struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// PersistedSession is the durable part of a session
type PersistedSession struct {
	Token     string    `json:"token"`
	User      *User     `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionSnapshot is a read-only view of a client's session state
type SessionSnapshot struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	Token           string    `json:"-"`
	User            *User     `json:"user,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt,omitempty"`
}

// VerificationKind distinguishes the two identity paths
type VerificationKind string

const (
	VerificationEmail VerificationKind = "email"
	VerificationPhone VerificationKind = "phone"
)

// VerificationPurpose records why a challenge was issued, so the right
// backend call is made once it is answered
type VerificationPurpose string

const (
	PurposeRegister      VerificationPurpose = "register"
	PurposeLogin         VerificationPurpose = "login"
	PurposePasswordReset VerificationPurpose = "password_reset"
)

// PendingVerification is an in-flight identity challenge. Only one exists
// per client at a time.
type PendingVerification struct {
	Kind                   VerificationKind    `json:"kind"`
	Purpose                VerificationPurpose `json:"purpose"`
	Address                string              `json:"address,omitempty"`
	E164Number             string              `json:"e164Number,omitempty"`
	DialCode               string              `json:"dialCode,omitempty"`
	ProviderVerificationID string              `json:"providerVerificationId,omitempty"`
	Registration           *Registration       `json:"registration,omitempty"`
	IssuedAt               time.Time           `json:"issuedAt"`
}

// Registration carries the profile fields collected before a challenge,
// replayed once the identity is proven
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Company  string `json:"company,omitempty"`
	Location string `json:"location,omitempty"`
}

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// BillingPeriod of a verification order
type BillingPeriod string

const (
	BillingOneTime BillingPeriod = "one-time"
	BillingMonthly BillingPeriod = "monthly"
	BillingYearly  BillingPeriod = "yearly"
)

// Valid reports whether p is a known billing period
func (p BillingPeriod) Valid() bool {
	switch p {
	case BillingOneTime, BillingMonthly, BillingYearly:
		return true
	}
	return false
}

// PaymentMethod selected on the checkout page
type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetbanking PaymentMethod = "netbanking"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentUPI, PaymentNetbanking:
		return true
	}
	return false
}

// Plan is a subscription plan chosen on the pricing page
type Plan struct {
	Name                  string          `json:"name"`
	Price                 decimal.Decimal `json:"price"`
	IncludesVerifications []string        `json:"includesVerifications,omitempty"`
	Features              []string        `json:"features,omitempty"`
}

// Tier is a product tier chosen on a product page
type Tier struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// OrderSelection is the navigation-time state a checkout is built from.
// Services and Plan are mutually exclusive.
type OrderSelection struct {
	Services      []string      `json:"selectedServices,omitempty"`
	Plan          *Plan         `json:"plan,omitempty"`
	Tier          *Tier         `json:"tier,omitempty"`
	BillingPeriod BillingPeriod `json:"billingPeriod"`
	ReturnTo      string        `json:"returnTo,omitempty"`
}

// HasPlan reports whether the selection is in plan mode
func (s OrderSelection) HasPlan() bool {
	return s.Plan != nil && s.Plan.Name != ""
}

// Clone returns a deep copy so callers never share slices
func (s OrderSelection) Clone() OrderSelection {
	out := s
	if s.Services != nil {
		out.Services = append([]string(nil), s.Services...)
	}
	if s.Plan != nil {
		p := *s.Plan
		p.IncludesVerifications = append([]string(nil), s.Plan.IncludesVerifications...)
		p.Features = append([]string(nil), s.Plan.Features...)
		out.Plan = &p
	}
	if s.Tier != nil {
		t := *s.Tier
		out.Tier = &t
	}
	return out
}

// DiscountType of a coupon
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon identity as returned by the backend
type Coupon struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name,omitempty"`
	Description     string          `json:"description,omitempty"`
	DiscountType    DiscountType    `json:"discountType"`
	DiscountValue   decimal.Decimal `json:"discountValue"`
	MinimumAmount   decimal.Decimal `json:"minimumAmount"`
	MaximumDiscount decimal.Decimal `json:"maximumDiscount"`
}

// CouponRequest is what the coupon validation endpoint expects
type CouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
	UserID      string          `json:"userId,omitempty"`
	ServiceType string          `json:"serviceType,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// AppliedCoupon is a successful coupon validation result
type AppliedCoupon struct {
	Coupon         Coupon          `json:"coupon"`
	Discount       decimal.Decimal `json:"discount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
}

// Totals is the result of a pricing computation
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	BillingDiscount decimal.Decimal `json:"billingDiscount"`
	CouponDiscount  decimal.Decimal `json:"couponDiscount"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
}

// CouponReference is attached to a created order
type CouponReference struct {
	CouponID      string          `json:"couponId"`
	Code          string          `json:"code"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
}

// OrderType distinguishes plan purchases from custom verification bundles
type OrderType string

const (
	OrderTypePlan         OrderType = "plan"
	OrderTypeVerification OrderType = "verification"
)

// ServiceDetails describes what is being bought
type ServiceDetails struct {
	PlanName         string        `json:"planName,omitempty"`
	PlanType         BillingPeriod `json:"planType,omitempty"`
	TierTitle        string        `json:"tierTitle,omitempty"`
	VerificationType string        `json:"verificationType,omitempty"`
	Verifications    []string      `json:"includesVerifications,omitempty"`
	Features         []string      `json:"features,omitempty"`
}

// CreateOrderRequest is the POST /orders payload
type CreateOrderRequest struct {
	OrderType      OrderType        `json:"orderType"`
	ServiceName    string           `json:"serviceName"`
	ServiceDetails ServiceDetails   `json:"serviceDetails"`
	TotalAmount    decimal.Decimal  `json:"totalAmount"`
	FinalAmount    decimal.Decimal  `json:"finalAmount"`
	BillingPeriod  BillingPeriod    `json:"billingPeriod"`
	PaymentMethod  PaymentMethod    `json:"paymentMethod"`
	CouponApplied  *CouponReference `json:"couponApplied,omitempty"`
}

// BackendOrder is the persisted order summary returned on creation
type BackendOrder struct {
	ID          string `json:"_id,omitempty"`
	OrderID     string `json:"orderId"`
	ServiceName string `json:"serviceName"`
}

// CreatedOrder is the POST /orders answer
type CreatedOrder struct {
	Order          BackendOrder `json:"order"`
	GatewayOrderID string       `json:"razorpayOrderId"`
	AmountMinor    int64        `json:"amount"`
	Currency       string       `json:"currency"`
}

// PaymentCompletion is what the payment widget hands back on success
type PaymentCompletion struct {
	PaymentID      string `json:"razorpay_payment_id"`
	GatewayOrderID string `json:"razorpay_order_id"`
	Signature      string `json:"razorpay_signature"`
	OrderID        string `json:"orderId"`
}

// CheckoutStatus of a journaled order
type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutVerifying CheckoutStatus = "verifying"
	CheckoutConfirmed CheckoutStatus = "confirmed"
	CheckoutFailed    CheckoutStatus = "failed"
)

// CheckoutRecord is the local record of an order handed to the payment widget
type CheckoutRecord struct {
	ClientID       string         `json:"-"`
	OrderID        string         `json:"orderId"`
	GatewayOrderID string         `json:"gatewayOrderId"`
	AmountMinor    int64          `json:"amount"`
	Currency       string         `json:"currency"`
	ServiceName    string         `json:"serviceName"`
	Status         CheckoutStatus `json:"status"`
	Reason         string         `json:"reason,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Navigation tells the UI where to go next and what to carry along
type Navigation struct {
	Path  string            `json:"path"`
	Query map[string]string `json:"query,omitempty"`
	State *NavigationState  `json:"state,omitempty"`
}

// NavigationState is the router state carried by a navigation
type NavigationState struct {
	Message    string          `json:"message,omitempty"`
	RedirectTo string          `json:"redirectTo,omitempty"`
	NextState  *OrderSelection `json:"nextState,omitempty"`
}
