package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/you/kycstore/domain"
)

var (
	oneTimeFactor       = decimal.RequireFromString("0.8")
	yearlyFactor        = decimal.NewFromInt(12).Mul(decimal.RequireFromString("0.85"))
	billingDiscountRate = decimal.RequireFromString("0.15")
)

// PriceCatalog holds the monthly base price of every verification service
type PriceCatalog struct {
	DefaultPrice decimal.Decimal
	Prices       map[string]decimal.Decimal
}

// NewPriceCatalog builds a catalog from configured prices
func NewPriceCatalog(defaultPrice float64, prices map[string]float64) PriceCatalog {
	c := PriceCatalog{
		DefaultPrice: decimal.NewFromFloat(defaultPrice),
		Prices:       make(map[string]decimal.Decimal, len(prices)),
	}
	for service, price := range prices {
		c.Prices[strings.ToLower(service)] = decimal.NewFromFloat(price)
	}
	return c
}

// BasePrice returns the monthly price of one service
func (c PriceCatalog) BasePrice(service string) decimal.Decimal {
	if p, ok := c.Prices[strings.ToLower(service)]; ok {
		return p
	}
	return c.DefaultPrice
}

// PeriodPrice adjusts a monthly base price to the billing period
func PeriodPrice(base decimal.Decimal, period domain.BillingPeriod) decimal.Decimal {
	switch period {
	case domain.BillingOneTime:
		return base.Mul(oneTimeFactor)
	case domain.BillingYearly:
		return base.Mul(yearlyFactor)
	default:
		return base
	}
}

// Subtotal takes the price from exactly one source: the plan, else the
// tier, else the selected services. The result is not rounded.
func Subtotal(sel domain.OrderSelection, catalog PriceCatalog) decimal.Decimal {
	switch {
	case sel.HasPlan():
		return nonNegative(sel.Plan.Price)
	case sel.Tier != nil:
		return nonNegative(sel.Tier.Price)
	}
	sum := decimal.Zero
	for _, service := range sel.Services {
		sum = sum.Add(PeriodPrice(nonNegative(catalog.BasePrice(service)), sel.BillingPeriod))
	}
	return sum
}

// BillingDiscount applies to yearly multi-service orders without a plan
func BillingDiscount(sel domain.OrderSelection, subtotal decimal.Decimal) decimal.Decimal {
	if sel.BillingPeriod == domain.BillingYearly && len(sel.Services) > 1 && !sel.HasPlan() {
		return subtotal.Mul(billingDiscountRate)
	}
	return decimal.Zero
}

// ComputeTotals prices a selection with an optional applied coupon. The
// coupon discount is clamped so the total never drops below zero, and
// rounding happens once, on the way out.
func ComputeTotals(sel domain.OrderSelection, coupon *domain.AppliedCoupon, catalog PriceCatalog) domain.Totals {
	subtotal := Subtotal(sel, catalog)
	billing := BillingDiscount(sel, subtotal)

	couponDiscount := decimal.Zero
	if coupon != nil {
		couponDiscount = decimal.Min(nonNegative(coupon.Discount), subtotal.Sub(billing))
	}

	return domain.Totals{
		Subtotal:        round2(subtotal),
		BillingDiscount: round2(billing),
		CouponDiscount:  round2(couponDiscount),
		Discount:        round2(billing.Add(couponDiscount)),
		Total:           round2(subtotal.Sub(billing).Sub(couponDiscount)),
	}
}

// ToMinorUnits converts an amount to paise
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

var (
	businessServices = map[string]bool{"gstin": true, "mca": true, "company": true}
	// company must be matched before pan, which it contains
	titleKeywords = []struct {
		service  string
		keywords []string
	}{
		{"company", []string{"company", "mca", "cin", "din"}},
		{"pan", []string{"pan"}},
		{"aadhaar", []string{"aadhaar"}},
		{"drivinglicense", []string{"driving license", "drivinglicense"}},
		{"gstin", []string{"gstin"}},
	}
)

// ServiceScope derives the service type and category a coupon is checked
// against. Empty strings mean the coupon is not scoped.
func ServiceScope(sel domain.OrderSelection) (serviceType, category string) {
	switch {
	case len(sel.Services) > 0:
		serviceType = sel.Services[0]
		return serviceType, categoryOf(serviceType)
	case sel.Tier != nil:
		if serviceType = serviceFromTitle(sel.Tier.Title); serviceType != "" {
			return serviceType, categoryOf(serviceType)
		}
		return "", ""
	case sel.HasPlan():
		if len(sel.Plan.IncludesVerifications) > 0 {
			serviceType = sel.Plan.IncludesVerifications[0]
			return serviceType, categoryOf(serviceType)
		}
		return strings.Join(strings.Fields(strings.ToLower(sel.Plan.Name)), "-"), "plan"
	}
	return "", ""
}

func serviceFromTitle(title string) string {
	title = strings.ToLower(title)
	for _, k := range titleKeywords {
		for _, kw := range k.keywords {
			if strings.Contains(title, kw) {
				return k.service
			}
		}
	}
	return ""
}

func categoryOf(serviceType string) string {
	if businessServices[serviceType] {
		return "business"
	}
	return "personal"
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
