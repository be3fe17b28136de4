// Package pricing holds the money math shared by discount preview and checkout.
// All amounts are exact decimals rounded half-up to cents.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Round rounds to two decimal places, halves away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DiscountAmount is the monetary discount for code applied to subtotal.
// FIXED_AMOUNT never exceeds the subtotal; FREE_SHIPPING is zero here and
// waives shipping in Compute instead.
func DiscountAmount(code domain.DiscountCode, subtotal decimal.Decimal) decimal.Decimal {
	switch code.Type {
	case domain.DiscountPercentage:
		return clamp(Round(subtotal.Mul(code.Value).Div(hundred)), subtotal)
	case domain.DiscountFixedAmount:
		return clamp(Round(code.Value), subtotal)
	default:
		return decimal.Zero
	}
}

// Totals are the frozen monetary fields of an order.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Compute derives shipping, tax and total from the subtotal and an already
// validated discount. Shipping is waived by a free-shipping discount or when
// the subtotal reaches the store threshold.
func Compute(subtotal, discount decimal.Decimal, freeShipping bool, settings domain.StoreSettings) Totals {
	subtotal = Round(subtotal)
	discount = clamp(Round(discount), subtotal)

	shipping := Round(settings.FlatShippingRate)
	if freeShipping || subtotal.GreaterThanOrEqual(settings.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	taxable := subtotal.Sub(discount)
	tax := Round(taxable.Mul(settings.TaxRatePercent).Div(hundred))

	total := Round(taxable.Add(shipping).Add(tax))
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    total,
	}
}

func clamp(amount, max decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(max) {
		return max
	}
	return amount
}
