package pricing

import "github.com/alovak/checkout-playground/checkout/models"

// DiscountAmount returns the amount a discount offer takes off the original
// price. A flat amount wins over a percentage rate; with neither set the
// discount is zero. Percentage discounts round down.
func DiscountAmount(original int64, offer *models.DiscountOffer) int64 {
	if offer == nil {
		return 0
	}
	if offer.DiscountAmount > 0 {
		return offer.DiscountAmount
	}
	if offer.DiscountRate > 0 {
		return original * offer.DiscountRate / 100
	}
	return 0
}

// ClampPoints caps the points a customer may spend by both the ledger
// balance and the post-discount amount. Never negative.
func ClampPoints(requested, balance, afterDiscount int64) int64 {
	if requested < 0 {
		return 0
	}
	max := balance
	if afterDiscount < max {
		max = afterDiscount
	}
	if max < 0 {
		max = 0
	}
	if requested > max {
		return max
	}
	return requested
}

// ComputeFinal returns the final payable amount:
//
//	max(0, original - discountAmount - usedPoints)
//
// usedPoints must already be clamped via ClampPoints; this function does not
// re-clamp. Pure and deterministic, safe to call on every selection change.
func ComputeFinal(original int64, offer *models.DiscountOffer, usedPoints int64) int64 {
	afterDiscount := original - DiscountAmount(original, offer)
	final := afterDiscount - usedPoints
	if final < 0 {
		return 0
	}
	return final
}
