package money

import "github.com/shopspring/decimal"

// Round2 rounds a monetary amount to 2 decimal places, half-up.
// All amounts in this system are non-negative, so decimal's
// round-half-away-from-zero behaves as round-half-up here.
// It is applied exactly once, at the point where tax and total are
// computed; downstream consumers must not re-round.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal returns unitPrice * quantity without rounding. Unit prices
// are stored with at most 2 decimal places, so the product is exact.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Format renders an amount with a fixed 2-decimal representation for
// receipts and API payloads.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
