package models_test

import (
	"testing"

	"kasir/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCart_AddLine(t *testing.T) {
	cart := models.NewCart("cart-1")

	err := cart.AddLine("prod-1", 2, decimal.RequireFromString("10.00"))
	assert.NoError(t, err)
	assert.Len(t, cart.Lines, 1)

	// Adding the same product merges quantities and keeps the original
	// price snapshot.
	err = cart.AddLine("prod-1", 3, decimal.RequireFromString("12.00"))
	assert.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.True(t, cart.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))

	err = cart.AddLine("prod-2", 1, decimal.RequireFromString("4.00"))
	assert.NoError(t, err)
	assert.Len(t, cart.Lines, 2)
}

func TestCart_AddLine_InvalidQuantity(t *testing.T) {
	cart := models.NewCart("cart-1")

	err := cart.AddLine("prod-1", 0, decimal.RequireFromString("10.00"))
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	err = cart.AddLine("prod-1", -2, decimal.RequireFromString("10.00"))
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	assert.Empty(t, cart.Lines)
}

func TestCart_RemoveLine(t *testing.T) {
	cart := models.NewCart("cart-1")
	assert.NoError(t, cart.AddLine("prod-1", 2, decimal.RequireFromString("10.00")))
	assert.NoError(t, cart.AddLine("prod-2", 1, decimal.RequireFromString("4.00")))

	cart.RemoveLine("prod-1")
	assert.Len(t, cart.Lines, 1)
	assert.Equal(t, "prod-2", cart.Lines[0].ProductID)

	// Removing an absent product is a no-op.
	cart.RemoveLine("prod-99")
	assert.Len(t, cart.Lines, 1)
}

func TestCart_SetDiscount(t *testing.T) {
	cart := models.NewCart("cart-1")
	assert.NoError(t, cart.AddLine("prod-1", 1, decimal.RequireFromString("10.00")))

	assert.NoError(t, cart.SetDiscount(decimal.RequireFromString("2.50")))
	assert.True(t, cart.Discount.Equal(decimal.RequireFromString("2.50")))

	// Discount above the subtotal is rejected.
	err := cart.SetDiscount(decimal.RequireFromString("15"))
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)

	// Negative discount is rejected.
	err = cart.SetDiscount(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)

	// The last valid discount is untouched by the failed attempts.
	assert.True(t, cart.Discount.Equal(decimal.RequireFromString("2.50")))
}

func TestCart_BuildCheckoutRequest_Totals(t *testing.T) {
	cart := models.NewCart("cart-1")
	assert.NoError(t, cart.AddLine("prod-1", 2, decimal.RequireFromString("10.00")))

	req, err := cart.BuildCheckoutRequest(decimal.RequireFromString("0.11"), models.PaymentCash)
	assert.NoError(t, err)
	assert.Equal(t, "20.00", req.Subtotal.StringFixed(2))
	assert.Equal(t, "2.20", req.Tax.StringFixed(2))
	assert.Equal(t, "22.20", req.Total.StringFixed(2))
}

func TestCart_BuildCheckoutRequest_WithDiscount(t *testing.T) {
	cart := models.NewCart("cart-1")
	assert.NoError(t, cart.AddLine("prod-1", 3, decimal.RequireFromString("7.50")))
	assert.NoError(t, cart.SetDiscount(decimal.RequireFromString("2.50")))

	// subtotal 22.50, taxable 20.00, tax 2.20, total 22.20
	req, err := cart.BuildCheckoutRequest(decimal.RequireFromString("0.11"), models.PaymentCard)
	assert.NoError(t, err)
	assert.Equal(t, "22.50", req.Subtotal.StringFixed(2))
	assert.Equal(t, "2.20", req.Tax.StringFixed(2))
	assert.Equal(t, "22.20", req.Total.StringFixed(2))
}

func TestCart_BuildCheckoutRequest_RoundsTaxOnce(t *testing.T) {
	cart := models.NewCart("cart-1")
	assert.NoError(t, cart.AddLine("prod-1", 1, decimal.RequireFromString("9.99")))

	// 9.99 * 0.11 = 1.0989 -> 1.10, total 11.09
	req, err := cart.BuildCheckoutRequest(decimal.RequireFromString("0.11"), models.PaymentCash)
	assert.NoError(t, err)
	assert.Equal(t, "1.10", req.Tax.StringFixed(2))
	assert.Equal(t, "11.09", req.Total.StringFixed(2))
}

func TestCart_BuildCheckoutRequest_EmptyCart(t *testing.T) {
	cart := models.NewCart("cart-1")

	req, err := cart.BuildCheckoutRequest(decimal.RequireFromString("0.11"), models.PaymentCash)
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Nil(t, req)
}

func TestCart_BuildCheckoutRequest_InvalidPaymentMethod(t *testing.T) {
	cart := models.NewCart("cart-1")
	assert.NoError(t, cart.AddLine("prod-1", 1, decimal.RequireFromString("10.00")))

	req, err := cart.BuildCheckoutRequest(decimal.RequireFromString("0.11"), "cheque")
	assert.ErrorIs(t, err, models.ErrInvalidPaymentMethod)
	assert.Nil(t, req)
}

func TestCart_BuildCheckoutRequest_SnapshotIsImmutable(t *testing.T) {
	cart := models.NewCart("cart-1")
	assert.NoError(t, cart.AddLine("prod-1", 2, decimal.RequireFromString("10.00")))

	req, err := cart.BuildCheckoutRequest(decimal.RequireFromString("0.11"), models.PaymentCash)
	assert.NoError(t, err)

	// The cart stays editable after the snapshot, and editing it does not
	// leak into the built request.
	assert.NoError(t, cart.AddLine("prod-1", 5, decimal.RequireFromString("10.00")))
	cart.RemoveLine("prod-2")

	assert.Len(t, req.Lines, 1)
	assert.Equal(t, 2, req.Lines[0].Quantity)
	assert.Equal(t, "20.00", req.Subtotal.StringFixed(2))
}
