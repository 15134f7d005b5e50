package models

import (
	"github.com/shopspring/decimal"

	"kasir/pkg/money"
)

// CartLine is one in-progress sale line. UnitPrice is a snapshot captured
// when the product was added to the cart; it is not re-fetched at commit
// time.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cart holds a single cashier session's in-progress sale. It is an
// explicitly owned value: handlers obtain it from the CartService and no
// global cart state exists. A cart is not safe for concurrent use by
// multiple goroutines; each checkout session owns exactly one.
type Cart struct {
	ID       string          `json:"id"`
	Lines    []CartLine      `json:"lines"`
	Discount decimal.Decimal `json:"discount"`
}

// NewCart returns an empty cart with the given id.
func NewCart(id string) *Cart {
	return &Cart{ID: id, Discount: decimal.Zero}
}

// AddLine merges the quantity into an existing line for the same product,
// keeping the original unit-price snapshot, or appends a new line.
func (c *Cart) AddLine(productID string, quantity int, unitPrice decimal.Decimal) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity += quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, CartLine{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice})
	return nil
}

// RemoveLine removes the line for the product if present; no-op otherwise.
func (c *Cart) RemoveLine(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// Subtotal is the sum of unit-price snapshot times quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range c.Lines {
		subtotal = subtotal.Add(money.LineTotal(line.UnitPrice, line.Quantity))
	}
	return subtotal
}

// SetDiscount sets an absolute discount amount. The discount may not be
// negative and may not exceed the current subtotal.
func (c *Cart) SetDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.GreaterThan(c.Subtotal()) {
		return ErrInvalidDiscount
	}
	c.Discount = amount
	return nil
}

// CheckoutRequest is an immutable snapshot of a cart at the moment checkout
// is initiated. The cart itself stays editable until a commit succeeds.
type CheckoutRequest struct {
	Lines         []CartLine      `json:"lines"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

// BuildCheckoutRequest snapshots the current lines, discount and tax rate
// into a CheckoutRequest and computes its totals. Tax and total are rounded
// half-up to 2 places here, exactly once; nothing downstream re-rounds.
func (c *Cart) BuildCheckoutRequest(taxRate decimal.Decimal, paymentMethod string) (*CheckoutRequest, error) {
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if !ValidPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)

	subtotal := c.Subtotal()
	taxable := subtotal.Sub(c.Discount)
	tax := money.Round2(taxable.Mul(taxRate))
	total := money.Round2(taxable.Add(tax))

	return &CheckoutRequest{
		Lines:         lines,
		Discount:      c.Discount,
		TaxRate:       taxRate,
		PaymentMethod: paymentMethod,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
	}, nil
}
