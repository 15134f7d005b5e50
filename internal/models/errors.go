package models

import (
	"errors"
	"fmt"
	"strings"
)

// Client-input errors. These are returned before any storage is touched
// and can be corrected locally by the cashier.
var (
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrInvalidDiscount      = errors.New("discount must be non-negative and must not exceed the subtotal")
	ErrEmptyCart            = errors.New("cart has no lines")
	ErrInvalidPaymentMethod = errors.New("payment method must be one of cash, card or transfer")
)

// ErrCommitFailed marks a transient storage or concurrency failure during
// commit. The atomic unit of work has been rolled back in full, so a retry
// with the same idempotency key is always safe.
var ErrCommitFailed = errors.New("transaction commit failed")

// ErrReceiptNotAvailable is returned when a receipt is requested for a
// transaction that is not in the completed status.
var ErrReceiptNotAvailable = errors.New("receipt is only available for completed transactions")

// Shortfall records the gap between requested and available stock for one
// product during validation or commit.
type Shortfall struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError is a business-rule rejection listing every product
// that could not be fulfilled. When returned from commit, the unit of work
// has been fully rolled back and no stock was decremented.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (requested: %d, available: %d)", s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock for " + strings.Join(parts, ", ")
}
