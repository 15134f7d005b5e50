package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses. A transaction is created as completed by the
// committer; pending exists only for rows prepared ahead of commit, and the
// single allowed transition is pending -> completed or pending -> cancelled.
// Completed and cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Accepted payment methods (closed set).
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentCard || m == PaymentTransfer
}

// TransactionItem is one sold line of a transaction. Name and Price are
// denormalized snapshots so historical receipts are unaffected by later
// product renames or price changes. Items never outlive their transaction.
type TransactionItem struct {
	TransactionID string          `json:"transaction_id" gorm:"primaryKey;type:varchar(36)"`
	ProductID     string          `json:"product_id" gorm:"primaryKey;type:varchar(36)"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
	Quantity      int             `json:"quantity"`
}

// Transaction is a persisted sales record. It is immutable after creation
// except for the one allowed status transition away from pending.
type Transaction struct {
	ID              string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	StoreID         string            `json:"store_id" gorm:"index;type:varchar(36)"`
	UserID          string            `json:"user_id" gorm:"type:varchar(36)"`
	CustomerID      string            `json:"customer_id,omitempty" gorm:"type:varchar(36)"`
	IdempotencyKey  string            `json:"idempotency_key" gorm:"uniqueIndex;type:varchar(64)"`
	Subtotal        decimal.Decimal   `json:"subtotal" gorm:"type:numeric(12,2)"`
	Discount        decimal.Decimal   `json:"discount" gorm:"type:numeric(12,2)"`
	Tax             decimal.Decimal   `json:"tax" gorm:"type:numeric(12,2)"`
	TotalAmount     decimal.Decimal   `json:"total_amount" gorm:"type:numeric(12,2)"`
	PaymentMethod   string            `json:"payment_method" gorm:"type:varchar(16)"`
	Status          string            `json:"status" gorm:"type:varchar(16)"`
	TransactionDate time.Time         `json:"transaction_date"`
	Items           []TransactionItem `json:"items" gorm:"foreignKey:TransactionID"`
}
