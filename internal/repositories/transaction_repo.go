package repositories

import (
	"kasir/internal/models"
)

// TransactionRepository defines the interface for sales-transaction data
// access. CreateAtomic is the committer's unit of work: it re-reads stock
// for every item, decrements it and inserts the transaction plus its items
// all-or-nothing.
//
// Contract for CreateAtomic:
//   - The whole call is one atomic unit of work. Either the transaction row,
//     all its item rows and all stock decrements become visible together, or
//     nothing does.
//   - Stock is re-read inside the unit of work under exclusive row access;
//     no product's stock ever goes below zero, no matter how many commits
//     race on it.
//   - If any item's quantity exceeds the freshly read stock, the unit of
//     work is rolled back and *models.InsufficientStockError is returned
//     listing every shortfall.
//   - txn.IdempotencyKey dedupes retries: when a transaction with the same
//     key already exists, the existing record is returned unchanged and no
//     stock is decremented.
//   - Item Name fields are filled from the product rows read inside the unit
//     of work; item Price fields are the caller's snapshots and are stored
//     as given.
type TransactionRepository interface {
	CreateAtomic(txn *models.Transaction) (*models.Transaction, error)
	GetByID(id string) (*models.Transaction, error)
	GetByIdempotencyKey(key string) (*models.Transaction, error)
	GetAllByStore(storeID string) ([]models.Transaction, error)
	UpdateStatus(id string, status string) error
}
