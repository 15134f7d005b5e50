package repositories

import (
	"errors"
	"fmt"
	"sort"

	"kasir/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMTransactionRepository is a GORM implementation of
// TransactionRepository. The atomic commit runs inside one database
// transaction with SELECT ... FOR UPDATE on the touched product rows, so
// concurrent commits against overlapping products serialize on the row
// locks and stock can never be driven below zero.
type GORMTransactionRepository struct {
	db *gorm.DB
}

// NewGORMTransactionRepository creates a new instance of GORMTransactionRepository.
func NewGORMTransactionRepository(db *gorm.DB) *GORMTransactionRepository {
	return &GORMTransactionRepository{
		db: db,
	}
}

// CreateAtomic commits the transaction and its stock decrements as one unit
// of work, per the TransactionRepository contract.
func (r *GORMTransactionRepository) CreateAtomic(txn *models.Transaction) (*models.Transaction, error) {
	if txn.IdempotencyKey == "" {
		return nil, fmt.Errorf("transaction is missing an idempotency key")
	}

	// A retry with the same key must observe the already-committed
	// transaction instead of decrementing stock a second time.
	if existing, err := r.GetByIdempotencyKey(txn.IdempotencyKey); err == nil {
		return existing, nil
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Lock product rows in a stable order so two commits touching the
		// same products cannot deadlock against each other.
		order := make([]int, len(txn.Items))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return txn.Items[order[a]].ProductID < txn.Items[order[b]].ProductID
		})

		var shortfalls []models.Shortfall
		for _, i := range order {
			item := &txn.Items[i]
			var product models.Product
			if err := lockForUpdate(tx).First(&product, "id = ?", item.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					shortfalls = append(shortfalls, models.Shortfall{ProductID: item.ProductID, Requested: item.Quantity, Available: 0})
					continue
				}
				return fmt.Errorf("failed to read stock for product %s: %w", item.ProductID, err)
			}
			if product.Stock < item.Quantity {
				shortfalls = append(shortfalls, models.Shortfall{ProductID: item.ProductID, Requested: item.Quantity, Available: product.Stock})
				continue
			}
			item.Name = product.Name
		}
		if len(shortfalls) > 0 {
			// Shortfalls were collected in lock order; report them in the
			// transaction's item order so the caller sees a stable list.
			sort.Slice(shortfalls, func(a, b int) bool {
				return itemIndex(txn.Items, shortfalls[a].ProductID) < itemIndex(txn.Items, shortfalls[b].ProductID)
			})
			return &models.InsufficientStockError{Shortfalls: shortfalls}
		}

		for _, i := range order {
			item := txn.Items[i]
			res := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("failed to decrement stock for product %s: %w", item.ProductID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("product %s disappeared during commit", item.ProductID)
			}
		}

		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
		return nil
	})

	if err != nil {
		var stockErr *models.InsufficientStockError
		if errors.As(err, &stockErr) {
			return nil, stockErr
		}
		// Two concurrent retries with the same key can both miss the fast
		// path; the loser of the unique-index race observes the winner.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, ferr := r.GetByIdempotencyKey(txn.IdempotencyKey); ferr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return txn, nil
}

// GetByID retrieves a transaction with its items by its ID.
func (r *GORMTransactionRepository) GetByID(id string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.Preload("Items").First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get transaction by ID %s: %w", id, err)
	}
	return &txn, nil
}

// GetByIdempotencyKey retrieves a transaction by its idempotency key.
func (r *GORMTransactionRepository) GetByIdempotencyKey(key string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.Preload("Items").First(&txn, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction with idempotency key %s not found", key)
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key %s: %w", key, err)
	}
	return &txn, nil
}

// GetAllByStore retrieves all transactions recorded for a store.
func (r *GORMTransactionRepository) GetAllByStore(storeID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.Preload("Items").Where("store_id = ?", storeID).Order("transaction_date").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to get transactions for store %s: %w", storeID, err)
	}
	return txns, nil
}

// UpdateStatus applies the one allowed status transition away from pending.
// Completed and cancelled transactions are terminal.
func (r *GORMTransactionRepository) UpdateStatus(id string, status string) error {
	if status != models.StatusCompleted && status != models.StatusCancelled {
		return fmt.Errorf("invalid transaction status: %s", status)
	}
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for transaction %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction with ID %s not found in pending status", id)
	}
	return nil
}

// lockForUpdate takes an exclusive row lock on the selected rows. SQLite
// has no FOR UPDATE; its single-writer transaction already serializes the
// read-check-decrement sequence.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func itemIndex(items []models.TransactionItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return len(items)
}
