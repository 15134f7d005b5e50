package repositories

import (
	"fmt"
	"sync"

	"kasir/internal/models"
)

// MockTransactionRepository is an in-memory implementation of
// TransactionRepository backed by a MockProductRepository for stock. Its
// mutex serializes commits and the idempotency bookkeeping; the stock
// check-and-decrement itself is one atomic step under the product
// repository's catalog lock, which gives the same observable contract as
// the row-locked database implementation.
type MockTransactionRepository struct {
	transactions map[string]models.Transaction
	byKey        map[string]string // idempotency key -> transaction ID
	products     *MockProductRepository
	mu           sync.RWMutex
}

// NewMockTransactionRepository creates a new instance of MockTransactionRepository.
func NewMockTransactionRepository(products *MockProductRepository) *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]models.Transaction),
		byKey:        make(map[string]string),
		products:     products,
	}
}

// CreateAtomic commits the transaction and its stock decrements as one unit
// of work, per the TransactionRepository contract.
func (r *MockTransactionRepository) CreateAtomic(txn *models.Transaction) (*models.Transaction, error) {
	if txn.IdempotencyKey == "" {
		return nil, fmt.Errorf("transaction is missing an idempotency key")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[txn.IdempotencyKey]; ok {
		existing := r.transactions[id]
		return copyTransaction(existing), nil
	}

	// Check and decrement happen as one atomic step under the catalog lock,
	// so a racing catalog edit or delete can never leave a partial decrement
	// behind.
	names, err := r.products.DecrementStock(txn.Items)
	if err != nil {
		return nil, err
	}
	for i := range txn.Items {
		txn.Items[i].Name = names[txn.Items[i].ProductID]
	}

	r.transactions[txn.ID] = *copyTransaction(*txn)
	r.byKey[txn.IdempotencyKey] = txn.ID
	return txn, nil
}

// GetByID returns a transaction by its ID.
func (r *MockTransactionRepository) GetByID(id string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txn, ok := r.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction with ID %s not found", id)
	}
	return copyTransaction(txn), nil
}

// GetByIdempotencyKey returns a transaction by its idempotency key.
func (r *MockTransactionRepository) GetByIdempotencyKey(key string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("transaction with idempotency key %s not found", key)
	}
	txn := r.transactions[id]
	return copyTransaction(txn), nil
}

// GetAllByStore returns all transactions recorded for a store.
func (r *MockTransactionRepository) GetAllByStore(storeID string) ([]models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txns := make([]models.Transaction, 0, len(r.transactions))
	for _, txn := range r.transactions {
		if txn.StoreID == storeID {
			txns = append(txns, *copyTransaction(txn))
		}
	}
	return txns, nil
}

// UpdateStatus applies the one allowed status transition away from pending.
func (r *MockTransactionRepository) UpdateStatus(id string, status string) error {
	if status != models.StatusCompleted && status != models.StatusCancelled {
		return fmt.Errorf("invalid transaction status: %s", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.transactions[id]
	if !ok || txn.Status != models.StatusPending {
		return fmt.Errorf("transaction with ID %s not found in pending status", id)
	}
	txn.Status = status
	r.transactions[id] = txn
	return nil
}

// copyTransaction deep-copies a transaction so callers can never mutate the
// stored record through the returned pointer.
func copyTransaction(txn models.Transaction) *models.Transaction {
	items := make([]models.TransactionItem, len(txn.Items))
	copy(items, txn.Items)
	txn.Items = items
	return &txn
}
