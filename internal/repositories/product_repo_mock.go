package repositories

import (
	"fmt"
	"sync"

	"kasir/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// One mutex guards the whole catalog, so every stock mutation — restock
// adjustments and the committer's bulk decrement alike — is a single atomic
// step that can never interleave with a catalog edit or delete.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
	}
}

// GetAll returns the full catalog.
func (r *MockProductRepository) GetAll() ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	return productList, nil
}

// GetByID returns a catalog item by its ID.
func (r *MockProductRepository) GetByID(id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s not found", id)
	}
	return &product, nil
}

// Create adds a new catalog item.
func (r *MockProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	r.products[product.ID] = *product
	return nil
}

// Update writes name, description and price. The stored stock count is kept
// as is, matching the durable implementation's column list.
func (r *MockProductRepository) Update(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s not found for update", product.ID)
	}
	updated := *product
	updated.Stock = existing.Stock
	r.products[product.ID] = updated
	return nil
}

// AdjustStock adds delta to the stored stock under the catalog lock, so the
// read and the write are one step and no concurrent commit can slip between
// them.
func (r *MockProductRepository) AdjustStock(id string, delta int) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s not found", id)
	}
	if product.Stock+delta < 0 {
		return nil, fmt.Errorf("stock adjustment of %d for product %s would go below zero", delta, id)
	}
	product.Stock += delta
	r.products[id] = product
	return &product, nil
}

// DecrementStock applies every item's decrement as one atomic step under the
// catalog lock: either all lines pass the stock check and are decremented, or
// nothing changes and *models.InsufficientStockError lists every shortfall.
// On success the product names are returned for denormalization. This is the
// in-memory committer's stand-in for row-locked SELECT ... FOR UPDATE.
func (r *MockProductRepository) DecrementStock(items []models.TransactionItem) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var shortfalls []models.Shortfall
	for _, item := range items {
		product, ok := r.products[item.ProductID]
		if !ok {
			shortfalls = append(shortfalls, models.Shortfall{ProductID: item.ProductID, Requested: item.Quantity, Available: 0})
			continue
		}
		if product.Stock < item.Quantity {
			shortfalls = append(shortfalls, models.Shortfall{ProductID: item.ProductID, Requested: item.Quantity, Available: product.Stock})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &models.InsufficientStockError{Shortfalls: shortfalls}
	}

	names := make(map[string]string, len(items))
	for _, item := range items {
		product := r.products[item.ProductID]
		product.Stock -= item.Quantity
		r.products[item.ProductID] = product
		names[item.ProductID] = product.Name
	}
	return names, nil
}

// Delete removes a catalog item by its ID.
func (r *MockProductRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product with ID %s not found for deletion", id)
	}
	delete(r.products, id)
	return nil
}
