package repositories

import (
	"kasir/internal/models"
)

// ProductRepository defines the interface for catalog data access.
//
// Stock moves through exactly two doors: AdjustStock (receiving goods) and
// the transaction committer's atomic decrement. Update never writes the
// stock column, so a catalog edit can not resurrect stock that a racing
// commit already sold.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	// Update writes name, description and price only.
	Update(product *models.Product) error
	// AdjustStock adds delta to the stored stock as one atomic conditional
	// write, returning the updated product. Adjustments that would drive
	// stock below zero are rejected and change nothing.
	AdjustStock(id string, delta int) (*models.Product, error)
	Delete(id string) error
}
