package services

import (
	"fmt"

	"kasir/internal/models"
	"kasir/internal/repositories"
)

// ProductService is the catalog collaborator: it answers the read side
// (id -> name, unit price, current stock) and carries the admin maintenance
// operations. Stock is never decremented here; only the transaction
// committer touches stock downward, inside its atomic unit of work.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	return s.repo.GetAll()
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct adds a new catalog item.
func (s *ProductService) CreateProduct(product *models.Product) error {
	if product.Stock < 0 {
		return fmt.Errorf("initial stock must not be negative")
	}
	return s.repo.Create(product)
}

// UpdateProduct updates name, description and price of an existing product.
// The repository never writes stock through Update, so the stored count is
// untouched; receiving goods goes through Restock.
func (s *ProductService) UpdateProduct(product *models.Product) error {
	return s.repo.Update(product)
}

// Restock increases a product's stock by the received quantity as a single
// atomic adjustment against the stored row. A commit racing the restock
// serializes against it instead of being overwritten by a stale read.
func (s *ProductService) Restock(id string, quantity int) (*models.Product, error) {
	if quantity <= 0 {
		return nil, models.ErrInvalidQuantity
	}
	return s.repo.AdjustStock(id, quantity)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(id string) error {
	return s.repo.Delete(id)
}
