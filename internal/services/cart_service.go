package services

import (
	"fmt"
	"sync"

	"kasir/internal/models"

	"github.com/google/uuid"
)

// CartService owns the in-progress carts, keyed by cart ID. Each cart
// belongs to a single cashier session; the service only synchronizes the
// registry itself, not the contents of an individual cart.
type CartService struct {
	carts map[string]*models.Cart
	mu    sync.RWMutex
}

// NewCartService creates a new CartService.
func NewCartService() *CartService {
	return &CartService{
		carts: make(map[string]*models.Cart),
	}
}

// CreateCart opens a new empty cart and returns it.
func (s *CartService) CreateCart() *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := models.NewCart(uuid.New().String())
	s.carts[cart.ID] = cart
	return cart
}

// GetCart returns the cart with the given ID.
func (s *CartService) GetCart(id string) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[id]
	if !ok {
		return nil, fmt.Errorf("cart with ID %s not found", id)
	}
	return cart, nil
}

// ClearCart discards a cart. Called after a successful commit, or when the
// cashier abandons the sale; abandoning before commit has no side effects.
func (s *CartService) ClearCart(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, id)
}
