package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"kasir/internal/models"
	"kasir/internal/repositories"
	"kasir/pkg/rabbitmq"

	"github.com/google/uuid"
)

// EventPublisher publishes transaction events for the delivery
// collaborators. Satisfied by *rabbitmq.Client.
type EventPublisher interface {
	Publish(queue string, body []byte) error
}

// StoreInfo is the identity of the store this process serves, used on
// transactions and receipts.
type StoreInfo struct {
	ID      string
	Name    string
	Address string
}

// CommitOptions carries the per-checkout identity context. IdempotencyKey
// must be supplied by the caller; retrying an ambiguous failure with the
// same key can never decrement stock twice.
type CommitOptions struct {
	UserID         string
	CashierName    string
	CustomerID     string
	IdempotencyKey string
}

// CheckoutService validates and commits checkout requests. Validation is an
// advisory read; correctness is enforced by the repository's atomic commit.
type CheckoutService struct {
	txnRepo     repositories.TransactionRepository
	productRepo repositories.ProductRepository
	publisher   EventPublisher // nil when no broker is configured
	receipts    *ReceiptService
	store       StoreInfo
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	txnRepo repositories.TransactionRepository,
	productRepo repositories.ProductRepository,
	publisher EventPublisher,
	receipts *ReceiptService,
	store StoreInfo,
) *CheckoutService {
	return &CheckoutService{
		txnRepo:     txnRepo,
		productRepo: productRepo,
		publisher:   publisher,
		receipts:    receipts,
		store:       store,
	}
}

// Store returns the identity of the store this service commits for.
func (s *CheckoutService) Store() StoreInfo {
	return s.store
}

// ValidateStock checks every line of the request against current catalog
// stock. It performs no writes and is advisory only: stock can change
// between this read and the commit, so the commit re-checks under lock.
// Returns nil when all lines are sufficient, or *models.InsufficientStockError
// listing every shortfall.
func (s *CheckoutService) ValidateStock(req *models.CheckoutRequest) error {
	var shortfalls []models.Shortfall
	for _, line := range req.Lines {
		product, err := s.productRepo.GetByID(line.ProductID)
		if err != nil {
			shortfalls = append(shortfalls, models.Shortfall{ProductID: line.ProductID, Requested: line.Quantity, Available: 0})
			continue
		}
		if product.Stock < line.Quantity {
			shortfalls = append(shortfalls, models.Shortfall{ProductID: line.ProductID, Requested: line.Quantity, Available: product.Stock})
		}
	}
	if len(shortfalls) > 0 {
		return &models.InsufficientStockError{Shortfalls: shortfalls}
	}
	return nil
}

// Commit turns a checkout request into a persisted transaction with all
// stock decremented, or changes nothing at all. A *models.InsufficientStockError
// or models.ErrCommitFailed is returned only after the unit of work has been
// fully rolled back. On success a transaction.completed event is published
// for the delivery collaborators, fire-and-forget.
func (s *CheckoutService) Commit(req *models.CheckoutRequest, opts CommitOptions) (*models.Transaction, error) {
	if opts.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	if opts.UserID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	items := make([]models.TransactionItem, len(req.Lines))
	txnID := uuid.New().String()
	for i, line := range req.Lines {
		items[i] = models.TransactionItem{
			TransactionID: txnID,
			ProductID:     line.ProductID,
			Price:         line.UnitPrice,
			Quantity:      line.Quantity,
		}
	}

	txn := &models.Transaction{
		ID:              txnID,
		StoreID:         s.store.ID,
		UserID:          opts.UserID,
		CustomerID:      opts.CustomerID,
		IdempotencyKey:  opts.IdempotencyKey,
		Subtotal:        req.Subtotal,
		Discount:        req.Discount,
		Tax:             req.Tax,
		TotalAmount:     req.Total,
		PaymentMethod:   req.PaymentMethod,
		Status:          models.StatusCompleted,
		TransactionDate: time.Now(),
		Items:           items,
	}

	committed, err := s.txnRepo.CreateAtomic(txn)
	if err != nil {
		if stockErr, ok := err.(*models.InsufficientStockError); ok {
			return nil, stockErr
		}
		return nil, fmt.Errorf("%w: %v", models.ErrCommitFailed, err)
	}

	// A retry that observed an earlier commit returns that record; its
	// event was already published once.
	if committed.ID == txnID {
		s.publishCompleted(committed, opts.CashierName)
	}

	return committed, nil
}

// GetTransactionByID retrieves a committed transaction.
func (s *CheckoutService) GetTransactionByID(id string) (*models.Transaction, error) {
	return s.txnRepo.GetByID(id)
}

// ListStoreTransactions retrieves all transactions for this store.
func (s *CheckoutService) ListStoreTransactions() ([]models.Transaction, error) {
	return s.txnRepo.GetAllByStore(s.store.ID)
}

// publishCompleted hands the completed transaction and its rendered receipt
// off to the delivery queue. Failures are logged and swallowed; delivery is
// best-effort and never affects the committed transaction.
func (s *CheckoutService) publishCompleted(txn *models.Transaction, cashierName string) {
	if s.publisher == nil {
		log.Println("Event publisher is not initialized. Skipping message publication.")
		return
	}

	receipt, err := s.receipts.Render(txn, s.store.Name, s.store.Address, cashierName)
	if err != nil {
		log.Printf("Warning: Failed to render receipt for transaction %s: %v", txn.ID, err)
		return
	}

	event := map[string]interface{}{
		"event":          "transaction.completed",
		"transaction_id": txn.ID,
		"store_id":       txn.StoreID,
		"user_id":        txn.UserID,
		"total":          txn.TotalAmount,
		"payment_method": txn.PaymentMethod,
		"receipt":        receipt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Warning: Failed to marshal transaction event: %v", err)
		return
	}

	if err := s.publisher.Publish(rabbitmq.ReceiptQueue, body); err != nil {
		log.Printf("Warning: Failed to publish transaction completed event for %s: %v", txn.ID, err)
	} else {
		log.Printf("Successfully published transaction completed event for %s", txn.ID)
	}
}
