package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"kasir/internal/models"
	"kasir/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutHandler handles HTTP requests for the checkout flow: cart
// lifecycle, commit, and receipts.
type CheckoutHandler struct {
	cartService     *services.CartService
	productService  *services.ProductService
	checkoutService *services.CheckoutService
	receiptService  *services.ReceiptService
	taxRate         decimal.Decimal
	validate        *validator.Validate
}

// NewCheckoutHandler creates a new CheckoutHandler. taxRate is the single
// configurable flat rate applied to every checkout (e.g. 0.11).
func NewCheckoutHandler(
	cartService *services.CartService,
	productService *services.ProductService,
	checkoutService *services.CheckoutService,
	receiptService *services.ReceiptService,
	taxRate decimal.Decimal,
) *CheckoutHandler {
	return &CheckoutHandler{
		cartService:     cartService,
		productService:  productService,
		checkoutService: checkoutService,
		receiptService:  receiptService,
		taxRate:         taxRate,
		validate:        validator.New(),
	}
}

// RegisterRoutes registers the cart and transaction routes with the Fiber app.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/carts")
	cartRoutes.Post("/", h.HandleCreateCart)
	cartRoutes.Get("/:id", h.HandleGetCart)
	cartRoutes.Post("/:id/lines", h.HandleAddLine)
	cartRoutes.Delete("/:id/lines/:productId", h.HandleRemoveLine)
	cartRoutes.Put("/:id/discount", h.HandleSetDiscount)
	cartRoutes.Post("/:id/checkout", h.HandleCheckout)

	txnRoutes := router.Group("/transactions")
	txnRoutes.Get("/", h.HandleGetTransactions)
	txnRoutes.Get("/:id", h.HandleGetTransactionByID)
	txnRoutes.Get("/:id/receipt", h.HandleGetReceipt)
}

// HandleCreateCart opens a new empty cart for the cashier session.
func (h *CheckoutHandler) HandleCreateCart(c *fiber.Ctx) error {
	cart := h.cartService.CreateCart()
	return c.Status(fiber.StatusCreated).JSON(cart)
}

// HandleGetCart returns a cart together with its running subtotal.
func (h *CheckoutHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.cartService.GetCart(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"cart":     cart,
		"subtotal": cart.Subtotal(),
	})
}

// AddLineRequest represents the request body for adding a cart line.
type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// HandleAddLine adds a product to the cart, snapshotting the current unit
// price from the catalog.
func (h *CheckoutHandler) HandleAddLine(c *fiber.Ctx) error {
	cart, err := h.cartService.GetCart(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	var req AddLineRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing add-line request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	product, err := h.productService.GetProductByID(req.ProductID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": fmt.Sprintf("Product with ID %s not found", req.ProductID),
		})
	}

	if err := cart.AddLine(product.ID, req.Quantity, product.Price); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"cart":     cart,
		"subtotal": cart.Subtotal(),
	})
}

// HandleRemoveLine removes a product's line from the cart. Removing a line
// that is not present is a no-op.
func (h *CheckoutHandler) HandleRemoveLine(c *fiber.Ctx) error {
	cart, err := h.cartService.GetCart(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	cart.RemoveLine(c.Params("productId"))
	return c.JSON(fiber.Map{
		"cart":     cart,
		"subtotal": cart.Subtotal(),
	})
}

// SetDiscountRequest represents the request body for setting a discount.
type SetDiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// HandleSetDiscount sets an absolute discount on the cart.
func (h *CheckoutHandler) HandleSetDiscount(c *fiber.Ctx) error {
	cart, err := h.cartService.GetCart(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	var req SetDiscountRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing discount request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := cart.SetDiscount(req.Amount); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"cart":     cart,
		"subtotal": cart.Subtotal(),
	})
}

// CheckoutRequestBody represents the request body for committing a cart.
// IdempotencyKey is optional on the first attempt; the server generates one
// and echoes it back so the client can retry an ambiguous failure safely.
type CheckoutRequestBody struct {
	PaymentMethod  string `json:"payment_method" validate:"required,oneof=cash card transfer"`
	CustomerID     string `json:"customer_id" validate:"omitempty,max=36"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=64"`
}

// HandleCheckout snapshots the cart into an immutable checkout request,
// runs the advisory stock validation and commits. The cart is cleared only
// after a successful commit; any failure leaves it editable.
func (h *CheckoutHandler) HandleCheckout(c *fiber.Ctx) error {
	cart, err := h.cartService.GetCart(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	var body CheckoutRequestBody
	if err := c.BodyParser(&body); err != nil {
		log.Printf("Error parsing checkout request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(body); err != nil {
		return validationErrorResponse(c, err)
	}
	if body.IdempotencyKey == "" {
		body.IdempotencyKey = uuid.New().String()
	}

	req, err := cart.BuildCheckoutRequest(h.taxRate, body.PaymentMethod)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	// Advisory check to catch the common case early; the commit re-checks
	// under lock and remains the source of correctness.
	if err := h.checkoutService.ValidateStock(req); err != nil {
		return shortfallResponse(c, err, body.IdempotencyKey)
	}

	userID, _ := c.Locals("user_id").(string)
	cashierName, _ := c.Locals("username").(string)

	txn, err := h.checkoutService.Commit(req, services.CommitOptions{
		UserID:         userID,
		CashierName:    cashierName,
		CustomerID:     body.CustomerID,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		var stockErr *models.InsufficientStockError
		if errors.As(err, &stockErr) {
			return shortfallResponse(c, err, body.IdempotencyKey)
		}
		if errors.Is(err, models.ErrCommitFailed) {
			log.Printf("Commit failed for cart %s: %v", cart.ID, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"message":         "Could not complete the transaction, please try again",
				"idempotency_key": body.IdempotencyKey,
			})
		}
		log.Printf("Error committing cart %s: %v", cart.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not complete the transaction",
			"error":   err.Error(),
		})
	}

	h.cartService.ClearCart(cart.ID)

	store := h.checkoutService.Store()
	receipt, err := h.receiptService.Render(txn, store.Name, store.Address, cashierName)
	if err != nil {
		log.Printf("Error rendering receipt for transaction %s: %v", txn.ID, err)
		receipt = ""
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction":     txn,
		"idempotency_key": body.IdempotencyKey,
		"receipt":         receipt,
	})
}

// HandleGetTransactions lists all transactions for this store.
func (h *CheckoutHandler) HandleGetTransactions(c *fiber.Ctx) error {
	txns, err := h.checkoutService.ListStoreTransactions()
	if err != nil {
		log.Printf("Error listing transactions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve transactions",
			"error":   err.Error(),
		})
	}
	return c.JSON(txns)
}

// HandleGetTransactionByID retrieves a single transaction by its ID.
func (h *CheckoutHandler) HandleGetTransactionByID(c *fiber.Ctx) error {
	txnID := c.Params("id")
	txn, err := h.checkoutService.GetTransactionByID(txnID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Transaction with ID %s not found", txnID),
			})
		}
		log.Printf("Error getting transaction by ID %s: %v", txnID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve transaction",
			"error":   err.Error(),
		})
	}
	return c.JSON(txn)
}

// HandleGetReceipt re-renders the receipt for a completed transaction.
// Receipts are derived, so a reprint is always safe.
func (h *CheckoutHandler) HandleGetReceipt(c *fiber.Ctx) error {
	txnID := c.Params("id")
	txn, err := h.checkoutService.GetTransactionByID(txnID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Transaction with ID %s not found", txnID),
			})
		}
		log.Printf("Error getting transaction by ID %s: %v", txnID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve transaction",
			"error":   err.Error(),
		})
	}

	cashierName, _ := c.Locals("username").(string)
	store := h.checkoutService.Store()
	receipt, err := h.receiptService.Render(txn, store.Name, store.Address, cashierName)
	if err != nil {
		if errors.Is(err, models.ErrReceiptNotAvailable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not render receipt",
			"error":   err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(receipt)
}

// shortfallResponse maps an insufficient-stock error to a 409 listing the
// specific products and available quantities so the cart can be adjusted.
func shortfallResponse(c *fiber.Ctx, err error, idempotencyKey string) error {
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message":         "Insufficient stock",
			"shortfalls":      stockErr.Shortfalls,
			"idempotency_key": idempotencyKey,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Stock validation failed",
		"error":   err.Error(),
	})
}

// validationErrorResponse maps validator errors to a 400 with per-field
// messages, matching the auth handler's shape.
func validationErrorResponse(c *fiber.Ctx, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
