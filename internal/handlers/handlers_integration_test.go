package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"kasir/internal/handlers"
	"kasir/internal/middleware"
	"kasir/internal/models"
	"kasir/internal/repositories"
	"kasir/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testStore = services.StoreInfo{ID: "store-1", Name: "Toko Kasir", Address: "Jl. Merdeka No. 1"}

// setupApp wires a Fiber app on the in-memory repositories with all
// handlers and services, mirroring the wiring in main.
func setupApp() (*fiber.App, *repositories.MockProductRepository) {
	jwtSecret := "test_jwt_secret"

	productRepo := repositories.NewMockProductRepository()
	txnRepo := repositories.NewMockTransactionRepository(productRepo)
	userRepo := repositories.NewMockUserRepository()

	seedProductsForTest(productRepo)

	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService()
	receiptService := services.NewReceiptService()
	checkoutService := services.NewCheckoutService(txnRepo, productRepo, nil, receiptService, testStore)
	authService := services.NewAuthService(userRepo, jwtSecret)

	productHandler := handlers.NewProductHandler(productService)
	checkoutHandler := handlers.NewCheckoutHandler(cartService, productService, checkoutService, receiptService, decimal.RequireFromString("0.11"))
	authHandler := handlers.NewAuthHandler(authService, testStore.ID)

	app := fiber.New()

	apiV1 := app.Group("/api/v1")

	// Authentication routes (public)
	authHandler.RegisterRoutes(apiV1)

	// Protected routes (require JWT authentication)
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	productHandler.RegisterRoutes(protectedRoutes)
	checkoutHandler.RegisterRoutes(protectedRoutes)

	return app, productRepo
}

// seedProductsForTest populates the product repository for tests.
func seedProductsForTest(repo repositories.ProductRepository) {
	products := []models.Product{
		{ID: "prod-1", Name: "Kopi Susu", Description: "Iced coffee with milk", Price: decimal.RequireFromString("10.00"), Stock: 5},
		{ID: "prod-2", Name: "Roti Bakar", Description: "Grilled toast", Price: decimal.RequireFromString("7.50"), Stock: 2},
	}
	for i := range products {
		if err := repo.Create(&products[i]); err != nil {
			log.Printf("Failed to seed product %s: %v", products[i].Name, err)
		}
	}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

// registerAndLogin creates a cashier and returns a bearer token.
func registerAndLogin(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", body, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{
		"username": username,
		"password": "password123",
	})
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", body, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	resp.Body.Close()
	assert.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func doJSON(t *testing.T, app *fiber.App, method, url string, body []byte, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1) // -1 for no timeout
	assert.NoError(t, err)
	return resp
}

func createCart(t *testing.T, app *fiber.App, token string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/carts", nil, token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var cart models.Cart
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	resp.Body.Close()
	assert.NotEmpty(t, cart.ID)
	return cart.ID
}

func addLine(t *testing.T, app *fiber.App, token, cartID, productID string, qty int) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"product_id": productID,
		"quantity":   qty,
	})
	return doJSON(t, app, http.MethodPost, "/api/v1/carts/"+cartID+"/lines", body, token)
}

// checkoutResponse mirrors the JSON shape of a successful checkout.
type checkoutResponse struct {
	Transaction    models.Transaction `json:"transaction"`
	IdempotencyKey string             `json:"idempotency_key"`
	Receipt        string             `json:"receipt"`
}

func TestCheckoutFlow(t *testing.T) {
	app, productRepo := setupApp()
	token := registerAndLogin(t, app, "budi")

	cartID := createCart(t, app, token)

	resp := addLine(t, app, token, cartID, "prod-1", 2)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	body, _ := json.Marshal(map[string]string{"payment_method": "cash"})
	resp = doJSON(t, app, http.MethodPost, "/api/v1/carts/"+cartID+"/checkout", body, token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var result checkoutResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()

	assert.Equal(t, models.StatusCompleted, result.Transaction.Status)
	assert.True(t, result.Transaction.TotalAmount.Equal(decimal.RequireFromString("22.20")),
		"expected total 22.20, got %s", result.Transaction.TotalAmount)
	assert.NotEmpty(t, result.IdempotencyKey)
	assert.Contains(t, result.Receipt, "TOTAL")
	assert.Contains(t, result.Receipt, "Toko Kasir")

	// Stock was decremented by the commit.
	product, err := productRepo.GetByID("prod-1")
	assert.NoError(t, err)
	assert.Equal(t, 3, product.Stock)

	// The cart is gone after a successful commit.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/carts/"+cartID, nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// The receipt can be re-rendered from the committed transaction.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/transactions/"+result.Transaction.ID+"/receipt", nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	receipt, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NoError(t, err)
	assert.Equal(t, result.Receipt, string(receipt), "reprint is byte-identical")
}

func TestCheckoutInsufficientStock(t *testing.T) {
	app, productRepo := setupApp()
	token := registerAndLogin(t, app, "budi")

	cartID := createCart(t, app, token)
	resp := addLine(t, app, token, cartID, "prod-2", 3) // only 2 in stock
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	body, _ := json.Marshal(map[string]string{"payment_method": "card"})
	resp = doJSON(t, app, http.MethodPost, "/api/v1/carts/"+cartID+"/checkout", body, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var result struct {
		Shortfalls []models.Shortfall `json:"shortfalls"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, []models.Shortfall{{ProductID: "prod-2", Requested: 3, Available: 2}}, result.Shortfalls)

	// Nothing was decremented and the cart stays editable.
	product, err := productRepo.GetByID("prod-2")
	assert.NoError(t, err)
	assert.Equal(t, 2, product.Stock)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/carts/"+cartID, nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckoutIdempotentRetry(t *testing.T) {
	app, productRepo := setupApp()
	token := registerAndLogin(t, app, "budi")

	checkout := func(cartID string) checkoutResponse {
		body, _ := json.Marshal(map[string]string{
			"payment_method":  "cash",
			"idempotency_key": "retry-key-1",
		})
		resp := doJSON(t, app, http.MethodPost, "/api/v1/carts/"+cartID+"/checkout", body, token)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var result checkoutResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		resp.Body.Close()
		return result
	}

	cartID := createCart(t, app, token)
	resp := addLine(t, app, token, cartID, "prod-1", 2)
	resp.Body.Close()
	first := checkout(cartID)

	// Simulate a client that never saw the first response and retries the
	// whole checkout with the same idempotency key.
	retryCartID := createCart(t, app, token)
	resp = addLine(t, app, token, retryCartID, "prod-1", 2)
	resp.Body.Close()
	second := checkout(retryCartID)

	assert.Equal(t, first.Transaction.ID, second.Transaction.ID, "retry observes the original transaction")

	product, err := productRepo.GetByID("prod-1")
	assert.NoError(t, err)
	assert.Equal(t, 3, product.Stock, "stock is decremented exactly once")
}

func TestCheckoutEmptyCart(t *testing.T) {
	app, _ := setupApp()
	token := registerAndLogin(t, app, "budi")

	cartID := createCart(t, app, token)
	body, _ := json.Marshal(map[string]string{"payment_method": "cash"})
	resp := doJSON(t, app, http.MethodPost, "/api/v1/carts/"+cartID+"/checkout", body, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSetDiscountAboveSubtotal(t *testing.T) {
	app, _ := setupApp()
	token := registerAndLogin(t, app, "budi")

	cartID := createCart(t, app, token)
	resp := addLine(t, app, token, cartID, "prod-1", 1) // subtotal 10.00
	resp.Body.Close()

	body, _ := json.Marshal(map[string]interface{}{"amount": "15"})
	resp = doJSON(t, app, http.MethodPut, "/api/v1/carts/"+cartID+"/discount", body, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckoutInvalidPaymentMethod(t *testing.T) {
	app, _ := setupApp()
	token := registerAndLogin(t, app, "budi")

	cartID := createCart(t, app, token)
	resp := addLine(t, app, token, cartID, "prod-1", 1)
	resp.Body.Close()

	body, _ := json.Marshal(map[string]string{"payment_method": "cheque"})
	resp = doJSON(t, app, http.MethodPost, "/api/v1/carts/"+cartID+"/checkout", body, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	app, _ := setupApp()

	for _, url := range []string{
		"/api/v1/products",
		"/api/v1/carts",
		"/api/v1/transactions",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		resp, err := app.Test(req, -1)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expected 401 for %s without token", url)
		resp.Body.Close()
	}
}

func TestGetReceiptForUnknownTransaction(t *testing.T) {
	app, _ := setupApp()
	token := registerAndLogin(t, app, "budi")

	resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%s/receipt", "trx-missing"), nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
