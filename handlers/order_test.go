package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"shop-svc/cart"
	"shop-svc/checkout"
	"shop-svc/inventory"
	"shop-svc/ledger"
	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/repository/repotest"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type orderFixture struct {
	db      *repotest.DB
	router  *gin.Engine
	buyer   int
	seller  int
	product int
}

func setupOrderTest(t *testing.T, stock int) *orderFixture {
	db := repotest.NewDB()
	f := &orderFixture{db: db}
	f.seller = db.AddUser(models.User{Name: "Seller", Email: "seller@example.com", Role: models.RoleSeller})
	f.buyer = db.AddUser(models.User{Name: "Buyer", Email: "buyer@example.com", Balance: decimal.RequireFromString("100.00")})
	f.product = db.AddProduct(models.Product{Name: "Keyboard", Price: decimal.RequireFromString("30.00"), Stock: stock, SellerID: f.seller})

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	carts := cart.NewService(db.Sessions(), logger)
	svc := checkout.NewService(db.Sessions(), ledger.New(false), inventory.NewGuard(), 5*time.Second, logger)
	handler := NewOrderHandler(carts, svc, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	orders := router.Group("/orders", middleware.AuthMiddleware(testSecret))
	orders.GET("/:id", handler.GetOrder)
	orders.GET("/:id/payment", handler.GetOrderPayment)
	orders.GET("/user/:userId", handler.GetUserOrders)
	orders.GET("/user/:userId/cart", handler.GetCart)
	orders.POST("/user/:userId/cart/items", handler.AddCartItem)
	orders.POST("/user/:userId/process-payment", handler.ProcessPayment)
	orders.DELETE("/user/:userId/products/:productId", handler.RemoveCartItem)
	orders.POST("/Product/:productId/Order/:orderId/quantity/:quantity/cart", handler.AddItemToOrder)
	f.router = router
	return f
}

func TestOrderHandler_ProcessPayment_Success(t *testing.T) {
	f := setupOrderTest(t, 5)
	cartID := f.db.AddOrder(f.buyer, models.OrderStatusCart)
	f.db.AddItem(cartID, f.product, 2, decimal.RequireFromString("30.00"))

	w := doRequest(f.router, "POST", fmt.Sprintf("/orders/user/%d/process-payment", f.buyer), bearer(t, f.buyer, models.RoleCustomer), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var payment models.Payment
	if err := json.Unmarshal(w.Body.Bytes(), &payment); err != nil {
		t.Fatalf("Failed to decode payment: %v", err)
	}
	if payment.OrderID != cartID || payment.Status != models.PaymentStatusCompleted {
		t.Errorf("Unexpected payment: %+v", payment)
	}
	if !payment.TotalAmount.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("Expected total 60.00, got %s", payment.TotalAmount)
	}
	if !f.db.User(f.buyer).Balance.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("Expected buyer balance 40.00, got %s", f.db.User(f.buyer).Balance)
	}
}

func TestOrderHandler_ProcessPayment_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		stock    int
		quantity int
		balance  string
		want     int
	}{
		{"insufficient stock", 1, 2, "100.00", http.StatusConflict},
		{"insufficient funds", 5, 2, "10.00", http.StatusPaymentRequired},
		{"empty cart", 5, 0, "100.00", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := repotest.NewDB()
			seller := db.AddUser(models.User{Name: "Seller", Email: "s@example.com", Role: models.RoleSeller})
			buyer := db.AddUser(models.User{Name: "Buyer", Email: "b@example.com", Balance: decimal.RequireFromString(tt.balance)})
			product := db.AddProduct(models.Product{Name: "P1", Price: decimal.RequireFromString("30.00"), Stock: tt.stock, SellerID: seller})
			cartID := db.AddOrder(buyer, models.OrderStatusCart)
			if tt.quantity > 0 {
				db.AddItem(cartID, product, tt.quantity, decimal.RequireFromString("30.00"))
			}

			logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
			handler := NewOrderHandler(cart.NewService(db.Sessions(), logger),
				checkout.NewService(db.Sessions(), ledger.New(false), inventory.NewGuard(), time.Second, logger), logger)
			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.POST("/orders/user/:userId/process-payment", middleware.AuthMiddleware(testSecret), handler.ProcessPayment)

			w := doRequest(router, "POST", fmt.Sprintf("/orders/user/%d/process-payment", buyer), bearer(t, buyer, models.RoleCustomer), nil)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}

			var body map[string]string
			json.Unmarshal(w.Body.Bytes(), &body)
			if !strings.HasPrefix(body["error"], "payment processing failed") {
				t.Errorf("Expected processing error message, got %q", body["error"])
			}
			if db.Order(cartID).Status != models.OrderStatusCart {
				t.Errorf("Expected order to stay a cart")
			}
		})
	}
}

func TestOrderHandler_ProcessPayment_NoCart(t *testing.T) {
	f := setupOrderTest(t, 5)

	w := doRequest(f.router, "POST", fmt.Sprintf("/orders/user/%d/process-payment", f.buyer), bearer(t, f.buyer, models.RoleCustomer), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestOrderHandler_ProcessPayment_Forbidden(t *testing.T) {
	f := setupOrderTest(t, 5)

	w := doRequest(f.router, "POST", fmt.Sprintf("/orders/user/%d/process-payment", f.buyer), bearer(t, f.seller, models.RoleSeller), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}

	w = doRequest(f.router, "POST", fmt.Sprintf("/orders/user/%d/process-payment", f.buyer), "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without token, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestOrderHandler_AddItemToOrder(t *testing.T) {
	f := setupOrderTest(t, 5)
	cartID := f.db.AddOrder(f.buyer, models.OrderStatusCart)
	auth := bearer(t, f.buyer, models.RoleCustomer)

	w := doRequest(f.router, "POST", fmt.Sprintf("/orders/Product/%d/Order/%d/quantity/2/cart", f.product, cartID), auth, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var item models.OrderItem
	json.Unmarshal(w.Body.Bytes(), &item)
	if item.Quantity != 2 || !item.UnitPrice.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("Unexpected item: %+v", item)
	}

	w = doRequest(f.router, "POST", fmt.Sprintf("/orders/Product/%d/Order/%d/quantity/0/cart", f.product, cartID), auth, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for zero quantity, got %d", http.StatusBadRequest, w.Code)
	}

	for _, quantity := range []string{"10001", "3000000000", "99999999999999999999"} {
		w = doRequest(f.router, "POST", fmt.Sprintf("/orders/Product/%d/Order/%d/quantity/%s/cart", f.product, cartID, quantity), auth, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d for quantity %s, got %d", http.StatusBadRequest, quantity, w.Code)
		}
	}

	w = doRequest(f.router, "POST", fmt.Sprintf("/orders/Product/999/Order/%d/quantity/1/cart", cartID), auth, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d for unknown product, got %d", http.StatusNotFound, w.Code)
	}

	w = doRequest(f.router, "POST", fmt.Sprintf("/orders/Product/%d/Order/%d/quantity/1/cart", f.product, cartID), bearer(t, f.seller, models.RoleSeller), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d for another user's order, got %d", http.StatusForbidden, w.Code)
	}
}

func TestOrderHandler_AddItemToPaidOrder(t *testing.T) {
	f := setupOrderTest(t, 5)
	paidID := f.db.AddOrder(f.buyer, models.OrderStatusPaid)

	w := doRequest(f.router, "POST", fmt.Sprintf("/orders/Product/%d/Order/%d/quantity/1/cart", f.product, paidID), bearer(t, f.buyer, models.RoleCustomer), nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
}

func TestOrderHandler_CartLifecycle(t *testing.T) {
	f := setupOrderTest(t, 5)
	auth := bearer(t, f.buyer, models.RoleCustomer)

	w := doRequest(f.router, "POST", fmt.Sprintf("/orders/user/%d/cart/items", f.buyer), auth,
		models.AddItemRequest{ProductID: f.product, Quantity: 3})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	w = doRequest(f.router, "POST", fmt.Sprintf("/orders/user/%d/cart/items", f.buyer), auth,
		models.AddItemRequest{ProductID: f.product, Quantity: models.MaxQuantity + 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for oversized quantity, got %d", http.StatusBadRequest, w.Code)
	}

	w = doRequest(f.router, "GET", fmt.Sprintf("/orders/user/%d/cart", f.buyer), auth, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var body struct {
		ID          int                `json:"id"`
		Status      models.OrderStatus `json:"status"`
		Items       []models.OrderItem `json:"items"`
		TotalAmount decimal.Decimal    `json:"total_amount"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != models.OrderStatusCart || len(body.Items) != 1 {
		t.Fatalf("Unexpected cart: %s", w.Body.String())
	}
	if !body.TotalAmount.Equal(decimal.RequireFromString("90.00")) {
		t.Errorf("Expected total 90.00, got %s", body.TotalAmount)
	}

	w = doRequest(f.router, "DELETE", fmt.Sprintf("/orders/user/%d/products/%d", f.buyer, f.product), auth, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	w = doRequest(f.router, "DELETE", fmt.Sprintf("/orders/user/%d/products/%d", f.buyer, f.product), auth, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d on second removal, got %d", http.StatusNotFound, w.Code)
	}
}

func TestOrderHandler_GetOrderAndPayment(t *testing.T) {
	f := setupOrderTest(t, 5)
	cartID := f.db.AddOrder(f.buyer, models.OrderStatusCart)
	f.db.AddItem(cartID, f.product, 1, decimal.RequireFromString("30.00"))
	auth := bearer(t, f.buyer, models.RoleCustomer)

	w := doRequest(f.router, "GET", fmt.Sprintf("/orders/%d/payment", cartID), auth, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d before checkout, got %d", http.StatusNotFound, w.Code)
	}

	w = doRequest(f.router, "POST", fmt.Sprintf("/orders/user/%d/process-payment", f.buyer), auth, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Checkout failed: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(f.router, "GET", fmt.Sprintf("/orders/%d", cartID), auth, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var order struct {
		Status  models.OrderStatus `json:"status"`
		Payment *models.Payment    `json:"payment"`
	}
	json.Unmarshal(w.Body.Bytes(), &order)
	if order.Status != models.OrderStatusPaid || order.Payment == nil {
		t.Errorf("Expected paid order with payment, got %s", w.Body.String())
	}

	w = doRequest(f.router, "GET", fmt.Sprintf("/orders/%d/payment", cartID), auth, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	w = doRequest(f.router, "GET", fmt.Sprintf("/orders/%d", cartID), bearer(t, f.seller, models.RoleSeller), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d for another user, got %d", http.StatusForbidden, w.Code)
	}

	w = doRequest(f.router, "GET", fmt.Sprintf("/orders/user/%d", f.buyer), auth, nil)
	var history []json.RawMessage
	json.Unmarshal(w.Body.Bytes(), &history)
	if w.Code != http.StatusOK || len(history) != 1 {
		t.Errorf("Expected one order in history, got %d %s", w.Code, w.Body.String())
	}
}
