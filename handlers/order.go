package handlers

import (
	"net/http"
	"strconv"

	"shop-svc/cart"
	"shop-svc/checkout"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	carts    *cart.Service
	checkout *checkout.Service
	logger   *zap.Logger
}

func NewOrderHandler(carts *cart.Service, checkout *checkout.Service, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		carts:    carts,
		checkout: checkout,
		logger:   logger,
	}
}

// ProcessPayment checks out the user's cart.
func (h *OrderHandler) ProcessPayment(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok || !requireActor(c, userID) {
		return
	}

	payment, err := h.checkout.ProcessPayment(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Payment processing failed")
		return
	}

	c.JSON(http.StatusOK, payment)
}

// AddItemToOrder adds quantity units of a product to a specific cart order.
func (h *OrderHandler) AddItemToOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "AddItemToOrder")
	defer span.End()

	productID, ok := paramID(c, "productId")
	if !ok {
		return
	}
	orderID, ok := paramID(c, "orderId")
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(c.Param("quantity"))
	if err != nil || !models.ValidQuantity(quantity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidQuantity.Error()})
		return
	}
	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.Int("product.id", productID),
		attribute.Int("quantity", quantity),
	)

	order, err := h.carts.Order(ctx, orderID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch order")
		return
	}
	if !requireActor(c, order.UserID) {
		return
	}

	item, err := h.carts.AddItem(ctx, orderID, productID, quantity)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to add item")
		return
	}

	c.JSON(http.StatusOK, item)
}

// AddCartItem adds to the user's cart, creating it when absent.
func (h *OrderHandler) AddCartItem(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok || !requireActor(c, userID) {
		return
	}

	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.carts.AddItemForUser(c.Request.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err, "Failed to add item")
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *OrderHandler) RemoveCartItem(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok || !requireActor(c, userID) {
		return
	}
	productID, ok := paramID(c, "productId")
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(c.Request.Context(), userID, productID); err != nil {
		respondError(c, h.logger, err, "Failed to remove item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

func (h *OrderHandler) GetCart(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok || !requireActor(c, userID) {
		return
	}

	order, err := h.carts.GetOrCreateCart(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch cart")
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok || !requireActor(c, userID) {
		return
	}

	orders, err := h.carts.History(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch orders")
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := h.carts.Order(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch order")
		return
	}
	if !requireActor(c, order.UserID) {
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetOrderPayment(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := h.carts.Order(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch order")
		return
	}
	if !requireActor(c, order.UserID) {
		return
	}

	payment, err := h.carts.Payment(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch payment")
		return
	}

	c.JSON(http.StatusOK, payment)
}
