package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shop-svc/circuitbreaker"
	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductCache is the read-through cache in front of product lookups.
type ProductCache interface {
	Get(ctx context.Context, id int) (*models.Product, error)
	Set(ctx context.Context, p *models.Product) error
	Invalidate(ctx context.Context, ids ...int) error
}

type ProductHandler struct {
	sessions       repository.SessionFactory
	cache          ProductCache
	logger         *zap.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewProductHandler(sessions repository.SessionFactory, cache ProductCache, maxFailures int, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		sessions:       sessions,
		cache:          cache,
		logger:         logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(maxFailures, 30*time.Second),
	}
}

const errInvalidPrice = "Price must be greater than zero with at most two decimal places"

func validPrice(price decimal.Decimal) bool {
	return price.IsPositive() && models.IsMoney(price)
}

func isNotFound(err error) bool { return errors.Is(err, models.ErrNotFound) }

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	sess := h.sessions()
	defer sess.Dispose()

	products, err := sess.Products().List(ctx)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to fetch products")
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	if cached, err := h.cache.Get(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		middleware.RecordCacheLookup(true)
		c.JSON(http.StatusOK, cached)
		return
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))
	middleware.RecordCacheLookup(false)

	sess := h.sessions()
	defer sess.Dispose()

	var product *models.Product
	err := h.circuitBreaker.Execute(ctx, func() error {
		var err error
		product, err = sess.Products().Get(ctx, id)
		return err
	}, isNotFound)
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			span.SetAttributes(attribute.String("circuit.state", h.circuitBreaker.GetState().String()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			return
		}
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to fetch product")
		return
	}

	if err := h.cache.Set(ctx, product); err != nil {
		h.logger.Warn("Failed to cache product", zap.Int("product_id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validPrice(req.Price) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidPrice})
		return
	}

	claims, _ := middleware.CurrentUser(c)
	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		SellerID:    claims.UserID,
		ImageURL:    req.ImageURL,
	}

	sess := h.sessions()
	defer sess.Dispose()

	if err := sess.Products().Create(ctx, &product); err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to create product")
		return
	}

	span.SetAttributes(attribute.Int("product.id", product.ID))
	h.logger.Info("Product created", zap.Int("product_id", product.ID), zap.Int("seller_id", product.SellerID))
	c.JSON(http.StatusCreated, product)
}

// ownedProduct loads the product and checks the caller is its seller or an admin.
func (h *ProductHandler) ownedProduct(ctx context.Context, c *gin.Context, sess repository.Session, id int) bool {
	product, err := sess.Products().Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return false
		}
		respondError(c, h.logger, err, "Failed to fetch product")
		return false
	}
	if !middleware.CanActFor(c, product.SellerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return false
	}
	return true
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price != nil && !validPrice(*req.Price) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidPrice})
		return
	}

	sess := h.sessions()
	defer sess.Dispose()

	if !h.ownedProduct(ctx, c, sess, id) {
		return
	}

	product, err := sess.Products().Update(ctx, id, req)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to update product")
		return
	}

	h.invalidate(ctx, id)
	h.logger.Info("Product updated", zap.Int("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	sess := h.sessions()
	defer sess.Dispose()

	if !h.ownedProduct(ctx, c, sess, id) {
		return
	}

	if err := sess.Products().Delete(ctx, id); err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to delete product")
		return
	}

	h.invalidate(ctx, id)
	h.logger.Info("Product deleted", zap.Int("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

func (h *ProductHandler) invalidate(ctx context.Context, id int) {
	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.Int("product_id", id), zap.Error(err))
	}
}
