package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"shop-svc/models"
	"shop-svc/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxReportLimit = 100

// ReportHandler serves admin reports. Every report runs in its own read-only
// transaction so its numbers come from one snapshot.
type ReportHandler struct {
	sessions          repository.SessionFactory
	lowStockThreshold int
	logger            *zap.Logger
}

func NewReportHandler(sessions repository.SessionFactory, lowStockThreshold int, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		sessions:          sessions,
		lowStockThreshold: lowStockThreshold,
		logger:            logger,
	}
}

func runReport[T any](h *ReportHandler, c *gin.Context, name string, query func(context.Context, repository.ReportStore) (T, error)) {
	ctx := c.Request.Context()
	sess := h.sessions()
	defer sess.Dispose()

	if err := sess.BeginTx(ctx, &sql.TxOptions{ReadOnly: true}); err != nil {
		respondError(c, h.logger, err, "Failed to begin report")
		return
	}

	result, err := query(ctx, sess.Reports())
	if err != nil {
		respondError(c, h.logger, err, "Failed to build "+name+" report")
		return
	}
	if err := sess.Commit(); err != nil {
		respondError(c, h.logger, err, "Failed to finish report")
		return
	}

	c.JSON(http.StatusOK, result)
}

func intQuery(c *gin.Context, key string, def, min, max int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return 0, false
	}
	return n, true
}

func (h *ReportHandler) BoardStats(c *gin.Context) {
	runReport(h, c, "board", func(ctx context.Context, r repository.ReportStore) (*models.BoardStats, error) {
		return r.BoardStats(ctx)
	})
}

func (h *ReportHandler) MonthlySales(c *gin.Context) {
	runReport(h, c, "monthly sales", func(ctx context.Context, r repository.ReportStore) ([]models.MonthlySales, error) {
		return r.MonthlySales(ctx)
	})
}

func (h *ReportHandler) TopProducts(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 5, 1, maxReportLimit)
	if !ok {
		return
	}
	runReport(h, c, "top products", func(ctx context.Context, r repository.ReportStore) ([]models.TopProduct, error) {
		return r.TopProducts(ctx, limit)
	})
}

func (h *ReportHandler) LowStock(c *gin.Context) {
	threshold, ok := intQuery(c, "threshold", h.lowStockThreshold, 0, 1_000_000)
	if !ok {
		return
	}
	runReport(h, c, "low stock", func(ctx context.Context, r repository.ReportStore) ([]models.LowStockProduct, error) {
		return r.LowStock(ctx, threshold)
	})
}

func (h *ReportHandler) TopSpenders(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 1, 1, maxReportLimit)
	if !ok {
		return
	}
	runReport(h, c, "top spenders", func(ctx context.Context, r repository.ReportStore) ([]models.TopSpender, error) {
		return r.TopSpenders(ctx, limit)
	})
}
