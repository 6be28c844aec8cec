package handlers

import (
	"net/http"

	"shop-svc/ledger"
	"shop-svc/models"
	"shop-svc/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type UserHandler struct {
	sessions repository.SessionFactory
	ledger   *ledger.Ledger
	logger   *zap.Logger
}

func NewUserHandler(sessions repository.SessionFactory, l *ledger.Ledger, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		sessions: sessions,
		ledger:   l,
		logger:   logger,
	}
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok || !requireActor(c, id) {
		return
	}

	sess := h.sessions()
	defer sess.Dispose()

	user, err := sess.Users().Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Deposit credits the user's wallet through the ledger.
func (h *UserHandler) Deposit(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "Deposit")
	defer span.End()

	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", id))

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Amount.IsPositive() || !models.IsMoney(req.Amount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidAmount.Error()})
		return
	}

	sess := h.sessions()
	defer sess.Dispose()

	if err := sess.Begin(ctx); err != nil {
		respondError(c, h.logger, err, "Failed to begin deposit")
		return
	}

	locked, err := sess.Users().LockMany(ctx, []int{id})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to lock user")
		return
	}
	if len(locked) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	user := locked[0]

	if err := h.ledger.Credit(user, req.Amount); err != nil {
		respondError(c, h.logger, err, "Failed to credit wallet")
		return
	}
	if err := sess.Users().UpdateBalance(ctx, user.ID, user.Balance); err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to update balance")
		return
	}
	if err := sess.Commit(); err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, "Failed to commit deposit")
		return
	}

	h.logger.Info("Wallet credited",
		zap.Int("user_id", user.ID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	c.JSON(http.StatusOK, user)
}
