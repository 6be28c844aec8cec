package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"shop-svc/circuitbreaker"
	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// httpStatus maps a domain error to its response status. Anything unknown is
// a 500 and its message is not exposed.
func httpStatus(err error) int {
	var stockErr *models.InsufficientStockError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.As(err, &stockErr), errors.Is(err, models.ErrOrderNotCart):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch httpStatus(err) {
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusPaymentRequired, http.StatusConflict:
		return codes.FailedPrecondition
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg,
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err),
		)
		c.Error(err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func requireActor(c *gin.Context, userID int) bool {
	if !middleware.CanActFor(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return false
	}
	return true
}
