package grpc

import (
	"context"
	"fmt"
	"time"

	"shop-svc/circuitbreaker"
	"shop-svc/models"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type CheckoutClient struct {
	conn           *grpc.ClientConn
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func InitCheckoutClient(address string, logger *zap.Logger, opts ...grpc.DialOption) (*CheckoutClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to checkout service: %w", err)
	}

	return &CheckoutClient{
		conn:           conn,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		logger:         logger,
	}, nil
}

// ProcessPayment checks out the user's cart remotely. Only transport-level
// failures count against the breaker; business rejections do not.
func (cc *CheckoutClient) ProcessPayment(ctx context.Context, userID int) (*models.Payment, error) {
	var resp ProcessPaymentResponse

	err := cc.circuitBreaker.Execute(ctx, func() error {
		return cc.conn.Invoke(ctx, processPaymentMethod, &ProcessPaymentRequest{UserID: userID}, &resp)
	}, isBusinessError)
	if err != nil {
		cc.logger.Warn("Remote checkout failed", zap.Int("user_id", userID), zap.Error(err))
		return nil, err
	}

	return resp.Payment, nil
}

func (cc *CheckoutClient) Close() error {
	return cc.conn.Close()
}

func isBusinessError(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.FailedPrecondition, codes.InvalidArgument, codes.PermissionDenied:
		return true
	}
	return false
}
