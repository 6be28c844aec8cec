package handlers

import (
	"context"

	"shop-svc/checkout"
	"shop-svc/grpc"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CheckoutService exposes checkout over gRPC with the same error semantics as
// the REST endpoint.
type CheckoutService struct {
	checkout *checkout.Service
	logger   *zap.Logger
}

func NewCheckoutService(svc *checkout.Service, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		checkout: svc,
		logger:   logger,
	}
}

func (s *CheckoutService) ProcessPayment(ctx context.Context, req *grpc.ProcessPaymentRequest) (*grpc.ProcessPaymentResponse, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "ProcessPayment_gRPC")
	defer span.End()

	span.SetAttributes(attribute.Int("user_id", req.UserID))

	if req.UserID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	payment, err := s.checkout.ProcessPayment(ctx, req.UserID)
	if err != nil {
		span.RecordError(err)
		code := grpcCode(err)
		if code == codes.Internal {
			s.logger.Error("gRPC checkout failed", zap.Int("user_id", req.UserID), zap.Error(err))
			return nil, status.Error(code, "payment processing failed")
		}
		return nil, status.Error(code, err.Error())
	}

	return &grpc.ProcessPaymentResponse{Payment: payment}, nil
}
