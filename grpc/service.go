package grpc

import (
	"context"

	"shop-svc/models"

	"google.golang.org/grpc"
)

const (
	ServiceName          = "shop.CheckoutService"
	processPaymentMethod = "/shop.CheckoutService/ProcessPayment"
)

type ProcessPaymentRequest struct {
	UserID int `json:"user_id"`
}

type ProcessPaymentResponse struct {
	Payment *models.Payment `json:"payment"`
}

type CheckoutServer interface {
	ProcessPayment(ctx context.Context, req *ProcessPaymentRequest) (*ProcessPaymentResponse, error)
}

func RegisterCheckoutServer(s grpc.ServiceRegistrar, srv CheckoutServer) {
	s.RegisterService(&CheckoutServiceDesc, srv)
}

func processPaymentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProcessPaymentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).ProcessPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: processPaymentMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CheckoutServer).ProcessPayment(ctx, req.(*ProcessPaymentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var CheckoutServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ProcessPayment",
			Handler:    processPaymentHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shop/checkout",
}
