package grpc

import (
	"context"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/types"
	"google.golang.org/grpc"
)

const serviceName = "payments.PaymentsService"

type PaymentsServiceServer interface {
	Health(context.Context, *types.HealthRequest) (*types.HealthResponse, error)
	StartCheckout(context.Context, *types.StartCheckoutRequest) (*types.CheckoutResponse, error)
	GetPaymentByOrder(context.Context, *types.GetPaymentByOrderRequest) (*types.PaymentEnvelopeResponse, error)
	InitiateRefund(context.Context, *types.InitiateRefundRequest) (*types.RefundResponse, error)
}

func RegisterPaymentsServiceServer(s grpc.ServiceRegistrar, srv PaymentsServiceServer) {
	s.RegisterService(&PaymentsServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[Req any, Resp any](
	method string,
	call func(PaymentsServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaymentsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PaymentsServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var PaymentsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PaymentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Health",
			Handler:    unaryHandler("Health", PaymentsServiceServer.Health),
		},
		{
			MethodName: "StartCheckout",
			Handler:    unaryHandler("StartCheckout", PaymentsServiceServer.StartCheckout),
		},
		{
			MethodName: "GetPaymentByOrder",
			Handler:    unaryHandler("GetPaymentByOrder", PaymentsServiceServer.GetPaymentByOrder),
		},
		{
			MethodName: "InitiateRefund",
			Handler:    unaryHandler("InitiateRefund", PaymentsServiceServer.InitiateRefund),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payments.proto",
}

// PaymentsServiceClient calls the service with the JSON codec.
type PaymentsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentsServiceClient(cc grpc.ClientConnInterface) *PaymentsServiceClient {
	return &PaymentsServiceClient{cc: cc}
}

func (c *PaymentsServiceClient) invoke(ctx context.Context, method string, in any, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *PaymentsServiceClient) Health(ctx context.Context, in *types.HealthRequest, opts ...grpc.CallOption) (*types.HealthResponse, error) {
	out := new(types.HealthResponse)
	if err := c.invoke(ctx, "Health", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PaymentsServiceClient) StartCheckout(ctx context.Context, in *types.StartCheckoutRequest, opts ...grpc.CallOption) (*types.CheckoutResponse, error) {
	out := new(types.CheckoutResponse)
	if err := c.invoke(ctx, "StartCheckout", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PaymentsServiceClient) GetPaymentByOrder(ctx context.Context, in *types.GetPaymentByOrderRequest, opts ...grpc.CallOption) (*types.PaymentEnvelopeResponse, error) {
	out := new(types.PaymentEnvelopeResponse)
	if err := c.invoke(ctx, "GetPaymentByOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PaymentsServiceClient) InitiateRefund(ctx context.Context, in *types.InitiateRefundRequest, opts ...grpc.CallOption) (*types.RefundResponse, error) {
	out := new(types.RefundResponse)
	if err := c.invoke(ctx, "InitiateRefund", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
