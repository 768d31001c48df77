package grpc

import (
	"context"
	"errors"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/mapper"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/service"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	paymentService *service.PaymentService
}

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService}
}

func (s *Server) Health(_ context.Context, _ *types.HealthRequest) (*types.HealthResponse, error) {
	return &types.HealthResponse{Status: "ok"}, nil
}

func (s *Server) StartCheckout(ctx context.Context, req *types.StartCheckoutRequest) (*types.CheckoutResponse, error) {
	l := loggerWithContext(ctx)
	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Start checkout validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.StartCheckout(ctx, req)
	if err != nil {
		return nil, statusFromError(ctx, err, "Start checkout failed")
	}

	return &types.CheckoutResponse{
		PaymentID:             item.ID(),
		ExternalTransactionID: item.ExternalTransactionID(),
		CheckoutURL:           item.CheckoutURL(),
	}, nil
}

func (s *Server) GetPaymentByOrder(ctx context.Context, req *types.GetPaymentByOrderRequest) (*types.PaymentEnvelopeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.GetPaymentByOrder(ctx, req)
	if err != nil {
		return nil, statusFromError(ctx, err, "Get payment failed")
	}

	return &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)}, nil
}

func (s *Server) InitiateRefund(ctx context.Context, req *types.InitiateRefundRequest) (*types.RefundResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.InitiateRefund(ctx, req)
	if err != nil {
		return nil, statusFromError(ctx, err, "Initiate refund failed")
	}

	return mapper.PaymentToRefundResponse(item), nil
}

func statusFromError(ctx context.Context, err error, logMessage string) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrPaymentNotFound):
		return status.Error(codes.NotFound, "payment not found")
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, service.ErrPaymentInProgress),
		errors.Is(err, service.ErrOrderAlreadyPaid):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrConcurrentUpdate), errors.Is(err, service.ErrPaymentAlreadyExists):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, service.ErrProviderUnavailable), errors.Is(err, service.ErrStorageUnavailable):
		loggerWithContext(ctx).WithError(err).Warn(logMessage)
		return status.Error(codes.Unavailable, "service unavailable")
	case errors.Is(err, service.ErrProviderRejected):
		loggerWithContext(ctx).WithError(err).Warn(logMessage)
		return status.Error(codes.FailedPrecondition, "payment provider rejected the request")
	default:
		loggerWithContext(ctx).WithError(err).Error(logMessage)
		return status.Error(codes.Internal, "internal server error")
	}
}
