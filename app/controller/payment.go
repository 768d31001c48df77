package controller

import (
	"errors"
	"net/http"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/factory"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/mapper"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/service"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/types"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const webhookRejectedMessage = "webhook rejected"

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) StartCheckout(ctx echo.Context) error {
	req, err := types.NewStartCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.StartCheckout(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Start checkout failed")
	}

	return ctx.JSON(http.StatusCreated, &types.CheckoutResponse{
		PaymentID:             item.ID(),
		ExternalTransactionID: item.ExternalTransactionID(),
		CheckoutURL:           item.CheckoutURL(),
	})
}

func (c *PaymentController) GetPaymentByOrder(ctx echo.Context) error {
	req, err := types.NewGetPaymentByOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPaymentByOrder(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Get payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *PaymentController) ListPaymentEvents(ctx echo.Context) error {
	req, err := types.NewGetPaymentByOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListPaymentEvents(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "List payment events failed")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentEventsToResponse(req.GetOrderID(), items))
}

func (c *PaymentController) InitiateRefund(ctx echo.Context) error {
	req, err := types.NewInitiateRefundRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.InitiateRefund(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Initiate refund failed")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentToRefundResponse(item))
}

// HandleProviderWebhook answers the processor with success or failure only.
func (c *PaymentController) HandleProviderWebhook(ctx echo.Context) error {
	req, err := types.NewProviderWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, webhookRejectedMessage)
	}

	outcome, err := c.paymentService.HandleProviderEvent(ctx.Request().Context(), req)
	if err != nil {
		logger := factory.LoggerWithContext(c.logger, ctx).WithField("provider", req.GetProvider())
		switch {
		case errors.Is(err, service.ErrMissingSignature):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidSignature), errors.Is(err, service.ErrCallbackRejected):
			logger.WithError(err).Warn("Provider webhook rejected")
			return c.writeError(ctx, http.StatusBadRequest, webhookRejectedMessage)
		case errors.Is(err, service.ErrPaymentNotFound), errors.Is(err, service.ErrProviderUnsupported):
			return c.writeError(ctx, http.StatusNotFound, webhookRejectedMessage)
		case errors.Is(err, service.ErrStorageUnavailable), errors.Is(err, service.ErrConcurrentUpdate):
			logger.WithError(err).Error("Provider webhook deferred")
			return c.writeError(ctx, http.StatusServiceUnavailable, "service unavailable")
		default:
			logger.WithError(err).Error("Handle provider webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Provider webhook " + string(outcome)})
}

func (c *PaymentController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.writeError(ctx, http.StatusBadRequest, verr.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrInvalidLineItem),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPaymentNotFound):
		return c.writeError(ctx, http.StatusNotFound, "payment not found")
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, service.ErrPaymentInProgress),
		errors.Is(err, service.ErrOrderAlreadyPaid),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, service.ErrPaymentAlreadyExists):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrProviderUnavailable), errors.Is(err, service.ErrStorageUnavailable):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn(logMessage)
		return c.writeError(ctx, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, service.ErrProviderRejected):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn(logMessage)
		return c.writeError(ctx, http.StatusBadGateway, "payment provider rejected the request")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
