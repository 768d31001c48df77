package types

import (
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxWebhookPayloadBytes = 1 << 20


var signatureHeaders = []string{"Stripe-Signature", "X-Provider-Signature", "Signature"}

func NewStartCheckoutRequestFromContext(ctx echo.Context) (*StartCheckoutRequest, error) {
	var body StartCheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderID = strings.TrimSpace(body.OrderID)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.SuccessURL = strings.TrimSpace(body.SuccessURL)
	body.CancelURL = strings.TrimSpace(body.CancelURL)
	for _, item := range body.Items {
		if item != nil {
			item.ProductRef = strings.TrimSpace(item.ProductRef)
		}
	}

	return &body, nil
}

func (r *StartCheckoutRequest) Validate() error {
	if strings.TrimSpace(r.GetOrderID()) == "" {
		return errors.New("order_id is required")
	}
	if c := strings.TrimSpace(r.GetCurrency()); c != "" && len(c) != 3 {
		return errors.New("currency must be 3 letters")
	}
	for _, item := range r.GetItems() {
		if item == nil {
			return errors.New("items must not contain null entries")
		}
	}
	return nil
}

func NewGetPaymentByOrderRequestFromContext(ctx echo.Context) (*GetPaymentByOrderRequest, error) {
	return &GetPaymentByOrderRequest{OrderID: strings.TrimSpace(ctx.Param("orderId"))}, nil
}

func (r *GetPaymentByOrderRequest) Validate() error {
	if strings.TrimSpace(r.GetOrderID()) == "" {
		return errors.New("order_id is required")
	}
	return nil
}

func NewInitiateRefundRequestFromContext(ctx echo.Context) (*InitiateRefundRequest, error) {
	var body InitiateRefundRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.OrderID = strings.TrimSpace(ctx.Param("orderId"))

	return &body, nil
}

func (r *InitiateRefundRequest) Validate() error {
	if strings.TrimSpace(r.GetOrderID()) == "" {
		return errors.New("order_id is required")
	}
	return nil
}

func NewProviderWebhookRequestFromContext(ctx echo.Context) (*ProviderWebhookRequest, error) {
	rawBody, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookPayloadBytes))
	if err != nil {
		return nil, err
	}

	req := &ProviderWebhookRequest{
		Provider: strings.ToLower(strings.TrimSpace(ctx.Param("provider"))),
		Payload:  rawBody,
	}
	for _, header := range signatureHeaders {
		if sig := strings.TrimSpace(ctx.Request().Header.Get(header)); sig != "" {
			req.Signature = sig
			break
		}
	}

	return req, nil
}

func (r *ProviderWebhookRequest) Validate() error {
	if strings.TrimSpace(r.GetProvider()) == "" {
		return errors.New("provider is required")
	}
	if len(r.GetPayload()) == 0 {
		return errors.New("payload is required")
	}
	return nil
}
