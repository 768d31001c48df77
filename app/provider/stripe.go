package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/factory"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

const StripeName = "stripe"

type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	SignatureTolerance time.Duration
	HTTPTimeout        time.Duration
	// APIBaseURL overrides https://api.stripe.com.
	APIBaseURL string
	SuccessURL string
	CancelURL  string
}

// StripeProvider talks to Stripe Checkout through stripe-go clients bound to a
// private backend, so no package-level stripe.Key is used.
type StripeProvider struct {
	cfg      StripeConfig
	sessions session.Client
	refunds  refund.Client
	logger   logrus.FieldLogger
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.SignatureTolerance <= 0 {
		cfg.SignatureTolerance = webhook.DefaultTolerance
	}

	logger := factory.NewModuleLogger("stripe-provider")
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.HTTPTimeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger,
	}
	if base := strings.TrimSpace(cfg.APIBaseURL); base != "" {
		backendCfg.URL = stripe.String(base)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripeProvider{
		cfg:      cfg,
		sessions: session.Client{B: backend, Key: cfg.SecretKey},
		refunds:  refund.Client{B: backend, Key: cfg.SecretKey},
		logger:   logger,
	}
}

func (p *StripeProvider) Name() string {
	return StripeName
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, input *CheckoutInput) (*CheckoutSession, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}

	successURL := firstNonEmpty(input.SuccessURL, p.cfg.SuccessURL)
	cancelURL := firstNonEmpty(input.CancelURL, p.cfg.CancelURL)
	if successURL == "" || cancelURL == "" {
		return nil, errors.New("checkout success and cancel urls are not configured")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(input.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id":   input.OrderID,
				"payment_id": input.PaymentID,
			},
		},
	}
	currency := strings.ToLower(input.Currency)
	for _, item := range input.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	params.AddMetadata("order_id", input.OrderID)
	params.AddMetadata("payment_id", input.PaymentID)
	params.Context = ctx
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	cs, err := p.sessions.New(params)
	if err != nil {
		return nil, classifyStripeError("create checkout session", err)
	}
	if strings.TrimSpace(cs.ID) == "" || strings.TrimSpace(cs.URL) == "" {
		return nil, fmt.Errorf("%w: checkout session without id or url", ErrProviderRejected)
	}

	return &CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

func (p *StripeProvider) GetCheckoutStatus(ctx context.Context, externalTransactionID string) (CheckoutStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := p.sessions.Get(externalTransactionID, params)
	if err != nil {
		return CheckoutOpen, classifyStripeError("get checkout session", err)
	}

	if cs.Status == stripe.CheckoutSessionStatusExpired {
		return CheckoutExpired, nil
	}
	if sessionPaid(cs) {
		return CheckoutPaid, nil
	}
	return CheckoutOpen, nil
}

// CreateRefund resolves the session's payment intent and refunds it.
func (p *StripeProvider) CreateRefund(ctx context.Context, input *RefundInput) (*Refund, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}

	sessionParams := &stripe.CheckoutSessionParams{}
	sessionParams.Context = ctx
	sessionParams.AddExpand("payment_intent")
	cs, err := p.sessions.Get(input.ExternalTransactionID, sessionParams)
	if err != nil {
		return nil, classifyStripeError("get checkout session", err)
	}
	if cs.PaymentIntent == nil || strings.TrimSpace(cs.PaymentIntent.ID) == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no payment intent", ErrProviderRejected, input.ExternalTransactionID)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(cs.PaymentIntent.ID),
		Amount:        stripe.Int64(input.AmountMinor),
	}
	params.AddMetadata("external_transaction_id", input.ExternalTransactionID)
	params.Context = ctx
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	r, err := p.refunds.New(params)
	if err != nil {
		return nil, classifyStripeError("create refund", err)
	}

	return &Refund{ID: r.ID, Status: string(r.Status)}, nil
}

func (p *StripeProvider) ParseWebhookEvent(_ context.Context, payload []byte, signature string) (*Event, error) {
	if strings.TrimSpace(p.cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, signature, p.cfg.WebhookSecret, p.cfg.SignatureTolerance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s without data", ErrMalformedEvent, event.ID)
	}

	result := &Event{ID: event.ID, Type: string(event.Type), Kind: EventUnhandled}

	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		result.ExternalTransactionID = cs.ID
		result.PaymentID = cs.Metadata["payment_id"]
		result.OrderID = firstNonEmpty(cs.ClientReferenceID, cs.Metadata["order_id"])

		switch event.Type {
		case "checkout.session.completed":
			// Async methods (boleto, pix) complete the session unpaid and settle later.
			if sessionPaid(&cs) {
				result.Kind = EventPaymentSucceeded
			}
		case "checkout.session.async_payment_succeeded":
			result.Kind = EventPaymentSucceeded
		case "checkout.session.async_payment_failed":
			result.Kind = EventPaymentFailed
			result.FailureReason = "async payment failed"
		case "checkout.session.expired":
			result.Kind = EventPaymentFailed
			result.FailureReason = "checkout session expired"
		}

	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		result.PaymentID = pi.Metadata["payment_id"]
		result.OrderID = pi.Metadata["order_id"]
		if event.Type == "payment_intent.succeeded" {
			result.Kind = EventPaymentSucceeded
		} else {
			result.Kind = EventPaymentFailed
			result.FailureReason = paymentIntentFailure(&pi)
		}
	}

	return result, nil
}

func sessionPaid(cs *stripe.CheckoutSession) bool {
	return cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}

func paymentIntentFailure(pi *stripe.PaymentIntent) string {
	if pi.LastPaymentError == nil {
		return "payment failed"
	}
	if code := strings.TrimSpace(string(pi.LastPaymentError.Code)); code != "" {
		return code
	}
	if msg := strings.TrimSpace(pi.LastPaymentError.Msg); msg != "" {
		return msg
	}
	return "payment failed"
}

// classifyStripeError separates transient failures (network, 429, 5xx) from
// requests Stripe refused.
func classifyStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
			stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.Type == stripe.ErrorTypeAPI {
			return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, op, err)
		}
		return fmt.Errorf("%w: %s: %s", ErrProviderRejected, op, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, op, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
