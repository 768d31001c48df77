package provider

import (
	"context"
	"errors"
)

var (
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment provider rejected the request")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedEvent      = errors.New("malformed webhook event")
)

// EventKind is the provider-neutral meaning of a webhook event.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
)

func (k EventKind) String() string {
	switch k {
	case EventPaymentSucceeded:
		return "payment_succeeded"
	case EventPaymentFailed:
		return "payment_failed"
	default:
		return "unhandled"
	}
}

type CheckoutLineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutInput struct {
	PaymentID      string
	OrderID        string
	Currency       string
	Items          []CheckoutLineItem
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type RefundInput struct {
	ExternalTransactionID string
	AmountMinor           int64
	IdempotencyKey        string
}

type Refund struct {
	ID     string
	Status string
}

// Event is a verified webhook event. ExternalTransactionID may be empty for
// events that only carry the payment and order references in metadata.
type Event struct {
	ID                    string
	Type                  string
	Kind                  EventKind
	ExternalTransactionID string
	PaymentID             string
	OrderID               string
	FailureReason         string
}

type CheckoutStatus int

const (
	CheckoutOpen CheckoutStatus = iota
	CheckoutPaid
	CheckoutExpired
)

type Provider interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, input *CheckoutInput) (*CheckoutSession, error)
	ParseWebhookEvent(ctx context.Context, payload []byte, signature string) (*Event, error)
	CreateRefund(ctx context.Context, input *RefundInput) (*Refund, error)
	GetCheckoutStatus(ctx context.Context, externalTransactionID string) (CheckoutStatus, error)
}
