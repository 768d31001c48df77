package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultProvider = "stripe"

// Payment is the aggregate root of the payment lifecycle. State only changes
// through Confirm, Fail and Refund; persistence is the caller's concern.
type Payment struct {
	id                    string
	orderID               string
	amount                Money
	status                Status
	provider              string
	externalTransactionID string
	checkoutURL           string
	refundedAmount        Money
	failureReason         string
	version               int64
	createdAt             time.Time
	updatedAt             time.Time
}

// Snapshot carries persisted payment state for RestorePayment.
type Snapshot struct {
	ID                    string
	OrderID               string
	Amount                Money
	Status                Status
	Provider              string
	ExternalTransactionID string
	CheckoutURL           string
	RefundedAmount        Money
	FailureReason         string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewPayment creates a Pending payment. An empty provider means DefaultProvider.
func NewPayment(orderID string, amount Money, provider string, externalTransactionID string) (*Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = DefaultProvider
	}
	refunded, err := ZeroMoney(amount.Currency())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Payment{
		id:                    uuid.NewString(),
		orderID:               orderID,
		amount:                amount,
		status:                StatusPending,
		provider:              provider,
		externalTransactionID: strings.TrimSpace(externalTransactionID),
		refundedAmount:        refunded,
		createdAt:             now,
		updatedAt:             now,
	}, nil
}

// RestorePayment rebuilds a Payment from persisted data without applying transition rules.
func RestorePayment(s Snapshot) *Payment {
	return &Payment{
		id:                    s.ID,
		orderID:               s.OrderID,
		amount:                s.Amount,
		status:                s.Status,
		provider:              s.Provider,
		externalTransactionID: s.ExternalTransactionID,
		checkoutURL:           s.CheckoutURL,
		refundedAmount:        s.RefundedAmount,
		failureReason:         s.FailureReason,
		version:               s.Version,
		createdAt:             s.CreatedAt,
		updatedAt:             s.UpdatedAt,
	}
}

func (p *Payment) ID() string                    { return p.id }
func (p *Payment) OrderID() string               { return p.orderID }
func (p *Payment) Amount() Money                 { return p.amount }
func (p *Payment) Status() Status                { return p.status }
func (p *Payment) Provider() string              { return p.provider }
func (p *Payment) ExternalTransactionID() string { return p.externalTransactionID }
func (p *Payment) CheckoutURL() string           { return p.checkoutURL }
func (p *Payment) RefundedAmount() Money         { return p.refundedAmount }
func (p *Payment) FailureReason() string         { return p.failureReason }
func (p *Payment) Version() int64                { return p.version }
func (p *Payment) CreatedAt() time.Time          { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time          { return p.updatedAt }

func (p *Payment) IsComplete() bool { return p.status.IsComplete() }

// Snapshot exports the current state.
func (p *Payment) Snapshot() Snapshot {
	return Snapshot{
		ID:                    p.id,
		OrderID:               p.orderID,
		Amount:                p.amount,
		Status:                p.status,
		Provider:              p.provider,
		ExternalTransactionID: p.externalTransactionID,
		CheckoutURL:           p.checkoutURL,
		RefundedAmount:        p.refundedAmount,
		FailureReason:         p.failureReason,
		Version:               p.version,
		CreatedAt:             p.createdAt,
		UpdatedAt:             p.updatedAt,
	}
}

// AttachCheckout records the processor session. The external id can be set once.
func (p *Payment) AttachCheckout(externalTransactionID, checkoutURL string) error {
	externalTransactionID = strings.TrimSpace(externalTransactionID)
	if p.externalTransactionID != "" && p.externalTransactionID != externalTransactionID {
		return fmt.Errorf("%w: %s", ErrExternalIDAlreadySet, p.externalTransactionID)
	}
	p.externalTransactionID = externalTransactionID
	p.checkoutURL = strings.TrimSpace(checkoutURL)
	p.updatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) Confirm() error {
	if !p.status.CanConfirm() {
		return p.illegal(StatusSucceeded)
	}
	p.status = StatusSucceeded
	p.updatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) Fail(reason string) error {
	if !p.status.CanConfirm() {
		return p.illegal(StatusFailed)
	}
	p.status = StatusFailed
	p.failureReason = strings.TrimSpace(reason)
	p.updatedAt = time.Now().UTC()
	return nil
}

// Refund refunds the whole amount when partial is nil, otherwise the given
// amount. It returns the refunded Money.
func (p *Payment) Refund(partial *Money) (Money, error) {
	if !p.status.CanRefund() {
		return Money{}, p.illegal(StatusRefunded)
	}

	refunded := p.amount
	target := StatusRefunded
	if partial != nil {
		exceeds, err := partial.GreaterThan(p.amount)
		if err != nil {
			return Money{}, err
		}
		if exceeds || partial.IsZero() {
			return Money{}, fmt.Errorf("%w: refund of %s against %s", ErrInvalidAmount, partial.String(), p.amount.String())
		}
		if !partial.Amount().Equal(p.amount.Amount()) {
			target = StatusPartiallyRefunded
		}
		refunded = *partial
	}

	p.status = target
	p.refundedAmount = refunded
	p.updatedAt = time.Now().UTC()
	return refunded, nil
}

func (p *Payment) illegal(to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, p.status, to)
}
