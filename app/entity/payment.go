package entity

import "time"

type Payment struct {
	ID string

	OrderID string

	AmountMinor   int64
	RefundedMinor int64
	Currency      string

	Status   string
	Provider string

	ExternalTransactionID *string
	CheckoutURL           *string
	FailureReason         *string

	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
