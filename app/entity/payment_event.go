package entity

import "time"

type PaymentEvent struct {
	ID uint64

	PaymentID string

	EventType string

	OldStatus *string
	NewStatus string

	Reason          *string
	ProviderEventID *string

	CreatedAt time.Time
}
