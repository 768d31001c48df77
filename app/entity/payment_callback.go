package entity

import "time"

const (
	CallbackStatusProcessed int32 = 10
	CallbackStatusIgnored   int32 = 11
	CallbackStatusDuplicate int32 = 12
	CallbackStatusRejected  int32 = 20
)

type PaymentCallback struct {
	ID uint64

	PaymentID *string

	Provider        string
	ProviderEventID *string
	EventType       *string
	Signature       string
	PayloadJSON     string
	Status          int32
	Error           *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
