package domain

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrCurrencyMismatch     = errors.New("currency mismatch")
	ErrNegativeResult       = errors.New("negative result")
	ErrInvalidFactor        = errors.New("invalid factor")
	ErrInvalidPercentage    = errors.New("invalid percentage")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrMissingOrderID       = errors.New("order id is required")
	ErrExternalIDAlreadySet = errors.New("external transaction id already set")
)
