package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/repository"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrAmountMismatch       = errors.New("total does not match line items")
	ErrInvalidLineItem      = errors.New("invalid line item")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	ErrPaymentInProgress    = errors.New("a pending payment with a different amount exists for this order")
	ErrOrderAlreadyPaid     = errors.New("order is already paid")
	ErrConcurrentUpdate     = errors.New("payment is being updated concurrently")
	ErrProviderUnsupported  = errors.New("provider is not supported")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
	ErrProviderRejected     = errors.New("payment provider rejected the request")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrMissingSignature     = errors.New("signature header is required")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrCallbackRejected     = errors.New("callback rejected")
)

// ValidationError lists every reason a request was refused. It unwraps to the
// sentinel of the first failed rule.
type ValidationError struct {
	Err     error
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(e.Reasons, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) add(err error, reason string) {
	if e.Err == nil {
		e.Err = err
	}
	e.Reasons = append(e.Reasons, reason)
}

func (e *ValidationError) orNil() error {
	if e.Err == nil {
		return nil
	}
	return e
}

// translateError maps repository and provider failures onto service sentinels,
// keeping the original error in the chain.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrProviderUnavailable):
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	case errors.Is(err, provider.ErrProviderRejected):
		return fmt.Errorf("%w: %w", ErrProviderRejected, err)
	case errors.Is(err, provider.ErrProviderNotSupported):
		return ErrProviderUnsupported
	case errors.Is(err, repository.ErrStorageUnavailable):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%w: %w", ErrConcurrentUpdate, err)
	case errors.Is(err, repository.ErrPaymentNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, repository.ErrPaymentAlreadyExists):
		return ErrPaymentAlreadyExists
	default:
		return err
	}
}

func keepFirstErr(current error, next error) error {
	if current != nil {
		return current
	}
	return next
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	return v[:max]
}
