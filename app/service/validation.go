package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/types"
	"github.com/shopspring/decimal"
)

type startCheckoutRequest interface {
	GetOrderID() string
	GetItems() []*types.LineItem
	GetTotal() *decimal.Decimal
	GetCurrency() string
	GetSuccessURL() string
	GetCancelURL() string
}

type checkoutPlan struct {
	orderID    string
	amount     domain.Money
	items      []provider.CheckoutLineItem
	successURL string
	cancelURL  string
}

// validateCheckout checks the cart and computes the payment amount from the
// line items. A client total, when sent, must match that amount at 2 places.
func validateCheckout(req startCheckoutRequest, defaultCurrency string) (*checkoutPlan, error) {
	verr := &ValidationError{}

	orderID := strings.TrimSpace(req.GetOrderID())
	if orderID == "" {
		verr.add(ErrInvalidRequest, "order_id is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.GetCurrency()))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(defaultCurrency))
	}
	total, err := domain.ZeroMoney(currency)
	if err != nil {
		verr.add(domain.ErrInvalidCurrency, fmt.Sprintf("currency %q is not a 3-letter code", currency))
		return nil, verr
	}

	items := req.GetItems()
	if len(items) == 0 {
		verr.add(ErrEmptyCart, "items must not be empty")
		return nil, verr
	}

	plan := &checkoutPlan{
		orderID:    orderID,
		successURL: strings.TrimSpace(req.GetSuccessURL()),
		cancelURL:  strings.TrimSpace(req.GetCancelURL()),
		items:      make([]provider.CheckoutLineItem, 0, len(items)),
	}

	for i, item := range items {
		if item == nil {
			verr.add(ErrInvalidLineItem, fmt.Sprintf("items[%d] is empty", i))
			continue
		}
		ref := strings.TrimSpace(item.GetProductRef())
		if ref == "" {
			verr.add(ErrInvalidLineItem, fmt.Sprintf("items[%d].product_ref is required", i))
		}
		if item.GetQuantity() <= 0 {
			verr.add(ErrInvalidLineItem, fmt.Sprintf("items[%d].quantity must be positive", i))
			continue
		}
		unit, err := domain.NewMoney(item.GetUnitPrice(), currency)
		if err != nil {
			verr.add(domain.ErrInvalidAmount, fmt.Sprintf("items[%d].unit_price must not be negative", i))
			continue
		}
		line, err := unit.Multiply(decimal.NewFromInt(item.GetQuantity()))
		if err != nil {
			verr.add(domain.ErrInvalidAmount, fmt.Sprintf("items[%d] amount is invalid", i))
			continue
		}
		if total, err = total.Add(line); err != nil {
			verr.add(domain.ErrCurrencyMismatch, fmt.Sprintf("items[%d] currency mismatch", i))
			continue
		}
		plan.items = append(plan.items, provider.CheckoutLineItem{
			Name:       ref,
			UnitAmount: unit.MinorUnits(),
			Quantity:   item.GetQuantity(),
		})
	}
	if verr.Err != nil {
		return nil, verr
	}

	if total.IsZero() {
		verr.add(domain.ErrInvalidAmount, "total must be greater than zero")
		return nil, verr
	}
	if declared := req.GetTotal(); declared != nil {
		if declared.IsNegative() {
			verr.add(domain.ErrInvalidAmount, "total must not be negative")
		} else if !declared.Round(2).Equal(total.Amount()) {
			verr.add(ErrAmountMismatch, fmt.Sprintf("total %s does not match line items sum %s", declared.StringFixed(2), total.Amount().StringFixed(2)))
		}
	}

	plan.amount = total
	return plan, verr.orNil()
}

func requireOrderID(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", &ValidationError{Err: ErrInvalidRequest, Reasons: []string{"order_id is required"}}
	}
	return orderID, nil
}

// partialRefundAmount converts an optional client amount into the payment currency.
func partialRefundAmount(amount *decimal.Decimal, currency string) (*domain.Money, error) {
	if amount == nil {
		return nil, nil
	}
	m, err := domain.NewMoney(*amount, currency)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			return nil, &ValidationError{Err: domain.ErrInvalidAmount, Reasons: []string{"partial_amount must not be negative"}}
		}
		return nil, err
	}
	return &m, nil
}
