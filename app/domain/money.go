package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency = "BRL"
	moneyScale      = 2
)

var hundred = decimal.NewFromInt(100)

// Money is an immutable non-negative amount tagged with a currency.
// Amounts are kept at 2 fractional digits, rounded half away from zero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney builds a Money. An empty currency falls back to DefaultCurrency.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	code, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return Money{amount: amount.Round(moneyScale), currency: code}, nil
}

func ZeroMoney(currency string) (Money, error) {
	return NewMoney(decimal.Zero, currency)
}

// MoneyFromMinorUnits builds a Money from an integer amount of cents.
func MoneyFromMinorUnits(minor int64, currency string) (Money, error) {
	if minor < 0 {
		return Money{}, fmt.Errorf("%w: %d minor units", ErrInvalidAmount, minor)
	}
	return NewMoney(decimal.New(minor, -moneyScale), currency)
}

func (m Money) Amount() decimal.Decimal { return m.amount }

func (m Money) Currency() string { return m.currency }

func (m Money) IsZero() bool { return m.amount.IsZero() }

// MinorUnits returns the amount multiplied by 100 and rounded to an integer.
func (m Money) MinorUnits() int64 {
	return m.amount.Mul(hundred).Round(0).IntPart()
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Add(other.amount), m.currency)
}

func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m.amount.StringFixed(moneyScale), other.amount.StringFixed(moneyScale))
	}
	return NewMoney(result, m.currency)
}

func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	if factor.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidFactor, factor.String())
	}
	return NewMoney(m.amount.Mul(factor), m.currency)
}

// Percentage returns pct percent of m. pct must be within [0, 100].
func (m Money) Percentage(pct decimal.Decimal) (Money, error) {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidPercentage, pct.String())
	}
	return NewMoney(m.amount.Mul(pct).Div(hundred), m.currency)
}

func (m Money) Equals(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.Equal(other.amount), nil
}

func (m Money) GreaterThan(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.GreaterThan(other.amount), nil
}

func (m Money) LessThan(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.LessThan(other.amount), nil
}

func (m Money) GreaterOrEqual(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.GreaterThanOrEqual(other.amount), nil
}

func (m Money) LessOrEqual(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.LessThanOrEqual(other.amount), nil
}

// String renders the amount with 2 decimals followed by the currency, e.g. "11.98 BRL".
func (m Money) String() string {
	return m.amount.StringFixed(moneyScale) + " " + m.currency
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

func normalizeCurrency(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return DefaultCurrency, nil
	}
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
		}
	}
	return code, nil
}
