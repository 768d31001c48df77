package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSucceededPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment("o1", mustMoney(t, "100.00", "BRL"), "", "cs_test_1")
	require.NoError(t, err)
	require.NoError(t, p.Confirm())
	return p
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusSucceeded, StatusFailed, StatusRefunded, StatusPartiallyRefunded} {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseStatus("canceled")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPending.CanConfirm())
	assert.False(t, StatusSucceeded.CanConfirm())
	assert.True(t, StatusSucceeded.CanRefund())
	assert.False(t, StatusPartiallyRefunded.CanRefund())

	assert.False(t, StatusPending.IsComplete())
	assert.False(t, StatusFailed.IsComplete())
	assert.True(t, StatusRefunded.IsComplete())

	assert.False(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestNewPayment(t *testing.T) {
	p, err := NewPayment(" o1 ", mustMoney(t, "11.98", "BRL"), "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, "o1", p.OrderID())
	assert.Equal(t, StatusPending, p.Status())
	assert.Equal(t, DefaultProvider, p.Provider())
	assert.True(t, p.RefundedAmount().IsZero())
	assert.Equal(t, int64(0), p.Version())

	_, err = NewPayment("", mustMoney(t, "1", "BRL"), "", "")
	assert.ErrorIs(t, err, ErrMissingOrderID)
}

func TestPaymentAttachCheckout(t *testing.T) {
	p, err := NewPayment("o1", mustMoney(t, "1", "BRL"), "stripe", "")
	require.NoError(t, err)

	require.NoError(t, p.AttachCheckout("cs_1", "https://checkout.example/cs_1"))
	require.NoError(t, p.AttachCheckout("cs_1", "https://checkout.example/cs_1"))
	assert.ErrorIs(t, p.AttachCheckout("cs_2", ""), ErrExternalIDAlreadySet)
	assert.Equal(t, "cs_1", p.ExternalTransactionID())
}

func TestPaymentConfirmTwice(t *testing.T) {
	p := newSucceededPayment(t)
	assert.ErrorIs(t, p.Confirm(), ErrIllegalTransition)
	assert.Equal(t, StatusSucceeded, p.Status())
}

func TestPaymentFail(t *testing.T) {
	p, err := NewPayment("o1", mustMoney(t, "1", "BRL"), "", "cs_1")
	require.NoError(t, err)

	require.NoError(t, p.Fail("card_declined"))
	assert.Equal(t, StatusFailed, p.Status())
	assert.Equal(t, "card_declined", p.FailureReason())

	assert.ErrorIs(t, p.Fail("again"), ErrIllegalTransition)
	assert.ErrorIs(t, p.Confirm(), ErrIllegalTransition)
	assert.Equal(t, "card_declined", p.FailureReason())
}

func TestPaymentRefund(t *testing.T) {
	t.Run("full refund when omitted", func(t *testing.T) {
		p := newSucceededPayment(t)
		refunded, err := p.Refund(nil)
		require.NoError(t, err)
		assert.Equal(t, StatusRefunded, p.Status())
		assert.Equal(t, "100.00 BRL", refunded.String())
	})

	t.Run("partial equal to amount is full", func(t *testing.T) {
		p := newSucceededPayment(t)
		partial := mustMoney(t, "100", "BRL")
		_, err := p.Refund(&partial)
		require.NoError(t, err)
		assert.Equal(t, StatusRefunded, p.Status())
	})

	t.Run("partial below amount", func(t *testing.T) {
		p := newSucceededPayment(t)
		partial := mustMoney(t, "40", "BRL")
		refunded, err := p.Refund(&partial)
		require.NoError(t, err)
		assert.Equal(t, StatusPartiallyRefunded, p.Status())
		assert.Equal(t, "40.00 BRL", refunded.String())
		assert.True(t, p.IsComplete())

		_, err = p.Refund(nil)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("partial above amount", func(t *testing.T) {
		p := newSucceededPayment(t)
		partial := mustMoney(t, "100.01", "BRL")
		_, err := p.Refund(&partial)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Equal(t, StatusSucceeded, p.Status())
	})

	t.Run("zero partial", func(t *testing.T) {
		p := newSucceededPayment(t)
		partial := mustMoney(t, "0", "BRL")
		_, err := p.Refund(&partial)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("other currency", func(t *testing.T) {
		p := newSucceededPayment(t)
		partial := mustMoney(t, "1", "USD")
		_, err := p.Refund(&partial)
		assert.ErrorIs(t, err, ErrCurrencyMismatch)
		assert.Equal(t, StatusSucceeded, p.Status())
		assert.True(t, p.RefundedAmount().IsZero())
	})

	t.Run("pending payment", func(t *testing.T) {
		p, err := NewPayment("o1", mustMoney(t, "1", "BRL"), "", "cs_1")
		require.NoError(t, err)
		_, err = p.Refund(nil)
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, StatusPending, p.Status())
	})
}

func TestRestorePaymentRoundTrip(t *testing.T) {
	p := newSucceededPayment(t)
	restored := RestorePayment(p.Snapshot())
	assert.Equal(t, p.Snapshot(), restored.Snapshot())
}
