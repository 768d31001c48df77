package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type initiateRefundRequest interface {
	GetOrderID() string
	GetPartialAmount() *decimal.Decimal
}

// InitiateRefund refunds the latest payment of the order. The processor is
// called before anything is stored, and a processor failure leaves the stored
// payment untouched. A payment is refunded at most once, so the idempotency key
// is the payment id alone: a retry after a failed save gets the original
// processor refund back, or a rejection if the amount changed.
func (s *PaymentService) InitiateRefund(ctx context.Context, req initiateRefundRequest) (*domain.Payment, error) {
	orderID, err := requireOrderID(req.GetOrderID())
	if err != nil {
		s.metrics.RecordRefund("invalid")
		return nil, err
	}

	var result *domain.Payment
	err = s.withLock(ctx, orderLockKey(orderID), func() error {
		payment, err := withRetry(ctx, s.retry, func() (*domain.Payment, error) {
			return s.paymentRepo.FindByOrderID(ctx, orderID)
		})
		if err != nil {
			return translateError(err)
		}
		if payment == nil {
			return ErrPaymentNotFound
		}

		partial, err := partialRefundAmount(req.GetPartialAmount(), payment.Amount().Currency())
		if err != nil {
			return err
		}

		oldStatus := payment.Status()
		refunded, err := payment.Refund(partial)
		if err != nil {
			return err
		}
		if payment.ExternalTransactionID() == "" {
			return fmt.Errorf("%w: payment %s has no processor transaction", domain.ErrIllegalTransition, payment.ID())
		}

		providerClient, err := s.providerReg.Get(payment.Provider())
		if err != nil {
			return translateError(err)
		}

		input := &provider.RefundInput{
			ExternalTransactionID: payment.ExternalTransactionID(),
			AmountMinor:           refunded.MinorUnits(),
			IdempotencyKey:        refundIdempotencyKey(payment.ID()),
		}
		processorRefund, err := withRetry(ctx, s.retry, func() (*provider.Refund, error) {
			started := time.Now()
			out, err := providerClient.CreateRefund(ctx, input)
			s.metrics.ObserveProviderCall(providerClient.Name(), "create_refund", started, err)
			return out, err
		})
		if err != nil {
			return translateError(err)
		}

		saved, err := s.paymentRepo.Save(ctx, payment)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"payment_id": payment.ID(),
				"order_id":   orderID,
				"refund_id":  processorRefund.ID,
			}).Error("processor refund succeeded but payment could not be stored; retry the refund to reconcile")
			return translateError(err)
		}

		eventType := "payment_refunded"
		if saved.Status() == domain.StatusPartiallyRefunded {
			eventType = "payment_partially_refunded"
		}
		s.recordEvent(ctx, saved, eventType, &oldStatus, "refund "+processorRefund.ID, "")
		result = saved
		return nil
	})
	if err != nil {
		s.metrics.RecordRefund("error")
		return nil, err
	}

	s.metrics.RecordRefund(result.Status().String())
	return result, nil
}

func refundIdempotencyKey(paymentID string) string {
	return "refund:" + paymentID
}
