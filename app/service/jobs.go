package service

import (
	"context"
	"errors"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/repository"
	"github.com/sirupsen/logrus"
)

// RunReconcileBatch settles Pending payments whose webhook never arrived by
// asking the processor for the session state.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	before := time.Now().UTC().Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := withRetry(ctx, s.retry, func() ([]*domain.Payment, error) {
		return s.paymentRepo.ListStalePending(ctx, before, s.batchSize())
	})
	if err != nil {
		return translateError(err)
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.ExternalTransactionID() == "" {
			continue
		}
		if err := s.reconcilePayment(ctx, payment); err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID()).Warn("reconcile failed")
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *PaymentService) reconcilePayment(ctx context.Context, stale *domain.Payment) error {
	providerClient, err := s.providerReg.Get(stale.Provider())
	if err != nil {
		return translateError(err)
	}

	status, err := withRetry(ctx, s.retry, func() (provider.CheckoutStatus, error) {
		started := time.Now()
		out, err := providerClient.GetCheckoutStatus(ctx, stale.ExternalTransactionID())
		s.metrics.ObserveProviderCall(providerClient.Name(), "get_checkout_status", started, err)
		return out, err
	})
	if err != nil {
		return translateError(err)
	}
	if status == provider.CheckoutOpen {
		s.metrics.RecordReconciled("open")
		return nil
	}

	return s.withLock(ctx, transactionLockKey(stale.ExternalTransactionID()), func() error {
		payment, err := withRetry(ctx, s.retry, func() (*domain.Payment, error) {
			return s.paymentRepo.FindByID(ctx, stale.ID())
		})
		if err != nil {
			return translateError(err)
		}
		if payment == nil || payment.Status() != domain.StatusPending {
			return nil
		}

		oldStatus := payment.Status()
		reason := ""
		outcome := "confirmed"
		if status == provider.CheckoutPaid {
			err = payment.Confirm()
		} else {
			reason = "checkout session expired"
			outcome = "expired"
			err = payment.Fail(reason)
		}
		if err != nil {
			return err
		}

		saved, err := s.paymentRepo.Save(ctx, payment)
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil
		}
		if err != nil {
			return translateError(err)
		}

		s.logger.WithFields(logrus.Fields{
			"payment_id": saved.ID(),
			"status":     saved.Status().String(),
		}).Info("payment reconciled")
		s.recordEvent(ctx, saved, "payment_reconciled", &oldStatus, reason, "")
		s.metrics.RecordReconciled(outcome)
		return nil
	})
}
