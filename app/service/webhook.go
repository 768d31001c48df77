package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/entity"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/repository"
	"github.com/sirupsen/logrus"
)

type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookDuplicate WebhookOutcome = "duplicate"
)

type handleProviderWebhookRequest interface {
	GetProvider() string
	GetSignature() string
	GetPayload() []byte
}

// HandleProviderEvent verifies a processor webhook and applies it to the
// matching payment. Replays and events that no longer apply are acknowledged
// without error.
func (s *PaymentService) HandleProviderEvent(ctx context.Context, req handleProviderWebhookRequest) (WebhookOutcome, error) {
	providerName := strings.ToLower(strings.TrimSpace(req.GetProvider()))
	signature := strings.TrimSpace(req.GetSignature())
	payload := req.GetPayload()

	if signature == "" {
		s.metrics.RecordWebhook(providerName, "rejected")
		return "", ErrMissingSignature
	}

	providerClient, err := s.providerReg.Get(providerName)
	if err != nil {
		return "", translateError(err)
	}

	event, err := providerClient.ParseWebhookEvent(ctx, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrInvalidSignature):
			s.logger.WithError(err).WithField("provider", providerName).Warn("webhook signature rejected")
			s.recordCallback(ctx, req, nil, nil, entity.CallbackStatusRejected, err.Error())
			s.metrics.RecordWebhook(providerName, "rejected")
			return "", ErrInvalidSignature
		case errors.Is(err, provider.ErrMalformedEvent):
			s.logger.WithError(err).WithField("provider", providerName).Warn("webhook payload rejected")
			s.recordCallback(ctx, req, nil, nil, entity.CallbackStatusRejected, err.Error())
			s.metrics.RecordWebhook(providerName, "rejected")
			return "", fmt.Errorf("%w: %v", ErrCallbackRejected, err)
		default:
			return "", err
		}
	}

	log := s.logger.WithFields(logrus.Fields{
		"provider":                providerName,
		"event_id":                event.ID,
		"event_type":              event.Type,
		"external_transaction_id": event.ExternalTransactionID,
	})

	if event.Kind == provider.EventUnhandled {
		log.Info("unhandled provider event acknowledged")
		s.recordCallback(ctx, req, event, nil, entity.CallbackStatusIgnored, "")
		s.metrics.RecordWebhook(providerName, string(WebhookIgnored))
		return WebhookIgnored, nil
	}

	lockKey := transactionLockKey(event.ExternalTransactionID)
	if event.ExternalTransactionID == "" {
		lockKey = orderLockKey(event.OrderID)
	}

	var outcome WebhookOutcome
	err = s.withLock(ctx, lockKey, func() error {
		for attempt := 1; attempt <= maxConflictRetries; attempt++ {
			payment, err := s.findEventPayment(ctx, event)
			if err != nil {
				return translateError(err)
			}
			if payment == nil {
				log.WithField("order_id", event.OrderID).Error("verified provider event references an unknown payment")
				s.recordCallback(ctx, req, event, nil, entity.CallbackStatusRejected, ErrPaymentNotFound.Error())
				return ErrPaymentNotFound
			}

			oldStatus := payment.Status()
			eventType, changed := applyProviderEvent(payment, event)
			if !changed {
				if event.Kind == provider.EventPaymentSucceeded && oldStatus == domain.StatusFailed {
					log.WithField("payment_id", payment.ID()).Error("success event received for a failed payment")
				} else {
					log.WithField("payment_id", payment.ID()).Info("provider event already applied")
				}
				s.recordCallback(ctx, req, event, payment, entity.CallbackStatusDuplicate, "")
				outcome = WebhookDuplicate
				return nil
			}

			saved, err := s.paymentRepo.Save(ctx, payment)
			if errors.Is(err, repository.ErrVersionConflict) {
				log.WithField("attempt", attempt).Warn("payment changed concurrently, reloading")
				continue
			}
			if err != nil {
				return translateError(err)
			}

			s.recordEvent(ctx, saved, eventType, &oldStatus, saved.FailureReason(), event.ID)
			s.recordCallback(ctx, req, event, saved, entity.CallbackStatusProcessed, "")
			outcome = WebhookProcessed
			return nil
		}
		return fmt.Errorf("%w: gave up after %d attempts", ErrConcurrentUpdate, maxConflictRetries)
	})
	if err != nil {
		s.metrics.RecordWebhook(providerName, "error")
		return "", err
	}

	s.metrics.RecordWebhook(providerName, string(outcome))
	return outcome, nil
}

// findEventPayment matches the event to the payment it was issued for: by
// processor transaction, then by the payment id carried in metadata. The order
// id alone is trusted only when the order has exactly one payment.
func (s *PaymentService) findEventPayment(ctx context.Context, event *provider.Event) (*domain.Payment, error) {
	return withRetry(ctx, s.retry, func() (*domain.Payment, error) {
		if event.ExternalTransactionID != "" {
			return s.paymentRepo.FindByExternalTransactionID(ctx, event.ExternalTransactionID)
		}
		if event.PaymentID != "" {
			return s.paymentRepo.FindByID(ctx, event.PaymentID)
		}
		if event.OrderID == "" {
			return nil, nil
		}

		items, err := s.paymentRepo.ListByOrderID(ctx, event.OrderID)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, nil
		}
		if len(items) > 1 {
			s.logger.WithFields(logrus.Fields{
				"event_id": event.ID,
				"order_id": event.OrderID,
				"payments": len(items),
			}).Error("provider event cannot be matched to a single payment of the order")
			return nil, nil
		}
		return items[0], nil
	})
}

// applyProviderEvent drives the state machine. An illegal transition means
// the event was already applied or is stale, and is reported as unchanged.
func applyProviderEvent(payment *domain.Payment, event *provider.Event) (string, bool) {
	var err error
	var eventType string
	switch event.Kind {
	case provider.EventPaymentSucceeded:
		eventType = "payment_confirmed"
		err = payment.Confirm()
	case provider.EventPaymentFailed:
		eventType = "payment_failed"
		reason := strings.TrimSpace(event.FailureReason)
		if reason == "" {
			reason = "payment failed"
		}
		err = payment.Fail(reason)
	default:
		return "", false
	}
	if err != nil {
		return "", false
	}
	return eventType, true
}

// recordCallback stores the raw delivery. Failures are logged only.
func (s *PaymentService) recordCallback(
	ctx context.Context,
	req handleProviderWebhookRequest,
	event *provider.Event,
	payment *domain.Payment,
	status int32,
	reason string,
) {
	now := time.Now().UTC()
	callback := &entity.PaymentCallback{
		Provider:    strings.ToLower(strings.TrimSpace(req.GetProvider())),
		Signature:   truncate(strings.TrimSpace(req.GetSignature()), 1024),
		PayloadJSON: string(req.GetPayload()),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if payment != nil {
		id := payment.ID()
		callback.PaymentID = &id
	}
	if event != nil {
		if event.ID != "" {
			id := event.ID
			callback.ProviderEventID = &id
		}
		if event.Type != "" {
			t := event.Type
			callback.EventType = &t
		}
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		r := truncate(reason, 1024)
		callback.Error = &r
	}

	if err := s.callbackRepo.Create(ctx, callback); err != nil {
		s.logger.WithError(err).WithField("provider", callback.Provider).Warn("failed to record provider callback")
	}
}
