package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/entity"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/factory"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/lock"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/metrics"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultBatchSize   = int32(100)
	defaultLockWait    = 10 * time.Second
	maxConflictRetries = 3
)

type getPaymentByOrderRequest interface {
	GetOrderID() string
}

type paymentRepository interface {
	Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	ListByOrderID(ctx context.Context, orderID string) ([]*domain.Payment, error)
	FindByExternalTransactionID(ctx context.Context, externalTransactionID string) (*domain.Payment, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*domain.Payment, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
	ListByPaymentID(ctx context.Context, paymentID string) ([]*entity.PaymentEvent, error)
}

type paymentCallbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
}

type PaymentService struct {
	paymentRepo  paymentRepository
	eventRepo    paymentEventRepository
	callbackRepo paymentCallbackRepository
	providerReg  *provider.Registry
	locker       lock.Locker
	metrics      *metrics.Metrics
	checkoutCfg  config.CheckoutConfig
	paymentsCfg  config.PaymentsConfig
	retry        retryPolicy
	logger       logrus.FieldLogger
}

func NewPaymentService(
	paymentRepo paymentRepository,
	eventRepo paymentEventRepository,
	callbackRepo paymentCallbackRepository,
	providerReg *provider.Registry,
	locker lock.Locker,
	m *metrics.Metrics,
	checkoutCfg config.CheckoutConfig,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if strings.TrimSpace(checkoutCfg.DefaultCurrency) == "" {
		checkoutCfg.DefaultCurrency = domain.DefaultCurrency
	}

	return &PaymentService{
		paymentRepo:  paymentRepo,
		eventRepo:    eventRepo,
		callbackRepo: callbackRepo,
		providerReg:  providerReg,
		locker:       locker,
		metrics:      m,
		checkoutCfg:  checkoutCfg,
		paymentsCfg:  paymentsCfg,
		retry: retryPolicy{
			attempts:  paymentsCfg.RetryMaxAttempts,
			baseDelay: paymentsCfg.RetryBaseDelay,
			maxDelay:  paymentsCfg.RetryMaxDelay,
		},
		logger: factory.NewModuleLogger("payments-service"),
	}
}

// StartCheckout opens a processor checkout session for the order and stores a
// Pending payment carrying its id. Retrying with the same cart returns the
// existing Pending payment.
func (s *PaymentService) StartCheckout(ctx context.Context, req startCheckoutRequest) (*domain.Payment, error) {
	plan, err := validateCheckout(req, s.checkoutCfg.DefaultCurrency)
	if err != nil {
		s.metrics.RecordCheckout("invalid")
		return nil, err
	}

	providerClient, err := s.providerReg.Get(domain.DefaultProvider)
	if err != nil {
		return nil, translateError(err)
	}

	var result *domain.Payment
	err = s.withLock(ctx, orderLockKey(plan.orderID), func() error {
		existing, err := withRetry(ctx, s.retry, func() (*domain.Payment, error) {
			return s.paymentRepo.FindByOrderID(ctx, plan.orderID)
		})
		if err != nil {
			return translateError(err)
		}
		if existing != nil {
			switch existing.Status() {
			case domain.StatusPending:
				if same, _ := existing.Amount().Equals(plan.amount); same {
					result = existing
					return nil
				}
				return fmt.Errorf("%w: order %s", ErrPaymentInProgress, plan.orderID)
			case domain.StatusSucceeded:
				return fmt.Errorf("%w: order %s", ErrOrderAlreadyPaid, plan.orderID)
			}
		}

		payment, err := domain.NewPayment(plan.orderID, plan.amount, providerClient.Name(), "")
		if err != nil {
			return err
		}

		input := &provider.CheckoutInput{
			PaymentID:      payment.ID(),
			OrderID:        plan.orderID,
			Currency:       plan.amount.Currency(),
			Items:          plan.items,
			SuccessURL:     firstNonEmpty(plan.successURL, s.checkoutCfg.SuccessURL),
			CancelURL:      firstNonEmpty(plan.cancelURL, s.checkoutCfg.CancelURL),
			IdempotencyKey: "checkout:" + payment.ID(),
		}
		session, err := withRetry(ctx, s.retry, func() (*provider.CheckoutSession, error) {
			started := time.Now()
			out, err := providerClient.CreateCheckoutSession(ctx, input)
			s.metrics.ObserveProviderCall(providerClient.Name(), "create_checkout_session", started, err)
			return out, err
		})
		if err != nil {
			return translateError(err)
		}
		if err := payment.AttachCheckout(session.ID, session.URL); err != nil {
			return err
		}

		saved, err := s.paymentRepo.Save(ctx, payment)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"order_id":                plan.orderID,
				"external_transaction_id": session.ID,
			}).Error("checkout session created but payment could not be stored")
			return translateError(err)
		}

		s.recordEvent(ctx, saved, "payment_created", nil, "", "")
		result = saved
		return nil
	})
	if err != nil {
		s.metrics.RecordCheckout("error")
		return nil, err
	}

	s.metrics.RecordCheckout("created")
	return result, nil
}

func (s *PaymentService) GetPaymentByOrder(ctx context.Context, req getPaymentByOrderRequest) (*domain.Payment, error) {
	orderID, err := requireOrderID(req.GetOrderID())
	if err != nil {
		return nil, err
	}

	payment, err := withRetry(ctx, s.retry, func() (*domain.Payment, error) {
		return s.paymentRepo.FindByOrderID(ctx, orderID)
	})
	if err != nil {
		return nil, translateError(err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ListPaymentEvents returns the audit trail of the latest payment for the order.
func (s *PaymentService) ListPaymentEvents(ctx context.Context, req getPaymentByOrderRequest) ([]*entity.PaymentEvent, error) {
	payment, err := s.GetPaymentByOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	events, err := withRetry(ctx, s.retry, func() ([]*entity.PaymentEvent, error) {
		return s.eventRepo.ListByPaymentID(ctx, payment.ID())
	})
	if err != nil {
		return nil, translateError(err)
	}
	return events, nil
}

func (s *PaymentService) withLock(ctx context.Context, key string, fn func() error) error {
	wait := s.paymentsCfg.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}

	lockCtx, cancel := context.WithTimeout(ctx, wait)
	unlock, err := s.locker.Lock(lockCtx, key)
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return fmt.Errorf("%w: %s", ErrConcurrentUpdate, key)
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer unlock()

	return fn()
}

// recordEvent writes an audit row. Failures are logged only.
func (s *PaymentService) recordEvent(ctx context.Context, payment *domain.Payment, eventType string, oldStatus *domain.Status, reason string, providerEventID string) {
	event := &entity.PaymentEvent{
		PaymentID: payment.ID(),
		EventType: eventType,
		NewStatus: payment.Status().String(),
		CreatedAt: time.Now().UTC(),
	}
	if oldStatus != nil {
		old := oldStatus.String()
		event.OldStatus = &old
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		r := truncate(reason, 1024)
		event.Reason = &r
	}
	if providerEventID = strings.TrimSpace(providerEventID); providerEventID != "" {
		event.ProviderEventID = &providerEventID
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"payment_id": payment.ID(),
			"event_type": eventType,
		}).Warn("failed to record payment event")
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func orderLockKey(orderID string) string {
	return "order:" + orderID
}

func transactionLockKey(externalTransactionID string) string {
	return "txn:" + externalTransactionID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
