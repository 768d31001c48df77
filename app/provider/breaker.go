package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/factory"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// BreakerProvider wraps outbound processor calls in a circuit breaker. Only
// ErrProviderUnavailable counts as a failure; rejections mean the processor is up.
// Webhook parsing is local and bypasses the breaker.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker[any]
	logger  logrus.FieldLogger
}

func NewBreakerProvider(next Provider, cfg BreakerConfig) *BreakerProvider {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}

	logger := factory.NewModuleLogger("provider-breaker")
	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrProviderUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("provider circuit state changed")
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

func (p *BreakerProvider) Name() string {
	return p.next.Name()
}

func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

func (p *BreakerProvider) CreateCheckoutSession(ctx context.Context, input *CheckoutInput) (*CheckoutSession, error) {
	res, err := p.execute(func() (any, error) {
		return p.next.CreateCheckoutSession(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	return res.(*CheckoutSession), nil
}

func (p *BreakerProvider) CreateRefund(ctx context.Context, input *RefundInput) (*Refund, error) {
	res, err := p.execute(func() (any, error) {
		return p.next.CreateRefund(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Refund), nil
}

func (p *BreakerProvider) GetCheckoutStatus(ctx context.Context, externalTransactionID string) (CheckoutStatus, error) {
	res, err := p.execute(func() (any, error) {
		return p.next.GetCheckoutStatus(ctx, externalTransactionID)
	})
	if err != nil {
		return CheckoutOpen, err
	}
	return res.(CheckoutStatus), nil
}

func (p *BreakerProvider) ParseWebhookEvent(ctx context.Context, payload []byte, signature string) (*Event, error) {
	return p.next.ParseWebhookEvent(ctx, payload, signature)
}

func (p *BreakerProvider) execute(fn func() (any, error)) (any, error) {
	res, err := p.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s circuit: %v", ErrProviderUnavailable, p.next.Name(), err)
	}
	return res, err
}
