package service

import (
	"context"
	"errors"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/repository"
)

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// delay returns min(base * 2^(attempt-1), max) for attempt >= 1.
func (p retryPolicy) delay(attempt int) time.Duration {
	if attempt < 1 || p.baseDelay <= 0 {
		return 0
	}
	d := p.baseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.maxDelay > 0 && d >= p.maxDelay {
			return p.maxDelay
		}
	}
	if p.maxDelay > 0 && d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// retryable reports transient infrastructure failures. Validation and
// rejection errors are never retried.
func retryable(err error) bool {
	return errors.Is(err, provider.ErrProviderUnavailable) || errors.Is(err, repository.ErrStorageUnavailable)
}

func withRetry[T any](ctx context.Context, p retryPolicy, fn func() (T, error)) (T, error) {
	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}

	var result T
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn()
		if err == nil || !retryable(err) || attempt == attempts {
			return result, err
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
	}
	return result, err
}
