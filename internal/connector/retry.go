package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"
)

// RetryPolicy bounds the retry/backoff executor.
type RetryPolicy struct {
	MaxRetries       int           // Retries after the first attempt
	RetryDelay       time.Duration // Minimum wait after a 429
	TransportBackoff time.Duration // Fixed wait after a transport failure
}

// DefaultRetryPolicy returns the standard outbound-call policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:       3,
		RetryDelay:       5 * time.Second,
		TransportBackoff: 2 * time.Second,
	}
}

// Observer receives the outcome of every outbound provider call and retry,
// for instrumentation. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveRequest(provider, operation string, err error, elapsed time.Duration)
	ObserveRetry(provider, operation string)
}

// Executor wraps outbound provider calls with the retry discipline:
// rate-limit responses wait max(provider reset, configured delay),
// transport failures use a fixed backoff, everything else surfaces
// immediately. The call returns only on success, terminal failure, or
// exhausted retries.
type Executor struct {
	policy   RetryPolicy
	logger   *slog.Logger
	provider string
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewExecutor builds an executor with the given policy.
func NewExecutor(policy RetryPolicy, logger *slog.Logger) *Executor {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	return &Executor{
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

// WithObserver attaches an instrumentation sink. A nil observer is a no-op.
func (e *Executor) WithObserver(provider string, obs Observer) *Executor {
	e.provider = provider
	e.observer = obs
	return e
}

// Do runs fn, retrying rate-limit and transport failures within the bound.
func (e *Executor) Do(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		start := e.now()
		err := fn()
		if e.observer != nil {
			e.observer.ObserveRequest(e.provider, operation, err, e.now().Sub(start))
		}
		if err == nil {
			return nil
		}
		lastErr = err

		var wait time.Duration
		switch {
		case IsRateLimit(err):
			wait = e.rateLimitWait(err)
		case IsTransport(err):
			wait = e.policy.TransportBackoff
		default:
			// Terminal: auth, provider API and configuration errors are
			// never retried locally.
			return err
		}

		if attempt == e.policy.MaxRetries {
			break
		}

		if e.observer != nil {
			e.observer.ObserveRetry(e.provider, operation)
		}

		e.logger.Warn("retrying outbound call",
			"operation", operation,
			"attempt", attempt+1,
			"wait", wait,
			"error", err)

		if err := e.sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return fmt.Errorf("max retries exceeded (%d): %w", e.policy.MaxRetries, lastErr)
}

func (e *Executor) rateLimitWait(err error) time.Duration {
	wait := e.policy.RetryDelay

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) && !rateErr.ResetAt.IsZero() {
		if until := rateErr.ResetAt.Sub(e.now()); until > wait {
			wait = until
		}
	}

	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
