package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "chaincrawl/pkg/errors"
	"chaincrawl/pkg/logger"
)

// Operation is a unit of work that may fail transiently
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of tries, including the first one
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf decides whether a failure is worth another attempt
	RetryIf func(error) bool
	// OnRetry is called before sleeping ahead of each retry
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     NewErrorTypeBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// DefaultRetryIf retries transport failures and nothing else
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var e *errs.Error
	for cur := error(err); errors.As(cur, &e); cur = e.Err {
		if errs.IsRetryable(e.Type) {
			return true
		}
	}
	return false
}

// Do runs op until it succeeds, fails permanently or runs out of attempts
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) || attempt == attempts {
			break
		}

		if obs, ok := cfg.Backoff.(interface{ Observe(error) }); ok {
			obs.Observe(err)
		}
		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff.NextDelay(attempt)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WithError(err).WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": attempts,
			"delay":        delay,
		})

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}

	if attempts > 1 && retryIf(lastErr) {
		return fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
	}
	return lastErr
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
