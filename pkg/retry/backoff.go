package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "chaincrawl/pkg/errors"
)

// BackoffStrategy computes how long to wait before a given attempt
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier each attempt, with jitter
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff returns the backoff used for page fetches
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay returns the delay to sleep after the given failed attempt
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	return time.Duration(max(delay, 0))
}

// ConstantBackoff waits the same amount before every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ErrorTypeBackoff picks a backoff according to the transport cause of the failure
type ErrorTypeBackoff struct {
	Network     BackoffStrategy
	RateLimit   BackoffStrategy
	ServerError BackoffStrategy
	Default     BackoffStrategy

	last errs.ErrorType
}

// NewErrorTypeBackoff returns per-cause backoffs tuned for polite crawling
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		Network: &ExponentialBackoff{
			BaseDelay:    1 * time.Second,
			MaxDelay:     15 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RateLimit: &ExponentialBackoff{
			BaseDelay:    10 * time.Second,
			MaxDelay:     2 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		ServerError: &ExponentialBackoff{
			BaseDelay:    2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Default: DefaultExponentialBackoff(),
	}
}

// Observe records the failure that preceded the next delay
func (etb *ErrorTypeBackoff) Observe(err error) {
	switch {
	case errs.Is(err, errs.ErrorTypeRateLimit):
		etb.last = errs.ErrorTypeRateLimit
	case errs.Is(err, errs.ErrorTypeServerError):
		etb.last = errs.ErrorTypeServerError
	case errs.Is(err, errs.ErrorTypeNetwork):
		etb.last = errs.ErrorTypeNetwork
	default:
		etb.last = errs.ErrorTypeUnknown
	}
}

// NextDelay delegates to the strategy for the last observed failure
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.For(etb.last).NextDelay(attempt)
}

// For returns the strategy used for an error type
func (etb *ErrorTypeBackoff) For(t errs.ErrorType) BackoffStrategy {
	switch t {
	case errs.ErrorTypeNetwork:
		return etb.Network
	case errs.ErrorTypeRateLimit:
		return etb.RateLimit
	case errs.ErrorTypeServerError:
		return etb.ServerError
	default:
		return etb.Default
	}
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
