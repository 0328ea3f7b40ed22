// Package retry repeats operations that fail for transient transport reasons.
//
// Only failures whose error chain carries a retryable errors.ErrorType
// (network, rate limit, server error) are repeated. Everything else,
// including context cancellation, returns immediately.
//
//	page, err := retry.DoWithResult(ctx, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(),
//	}, func(ctx context.Context) ([]byte, error) {
//		return client.get(ctx, url)
//	})
package retry
