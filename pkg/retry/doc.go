// Package retry provides exponential backoff and retry logic for transient
// upstream failures.
//
// Only errors classified as transient by pkg/errors are retried by default:
// network failures, rate limiting and 5xx responses. Permanent failures are
// returned after the first attempt, and when every attempt fails Do returns
// an *ExhaustedError wrapping the last failure.
//
// Basic usage:
//
//	body, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//		return fetcher.Fetch(ctx, req)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		Logger:      log,
//	})
//
// The Sleep hook lets tests observe backoff delays without waiting for them.
package retry
