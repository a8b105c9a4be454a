package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks a backend that could not be reached.
var ErrUnavailable = errors.New("backend unavailable")

// RetryableError wraps an error to indicate it should trigger a retry.
type RetryableError struct{ Err error }

// Retryable wraps err as a RetryableError. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff configures [Backoff.Retry].
type Backoff struct {
	Attempts int           // total attempts, default 3
	Delay    time.Duration // first delay, doubled after each failure; default 1s
}

// Retry calls fn until it succeeds, returns a non-retryable error or runs out
// of attempts. Only errors wrapped with [Retryable] are retried.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts, delay := b.Attempts, b.Delay
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff retries fn with the default [Backoff].
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Backoff{}.Retry(ctx, fn)
}
