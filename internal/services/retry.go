package services

import (
	"context"
	"time"
)

// Retry policy for read-after-write confirmation. The store may serve a
// read before the preceding write is visible; confirmations retry a few
// times with exponentially growing delays, and nothing else is retried.
const (
	maxConfirmAttempts = 3
	confirmBaseDelay   = 10 * time.Millisecond
)

// withRetry runs fn up to attempts times, sleeping baseDelay, 2*baseDelay,
// ... between tries. Only Transient failures are retried; any other error
// returns immediately. The context cancels the wait.
func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsCode(err, CodeTransient) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return WrapErr(CodeTransient, "retry cancelled", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
