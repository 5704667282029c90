package util

import (
	"context"
	"fmt"
	"time"
)

const retryBaseDelay = 500 * time.Millisecond

// RetryWithBackoff calls fn up to maxRetries+1 times, doubling the wait
// between attempts starting from half a second. fn receives the 0-indexed
// attempt number and should return nil on success. A cancelled context
// short-circuits the loop and returns the context error.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := retryBaseDelay * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
