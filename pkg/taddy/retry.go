package taddy

import (
	"context"
	"time"
)

// defaultMaxAttempts caps how many times a single lookup step is tried.
const defaultMaxAttempts = 2

// retryDelay is the pause between attempts. Kept short: retries extend a pool
// slot's occupancy in the worker, they do not get their own slot.
const retryDelay = 500 * time.Millisecond

// withRetry runs fn up to attempts times, retrying only transient failures.
// Non-transient errors (schema mismatch, quota exhaustion, client-side 4xx)
// are returned immediately.
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
	}
	return err
}
