// Package retry wraps fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"time"
)

// Options bounds a retried operation. OnFailure, when set, is invoked after
// every failed attempt; it exists for classification and logging only and
// never changes the delay schedule.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	OnFailure   func(attempt int, err error)
}

// Do invokes fn up to MaxAttempts times, sleeping BaseDelay * 2^(attempt-1)
// between attempts. The last error is returned once attempts are exhausted.
// Sleeps honour context cancellation.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if opts.OnFailure != nil {
			opts.OnFailure(attempt, lastErr)
		}
		if attempt == opts.MaxAttempts {
			break
		}

		delay := opts.BaseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, opts, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
