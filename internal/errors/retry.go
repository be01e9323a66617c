package errors

import (
	"context"
	"errors"
	"time"
)

const (
	MaxRetries     = 2
	InitialBackoff = 200 * time.Millisecond
	MaxBackoff     = 2 * time.Second
)

// WithRetry runs fn, retrying retryable failures with exponential backoff.
// Collaborator calls are the main consumer; validation failures never retry.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := InitialBackoff

	var err error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
	}
}

func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return false
}
