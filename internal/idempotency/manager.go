// Package idempotency deduplicates retried chat deliveries: a message carrying
// the same client message id within the TTL returns the stored reply instead
// of running the dialogue turn again.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress signals that another delivery of the same message is
// still being processed.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Operation produces the response to store under the key.
type Operation func(ctx context.Context) (interface{}, error)

// Result carries the operation response and whether it was replayed.
type Result struct {
	Response  interface{}
	FromCache bool
}

// Manager executes operations at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

// NewManager builds a Manager over the given store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		locked, err := m.store.Lock(ctx, key, 2*time.Minute)
		if err != nil {
			return nil, err
		}

		if !locked {
			record, err := m.store.Get(ctx, key)
			if err != nil {
				return nil, err
			}

			// Lock held but no record yet: the first delivery is still
			// running, or just released. Poll briefly.
			if record == nil || record.Status == StatusProcessing {
				if record != nil {
					return nil, ErrRequestInProgress
				}
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(100 * time.Millisecond):
					continue
				}
			}

			var response interface{}
			if len(record.Response) > 0 {
				if err := json.Unmarshal(record.Response, &response); err != nil {
					return nil, err
				}
			}

			return &Result{Response: response, FromCache: true}, nil
		}

		defer m.store.ReleaseLock(ctx, key)

		// The lock outlives the operation only while it runs; a retry
		// arriving after completion re-acquires it, so the stored record
		// is what actually prevents re-execution.
		if record, err := m.store.Get(ctx, key); err != nil {
			return nil, err
		} else if record != nil && record.Status == StatusCompleted {
			var response interface{}
			if len(record.Response) > 0 {
				if err := json.Unmarshal(record.Response, &response); err != nil {
					return nil, err
				}
			}
			return &Result{Response: response, FromCache: true}, nil
		}

		result, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		responseBytes, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}

		if err := m.store.Set(ctx, key, &Record{
			Status:   StatusCompleted,
			Response: responseBytes,
		}, ttl); err != nil {
			return nil, err
		}

		return &Result{
			Response:  result,
			FromCache: false,
		}, nil
	}
}
