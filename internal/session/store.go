package session

import (
	"context"
	"errors"
)

// ErrNotFound indicates that no state exists for the session.
var ErrNotFound = errors.New("session state not found")

// Store defines the persistence contract for conversation state.
type Store interface {
	// Load returns the current state for the session or ErrNotFound.
	Load(ctx context.Context, sessionID string) (*State, error)
	// Save persists the provided state for the session.
	Save(ctx context.Context, sessionID string, state *State) error
	// Delete removes the state for the session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, sessionID string) error
}
