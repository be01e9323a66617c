package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and single-process deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*State),
	}
}

// Load returns a copy of the stored state or ErrNotFound.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *state
	return &copied, nil
}

// Save stores a copy of the state.
func (s *MemoryStore) Save(ctx context.Context, sessionID string, state *State) error {
	state.UpdatedAt = time.Now().UTC()

	copied := *state

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = &copied

	return nil
}

// Delete removes the state, tolerating missing sessions.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)

	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// PruneIdle removes sessions untouched for longer than maxIdle and reports how
// many were dropped. Redis-backed deployments rely on TTLs instead.
func (s *MemoryStore) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, state := range s.states {
		if state.UpdatedAt.Before(cutoff) {
			delete(s.states, id)
			pruned++
		}
	}

	return pruned
}
