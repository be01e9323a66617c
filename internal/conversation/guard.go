package conversation

import (
	"sync"

	"github.com/Nickdtt/ia-crm/pkg/metrics"
)

// guard serializes turns per session: a second message for the same session
// blocks until the previous turn finishes, while distinct sessions proceed
// fully in parallel.
type guard struct {
	mu       sync.Mutex
	sessions map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newGuard() *guard {
	return &guard{sessions: make(map[string]*sessionLock)}
}

// acquire blocks until the session's lock is free and returns the release
// function. The lock entry is dropped once no turn references it.
func (g *guard) acquire(sessionID string) func() {
	g.mu.Lock()
	lock, ok := g.sessions[sessionID]
	if !ok {
		lock = &sessionLock{}
		g.sessions[sessionID] = lock
	}
	lock.refs++
	metrics.SetActiveSessions(len(g.sessions))
	g.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		g.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(g.sessions, sessionID)
		}
		metrics.SetActiveSessions(len(g.sessions))
		g.mu.Unlock()
	}
}
