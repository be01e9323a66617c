package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type bucket struct {
	requests []time.Time
}

// MemoryLimiter is the in-process fallback used when Redis is unavailable.
// Counts are per replica, so the effective limit should be stricter than the
// shared one.
type MemoryLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	log     *slog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an in-memory limiter.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		log:     log,
	}
}

// Check enforces a sliding-window limit for the key.
func (m *MemoryLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, ok := m.buckets[key]
	if !ok {
		bkt = &bucket{requests: make([]time.Time, 0, 8)}
		m.buckets[key] = bkt
	}

	bkt.requests = keepRecent(bkt.requests, windowStart)
	count := len(bkt.requests)

	allowed := count < limit
	if allowed {
		bkt.requests = append(bkt.requests, now)
		count++
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   windowStart.Add(window),
	}

	if !allowed {
		return result, ErrLimitExceeded
	}

	return result, nil
}

// Cleanup removes buckets idle for longer than maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, bkt := range m.buckets {
		if len(bkt.requests) == 0 || bkt.requests[len(bkt.requests)-1].Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

func keepRecent(reqs []time.Time, windowStart time.Time) []time.Time {
	firstIdx := 0
	for firstIdx < len(reqs) && reqs[firstIdx].Before(windowStart) {
		firstIdx++
	}

	switch {
	case firstIdx == 0:
		return reqs
	case firstIdx >= len(reqs):
		return reqs[:0]
	default:
		copy(reqs, reqs[firstIdx:])
		return reqs[:len(reqs)-firstIdx]
	}
}
