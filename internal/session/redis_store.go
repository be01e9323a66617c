package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	appredis "github.com/Nickdtt/ia-crm/pkg/redis"
)

const sessionKeyPattern = "session:state:%s"

// DefaultTTL bounds how long an idle conversation survives in Redis.
const DefaultTTL = 24 * time.Hour

// RedisStore persists conversation state as JSON blobs in Redis.
type RedisStore struct {
	kv  appredis.KV
	ttl time.Duration
	log *slog.Logger
}

// NewRedisStore initializes a Redis-backed Store implementation.
func NewRedisStore(kv appredis.KV, ttl time.Duration, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{
		kv:  kv,
		ttl: ttl,
		log: log,
	}
}

// Load returns the stored state or ErrNotFound when absent.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*State, error) {
	key := sessionKey(sessionID)

	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}

		s.log.Error("failed to get session state from redis", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("get session state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		s.log.Error("failed to decode session state", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}

	return &state, nil
}

// Save persists the state with the configured TTL.
func (s *RedisStore) Save(ctx context.Context, sessionID string, state *State) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		s.log.Error("failed to encode session state", "session_id", sessionID, "error", err)
		return fmt.Errorf("marshal session state: %w", err)
	}

	if err := s.kv.Set(ctx, sessionKey(sessionID), data, s.ttl); err != nil {
		s.log.Error("failed to save session state in redis", "session_id", sessionID, "error", err)
		return fmt.Errorf("save session state: %w", err)
	}

	return nil
}

// Delete removes the stored state for the session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.kv.Delete(ctx, sessionKey(sessionID)); err != nil {
		s.log.Error("failed to delete session state", "session_id", sessionID, "error", err)
		return fmt.Errorf("delete session state: %w", err)
	}

	return nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf(sessionKeyPattern, sessionID)
}
