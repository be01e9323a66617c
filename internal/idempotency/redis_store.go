package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Record is the stored state for one key.
type Record struct {
	Status   string
	Response []byte
}

// Store is the persistence surface the Manager requires.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}

// RedisStore persists records and locks in Redis.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore constructs the Redis-backed Store.
func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, lockKey(key), 1, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	result, err := s.client.HGetAll(ctx, recordKey(key)).Result()
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	responseData := []byte{}
	if encoded, ok := result["response"]; ok && encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &responseData); err != nil {
			s.log.Error("failed to decode idempotency response", slog.String("key", key), slog.Any("error", err))
			return nil, err
		}
	}

	return &Record{
		Status:   result["status"],
		Response: responseData,
	}, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	responseJSON, err := json.Marshal(record.Response)
	if err != nil {
		s.log.Error("failed to encode idempotency response", slog.String("key", key), slog.Any("error", err))
		return err
	}

	args := map[string]interface{}{
		"status":   record.Status,
		"response": string(responseJSON),
	}

	if err := s.client.HSet(ctx, recordKey(key), args).Err(); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	if err := s.client.Expire(ctx, recordKey(key), ttl).Err(); err != nil {
		s.log.Error("failed to set idempotency ttl", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockKey(key)).Err(); err != nil {
		s.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

// GenerateKey builds a deterministic key from the delivery's identifying parts
// (session id and client message id).
func GenerateKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func recordKey(key string) string {
	return "idempotency:chat:" + key
}

func lockKey(key string) string {
	return "idempotency:chat:" + key + ":lock"
}
