package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:chat:"

// RedisLimiter implements Limiter with a sliding window over a sorted set,
// shared across replicas.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed Limiter.
func NewRedisLimiter(client *redis.Client, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
	}
}

// Check evaluates the sliding-window limit for the key. The inbound message is
// recorded before counting, so a rejected message still consumes budget.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := time.Now()
	if limit <= 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: now.Add(window)}, nil
	}

	count, err := l.slide(ctx, keyPrefix+key, now, window)
	if err != nil {
		l.log.Error("rate limiter check failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Remaining: max(limit-int(count), 0),
		ResetAt:   now,
	}, nil
}

// slide trims entries older than the window, records the current hit and
// returns the window population, all in one transaction.
func (l *RedisLimiter) slide(ctx context.Context, redisKey string, now time.Time, window time.Duration) (int64, error) {
	cutoff := now.Add(-window).UnixMilli()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return countCmd.Result()
}
