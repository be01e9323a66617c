// Package leadcache provides Redis-backed caching for lead lookups by
// contact identifier, used by the greeting flow on every new session.
package leadcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Nickdtt/ia-crm/internal/domain"
)

// DefaultTTL is how long a cached lead profile stays fresh.
const DefaultTTL = 15 * time.Minute

// Cache is nil-safe: a nil cache (or nil client) behaves as a permanent miss,
// so callers can wire it optionally.
type Cache struct {
	client *redis.Client
}

// NewCache constructs a lead cache backed by the provided Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get fetches a cached lead by phone if it exists.
func (c *Cache) Get(ctx context.Context, phone string) (*domain.Lead, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached lead: %w", err)
	}

	var lead domain.Lead
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, fmt.Errorf("decode cached lead: %w", err)
	}

	return &lead, nil
}

// Set stores the lead in cache for the provided TTL.
func (c *Cache) Set(ctx context.Context, phone string, lead *domain.Lead, ttl time.Duration) error {
	if c == nil || c.client == nil || lead == nil {
		return nil
	}

	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(phone), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set cached lead: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry if it exists.
func (c *Cache) Invalidate(ctx context.Context, phone string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(phone)).Err(); err != nil {
		return fmt.Errorf("delete cached lead: %w", err)
	}

	return nil
}

func cacheKey(phone string) string {
	return "lead:phone:" + phone
}
