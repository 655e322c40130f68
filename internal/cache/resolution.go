// Package cache keeps finished resolutions in Redis so repeated lookups of the
// same address skip the search engine.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

const keyPrefix = "resolution:"

// scanBatch is the COUNT hint used while invalidating.
const scanBatch = 500

// ResolutionCache implements service.ResolutionCache using Redis.
type ResolutionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResolutionCache creates a Redis-backed cache whose entries expire after ttl.
func NewResolutionCache(client *redis.Client, ttl time.Duration) *ResolutionCache {
	return &ResolutionCache{
		client: client,
		ttl:    ttl,
	}
}

// Key derives the cache key of a normalized address.
func Key(normalized domain.Address) string {
	data, _ := json.Marshal(normalized)
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached resolution of normalized, if any.
func (c *ResolutionCache) Get(ctx context.Context, normalized domain.Address) (domain.Resolution, bool, error) {
	data, err := c.client.Get(ctx, Key(normalized)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Resolution{}, false, nil
		}
		return domain.Resolution{}, false, fmt.Errorf("redis get resolution: %w", err)
	}

	var res domain.Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.Resolution{}, false, fmt.Errorf("unmarshal resolution: %w", err)
	}
	return res, true, nil
}

// Set stores res under normalized with the configured TTL.
func (c *ResolutionCache) Set(ctx context.Context, normalized domain.Address, res domain.Resolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}

	if err := c.client.Set(ctx, Key(normalized), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set resolution: %w", err)
	}
	return nil
}

// Invalidate drops every cached resolution. It runs after the reference
// corpus changes.
func (c *ResolutionCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()

	keys := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del resolutions: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan resolutions: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del resolutions: %w", err)
		}
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *ResolutionCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
