package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

const keyPrefix = "scoring:featured:"

// FeaturedCache implements repository.FeaturedCache using Redis. Each
// (limit, debug) combination is stored under its own key.
type FeaturedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFeaturedCache creates a new Redis-backed featured listing cache.
func NewFeaturedCache(client *redis.Client, ttl time.Duration) *FeaturedCache {
	return &FeaturedCache{
		client: client,
		ttl:    ttl,
	}
}

func cacheKey(limit int, debug bool) string {
	return fmt.Sprintf("%slimit=%d:debug=%t", keyPrefix, limit, debug)
}

// Get returns the cached listing, or nil when nothing is cached.
func (c *FeaturedCache) Get(ctx context.Context, limit int, debug bool) (*domain.FeaturedList, error) {
	data, err := c.client.Get(ctx, cacheKey(limit, debug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get featured list: %w", err)
	}

	var list domain.FeaturedList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unmarshal featured list: %w", err)
	}
	return &list, nil
}

// Set stores a listing with the configured TTL.
func (c *FeaturedCache) Set(ctx context.Context, limit int, debug bool, list *domain.FeaturedList) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal featured list: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(limit, debug), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set featured list: %w", err)
	}
	return nil
}

// Invalidate deletes every cached listing.
func (c *FeaturedCache) Invalidate(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan featured keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del featured keys: %w", err)
	}
	return nil
}
