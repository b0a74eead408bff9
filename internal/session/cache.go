// Package session caches recently verified session tokens in Redis so a
// hot client does not reload and rewrite its credential blob on every
// request. Entries are short-lived; the credential blob in postgres
// stays the source of truth for the sliding five-day window.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a positive-only token-verification cache keyed by user id
// and token digest.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache connects to Redis at redisURL. Entries live for ttl; the ttl
// bounds how long a revoked token keeps verifying, so it must stay far
// below the token window.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewCacheWithClient(client, ttl), nil
}

// NewCacheWithClient wraps an existing Redis client.
func NewCacheWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		prefix: "session:",
	}
}

func (c *Cache) key(userID int64, digest string) string {
	return fmt.Sprintf("%s%d:%s", c.prefix, userID, digest)
}

// Remember records that the digest verified for the user.
func (c *Cache) Remember(ctx context.Context, userID int64, digest string) error {
	if err := c.client.Set(ctx, c.key(userID, digest), "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("cache token: %w", err)
	}
	return nil
}

// Known reports whether the digest verified for the user within the
// cache ttl. A cache miss and a cache failure look the same: the caller
// falls through to the credential blob.
func (c *Cache) Known(ctx context.Context, userID int64, digest string) bool {
	err := c.client.Get(ctx, c.key(userID, digest)).Err()
	return err == nil
}

// Forget drops every cached digest for the user. Called whenever the
// credential blob is rewritten for a reason other than a last-used
// refresh.
func (c *Cache) Forget(ctx context.Context, userID int64) error {
	pattern := fmt.Sprintf("%s%d:*", c.prefix, userID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("drop cached token: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached tokens: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
