// Package cache keeps public verification results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "certdesk:verify:"

func Key(folio string) string {
	return keyPrefix + folio
}

type VerifyCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return client, nil
}

func NewVerifyCache(client redis.Cmdable, ttl time.Duration) *VerifyCache {
	return &VerifyCache{client: client, ttl: ttl}
}

// Get decodes the cached value for folio into dst. A miss is (false, nil).
func (c *VerifyCache) Get(ctx context.Context, folio string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, Key(folio)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "verify cache get")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, errors.Wrap(err, "verify cache decode")
	}
	return true, nil
}

func (c *VerifyCache) Set(ctx context.Context, folio string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "verify cache encode")
	}
	if err := c.client.Set(ctx, Key(folio), raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "verify cache set")
	}
	return nil
}

func (c *VerifyCache) Invalidate(ctx context.Context, folio string) error {
	if err := c.client.Del(ctx, Key(folio)).Err(); err != nil {
		return errors.Wrap(err, "verify cache delete")
	}
	return nil
}
