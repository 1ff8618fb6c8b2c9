package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps redis.Client. Reads fail safe as misses; writes report
// redis errors and leave it to the caller whether they matter.
type Client struct {
	client *redis.Client
}

// New wraps an existing redis client. A nil rdb gives a client that always misses.
func New(rdb *redis.Client) *Client {
	return &Client{client: rdb}
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil or unreachable: behave like a miss
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL. A nil client is a no-op.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key. A nil client is a no-op.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// GetJSON decodes a cached value into v. It reports false on a miss.
func (c *Client) GetJSON(ctx context.Context, key string, v any) bool {
	b, _ := c.Get(ctx, key)
	if b == nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// SetJSON caches v as JSON. A failed write only costs a later miss.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}
