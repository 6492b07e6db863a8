package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis for use as the conversation read-side cache when
// REDIS_URL is configured.
type Client struct {
	client *redis.Client
}

// NewClient connects to redis and verifies the connection
func NewClient(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{client: client}, nil
}

// Set stores a value with the given TTL
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.client.Set(ctx, key, value, ttl)
}

// Get retrieves a value; the second return reports whether the key was found
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Delete removes a key
func (c *Client) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	return c.client.Close()
}
