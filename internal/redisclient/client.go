package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyCooldown = "cooldown:%s"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// TryCooldown stamps key for ttl if it is not already stamped.
// Returns false while a previous stamp is still live. The stamp is shared by
// every instance pointed at the same Redis.
func (c *Client) TryCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf(keyCooldown, key), time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown setnx failed: %w", err)
	}
	return ok, nil
}
