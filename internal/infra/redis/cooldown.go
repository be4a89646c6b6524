package redis

import (
	"context"
	"fmt"
	"time"
)

// Cooldown implements notify.Cooldown with SET NX and a TTL, so the window
// is shared across restarts and replicas.
type Cooldown struct {
	c *Client
}

// NewCooldown creates a Redis-backed alert cooldown.
func NewCooldown(client *Client) *Cooldown {
	return &Cooldown{c: client}
}

// Acquire returns true if key was not in cooldown and starts a new window.
func (cd *Cooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := cd.c.rdb.SetNX(ctx, cd.c.cooldownKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// Release clears the cooldown for key.
func (cd *Cooldown) Release(ctx context.Context, key string) error {
	return cd.c.rdb.Del(ctx, cd.c.cooldownKey(key)).Err()
}
