package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ProcessedRepo implements storage.ProcessedRepository on a sorted set.
// Scores come from a counter so ZRANGE order is insertion order.
type ProcessedRepo struct {
	c *Client
}

// NewProcessedRepo creates a Redis-backed processed hash repository.
func NewProcessedRepo(client *Client) *ProcessedRepo {
	return &ProcessedRepo{c: client}
}

// Load returns all hashes, oldest first.
func (r *ProcessedRepo) Load(ctx context.Context) ([]string, error) {
	hashes, err := r.c.rdb.ZRange(ctx, r.c.processedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	return hashes, nil
}

// Append adds hashes after the newest entry, skipping known ones.
func (r *ProcessedRepo) Append(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}

	last, err := r.c.rdb.IncrBy(ctx, r.c.processedSeqKey(), int64(len(hashes))).Result()
	if err != nil {
		return fmt.Errorf("incrby failed: %w", err)
	}
	first := last - int64(len(hashes)) + 1

	members := make([]redis.Z, len(hashes))
	for i, h := range hashes {
		members[i] = redis.Z{Score: float64(first + int64(i)), Member: h}
	}
	if err := r.c.rdb.ZAddNX(ctx, r.c.processedKey(), members...).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// DeleteOldest removes the n lowest-scored hashes.
func (r *ProcessedRepo) DeleteOldest(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if err := r.c.rdb.ZRemRangeByRank(ctx, r.c.processedKey(), 0, int64(n-1)).Err(); err != nil {
		return fmt.Errorf("zremrangebyrank failed: %w", err)
	}
	return nil
}
