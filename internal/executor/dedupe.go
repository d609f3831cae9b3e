package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const executedKeyPrefix = "pricewatch:executed:"

// Deduper remembers which commands already ran.
type Deduper interface {
	Seen(ctx context.Context, commandID string) (bool, error)
	Mark(ctx context.Context, commandID string) error
}

// RedisDeduper stores executed command IDs with a TTL.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisDeduper creates a new Redis-backed deduper.
func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Seen reports whether commandID was marked.
func (d *RedisDeduper) Seen(ctx context.Context, commandID string) (bool, error) {
	n, err := d.client.Exists(ctx, executedKeyPrefix+commandID).Result()
	if err != nil {
		return false, fmt.Errorf("check executed %s: %w", commandID, err)
	}
	return n > 0, nil
}

// Mark records commandID as executed.
func (d *RedisDeduper) Mark(ctx context.Context, commandID string) error {
	if err := d.client.SetNX(ctx, executedKeyPrefix+commandID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err(); err != nil {
		return fmt.Errorf("mark executed %s: %w", commandID, err)
	}
	return nil
}
