package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the Store port.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-configured client. The caller owns the client's
// lifecycle; a down Redis surfaces as per-operation errors, not at
// construction.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

var _ Store = (*Redis)(nil)

// Get returns the value at key, mapping redis.Nil to ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return val, nil
}

// Set writes value with a TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// ZAdd inserts member with score.
func (r *Redis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("kv zadd %s: %w", key, err)
	}
	return nil
}

// ZRangeAll returns all members in score order.
func (r *Redis) ZRangeAll(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("kv zrange %s: %w", key, err)
	}
	return members, nil
}

// ZCountByScore counts members with score in [min, max].
func (r *Redis) ZCountByScore(ctx context.Context, key string, min, max float64) (int64, error) {
	n, err := r.client.ZCount(ctx, key, formatScore(min), formatScore(max)).Result()
	if err != nil {
		return 0, fmt.Errorf("kv zcount %s: %w", key, err)
	}
	return n, nil
}

// ZRemoveByScore deletes members with score in [min, max].
func (r *Redis) ZRemoveByScore(ctx context.Context, key string, min, max float64) error {
	if err := r.client.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err(); err != nil {
		return fmt.Errorf("kv zremrangebyscore %s: %w", key, err)
	}
	return nil
}

// Expire sets the key's TTL.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("kv expire %s: %w", key, err)
	}
	return nil
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
