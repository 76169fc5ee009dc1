// Package kv defines the narrow key-value port the engines consume and its
// Redis adapter. The surface is exactly what dedup and fatigue need: string
// get/set with TTL plus sorted-set range operations keyed by millisecond
// scores.
//
// The adapter reports faults as errors and takes no policy position. Fail-open
// on read and swallow-on-write are decided by the consuming engine.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent. Absence is not a
// fault; engines distinguish it from infrastructure errors.
var ErrNotFound = errors.New("kv: key not found")

// Store is the port the dedup and fatigue engines depend on.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value at key with a TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// ZAdd inserts member with the given score into the sorted set at key.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRangeAll returns every member of the sorted set at key in score order.
	ZRangeAll(ctx context.Context, key string) ([]string, error)

	// ZCountByScore counts members with score in [min, max].
	ZCountByScore(ctx context.Context, key string, min, max float64) (int64, error)

	// ZRemoveByScore deletes members with score in [min, max].
	ZRemoveByScore(ctx context.Context, key string, min, max float64) error

	// Expire sets the TTL of key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
