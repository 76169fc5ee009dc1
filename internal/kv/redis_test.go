package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), srv
}

func TestGetSetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dedup:fp:abc", "1", 10*time.Minute))

	val, err := store.Get(ctx, "dedup:fp:abc")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "dedup:fp:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetAppliesTTL(t *testing.T) {
	store, srv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dedup:key:k1", "1", 600*time.Second))

	srv.FastForward(601 * time.Second)
	_, err := store.Get(ctx, "dedup:key:k1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSortedSetWindowOps(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := "freq:u1:total"

	base := float64(1_700_000_000_000)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.ZAdd(ctx, key, base+float64(i*1000), "m"+string(rune('a'+i))))
	}

	n, err := store.ZCountByScore(ctx, key, base, base+4000)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// Prune the two oldest entries.
	require.NoError(t, store.ZRemoveByScore(ctx, key, 0, base+1000))

	n, err = store.ZCountByScore(ctx, key, 0, base+4000)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	members, err := store.ZRangeAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"mc", "md", "me"}, members)
}

func TestExpireOnSortedSet(t *testing.T) {
	store, srv := newTestStore(t)
	ctx := context.Background()
	key := "sim:u1:reminder"

	require.NoError(t, store.ZAdd(ctx, key, 1000, "12345"))
	require.NoError(t, store.Expire(ctx, key, 600*time.Second))

	srv.FastForward(601 * time.Second)
	members, err := store.ZRangeAll(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestOperationsSurfaceFaultsWhenServerDown(t *testing.T) {
	store, srv := newTestStore(t)
	srv.Close()

	_, err := store.Get(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
