package fatigue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"triage/internal/kv"
	"triage/pkg/clock"
	"triage/pkg/domain/notification"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestAccountant(t *testing.T) (*Accountant, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAccountant(kv.NewRedis(client), DefaultCaps(), clock.NewFixed(testNow), zap.NewNop()), srv
}

// seedTotal inserts n entries into the user's total counter within the hour.
func seedTotal(srv *miniredis.Miniredis, userID string, n int) {
	nowMS := testNow.UnixMilli()
	for i := 0; i < n; i++ {
		score := float64(nowMS - int64(i+1)*60_000)
		srv.ZAdd("freq:"+userID+":total", score, fmt.Sprintf("%d:reminder", int64(score)))
	}
}

func TestPenaltyCurve(t *testing.T) {
	cases := []struct {
		count   int
		penalty int
		level   Level
	}{
		{0, 0, LevelLow},
		{1, 0, LevelLow},
		{2, 5, LevelMedium},
		{3, 10, LevelMedium}, // 3/5 = 0.6 >= 0.5
		{4, 20, LevelHigh},   // 4/5 = 0.8
		{5, 30, LevelMaxed},
		{7, 30, LevelMaxed},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("count=%d", tc.count), func(t *testing.T) {
			acc, srv := newTestAccountant(t)
			seedTotal(srv, "u1", tc.count)

			as := acc.Assess(context.Background(), "u1", "svc")
			assert.Equal(t, tc.count, as.Total)
			assert.Equal(t, tc.penalty, as.Penalty)
			assert.Equal(t, tc.level, as.Level)
		})
	}
}

func TestEntriesOutsideWindowAreNotCounted(t *testing.T) {
	acc, srv := newTestAccountant(t)
	nowMS := testNow.UnixMilli()

	// Two inside the hour, three just outside.
	srv.ZAdd("freq:u1:total", float64(nowMS-10_000), "a")
	srv.ZAdd("freq:u1:total", float64(nowMS-20_000), "b")
	for i := 0; i < 3; i++ {
		srv.ZAdd("freq:u1:total", float64(nowMS-3_600_001-int64(i)), fmt.Sprintf("old%d", i))
	}

	as := acc.Assess(context.Background(), "u1", "svc")
	assert.Equal(t, 2, as.Total)
	assert.Equal(t, 5, as.Penalty)
}

func TestAssessFailsSoftToUnknown(t *testing.T) {
	acc, srv := newTestAccountant(t)
	srv.Close()

	as := acc.Assess(context.Background(), "u1", "svc")
	assert.Equal(t, 0, as.Total)
	assert.Equal(t, 0, as.Penalty)
	assert.Equal(t, LevelUnknown, as.Level)
}

func TestRecordWritesAllRelevantCounters(t *testing.T) {
	acc, srv := newTestAccountant(t)
	ctx := context.Background()

	acc.Record(ctx, &notification.Event{
		UserID:    "u1",
		EventType: "promotion",
		Source:    "promo-service",
	})

	for _, key := range []string{"freq:u1:total", "freq:u1:promo-service", "freq:u1:promo"} {
		members, err := srv.ZMembers(key)
		require.NoError(t, err, key)
		assert.Len(t, members, 1, key)
		assert.InDelta(t, (4 * time.Hour).Seconds(), srv.TTL(key).Seconds(), 1, key)
	}
}

func TestRecordSkipsPromoCounterForTransactional(t *testing.T) {
	acc, srv := newTestAccountant(t)

	acc.Record(context.Background(), &notification.Event{
		UserID:    "u1",
		EventType: "reminder",
		Source:    "calendar-svc",
	})

	assert.False(t, srv.Exists("freq:u1:promo"))
	assert.True(t, srv.Exists("freq:u1:total"))
}

func TestRecordPrunesSlidOutEntries(t *testing.T) {
	acc, srv := newTestAccountant(t)
	nowMS := testNow.UnixMilli()

	srv.ZAdd("freq:u1:total", float64(nowMS-3_700_000), "stale")

	acc.Record(context.Background(), &notification.Event{
		UserID:    "u1",
		EventType: "reminder",
		Source:    "calendar-svc",
	})

	members, err := srv.ZMembers("freq:u1:total")
	require.NoError(t, err)
	assert.NotContains(t, members, "stale")
}

func TestSourceAndPromoCapDiagnostics(t *testing.T) {
	acc, srv := newTestAccountant(t)
	nowMS := testNow.UnixMilli()

	srv.ZAdd("freq:u1:noisy-svc", float64(nowMS-1000), "a")
	srv.ZAdd("freq:u1:noisy-svc", float64(nowMS-2000), "b")
	srv.ZAdd("freq:u1:promo", float64(nowMS-3000), "c")

	as := acc.Assess(context.Background(), "u1", "noisy-svc")
	assert.True(t, as.SourceExceeded)
	assert.True(t, as.PromoExceeded)
}

func TestRecordSwallowsWriteFaults(t *testing.T) {
	acc, srv := newTestAccountant(t)
	srv.Close()

	assert.NotPanics(t, func() {
		acc.Record(context.Background(), &notification.Event{
			UserID:    "u1",
			EventType: "reminder",
			Source:    "svc",
		})
	})
}
