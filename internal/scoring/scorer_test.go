package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"triage/pkg/domain/notification"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestBaseComponents(t *testing.T) {
	e := &notification.Event{
		EventType:    "direct_message",
		PriorityHint: notification.PriorityHigh,
		Channel:      notification.ChannelPush,
		Timestamp:    now.Add(-30 * time.Second),
	}
	// 25 (HIGH) + 25 (direct_message) + 8 (push) + 10 (fresh) = 68
	assert.Equal(t, 68, Base(e, now))
}

func TestBaseCapsAt75(t *testing.T) {
	e := &notification.Event{
		EventType:    "security_alert",
		PriorityHint: notification.PriorityCritical,
		Channel:      notification.ChannelSMS,
		Timestamp:    now,
	}
	// 40 + 30 + 10 + 10 = 90, capped.
	assert.Equal(t, 75, Base(e, now))
}

func TestBaseDefaults(t *testing.T) {
	e := &notification.Event{
		EventType:    "something_unmapped",
		PriorityHint: notification.Priority("ODD"),
		Channel:      notification.Channel("fax"),
		Timestamp:    now.Add(-2 * time.Hour),
	}
	// 10 + 5 + 3 + 0 = 18
	assert.Equal(t, 18, Base(e, now))
}

func TestFreshnessBuckets(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want int
	}{
		{30 * time.Second, 10},
		{3 * time.Minute, 8},
		{10 * time.Minute, 5},
		{45 * time.Minute, 2},
		{3 * time.Hour, 0},
	}
	for _, tc := range cases {
		e := &notification.Event{
			EventType:    "digest",
			PriorityHint: notification.PriorityLow,
			Channel:      notification.ChannelInApp,
			Timestamp:    now.Add(-tc.age),
		}
		// 5 (LOW) + 3 (digest) + 3 (in-app) + freshness
		assert.Equal(t, 11+tc.want, Base(e, now), "age %v", tc.age)
	}
}

func TestMissingTimestampScoresMiddleBucket(t *testing.T) {
	e := &notification.Event{
		EventType:    "digest",
		PriorityHint: notification.PriorityLow,
		Channel:      notification.ChannelInApp,
	}
	assert.Equal(t, 11+5, Base(e, now))
}

func TestFinalClamps(t *testing.T) {
	assert.Equal(t, 0, Final(10, 30, -5))
	assert.Equal(t, 100, Final(75, 0, 30))
	assert.Equal(t, 50, Final(60, 15, 5))
}
