package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"triage/pkg/clock"
	"triage/pkg/domain/notification"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newMockClient(noise int) *Client {
	c := NewClient("", clock.NewFixed(testNow), zap.NewNop())
	c.noise = func(n int) int { return noise + 3 } // noise(6)-3 == noise
	return c
}

func TestMockBasesPerEventType(t *testing.T) {
	cases := []struct {
		eventType string
		want      int
	}{
		{"security_alert", 12},
		{"direct_message", 10},
		{"payment_alert", 11},
		{"reminder", 8},
		{"system_update", 2},
		{"promotion", -5},
		{"low_value_promo", -8},
		{"unmapped_type", 0},
	}
	for _, tc := range cases {
		c := newMockClient(0)
		adj, err := c.Adjustment(context.Background(), &notification.Event{EventType: tc.eventType})
		require.NoError(t, err, tc.eventType)
		assert.Equal(t, tc.want, adj, tc.eventType)
	}
}

func TestMockClampsToBounds(t *testing.T) {
	// low_value_promo base -8 with minimum noise -3 would be -11.
	c := newMockClient(-3)
	adj, err := c.Adjustment(context.Background(), &notification.Event{EventType: "low_value_promo"})
	require.NoError(t, err)
	assert.Equal(t, MinAdjustment, adj)
}

func TestMockNoiseStaysInRange(t *testing.T) {
	c := NewClient("", clock.NewFixed(testNow), zap.NewNop())
	for i := 0; i < 200; i++ {
		adj, err := c.Adjustment(context.Background(), &notification.Event{EventType: "reminder"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, adj, 8-3)
		assert.LessOrEqual(t, adj, 8+2)
	}
}

func TestHTTPEndpointRequestAndResponse(t *testing.T) {
	var got adjustmentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]int{"score_adjustment": 7})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, clock.NewFixed(testNow), zap.NewNop())
	adj, err := c.Adjustment(context.Background(), &notification.Event{
		UserID:    "u1",
		EventType: "reminder",
		Channel:   notification.ChannelPush,
		Source:    "calendar-svc",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, adj)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "reminder", got.EventType)
	assert.Equal(t, 10, got.HourOfDay)
}

func TestHTTPResponseClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"score_adjustment": 99})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, clock.NewFixed(testNow), zap.NewNop())
	adj, err := c.Adjustment(context.Background(), &notification.Event{EventType: "reminder"})
	require.NoError(t, err)
	assert.Equal(t, MaxAdjustment, adj)
}

func TestSlowEndpointTimesOutWithinDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * Deadline)
		_ = json.NewEncoder(w).Encode(map[string]int{"score_adjustment": 5})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, clock.NewFixed(testNow), zap.NewNop())
	start := time.Now()
	adj, err := c.Adjustment(context.Background(), &notification.Event{EventType: "reminder"})
	require.Error(t, err)
	assert.Equal(t, 0, adj)
	assert.Less(t, time.Since(start), 2*Deadline)
}

func TestNon200StatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, clock.NewFixed(testNow), zap.NewNop())
	_, err := c.Adjustment(context.Background(), &notification.Event{EventType: "reminder"})
	assert.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, clock.NewFixed(testNow), zap.NewNop())
	for i := 0; i < 10; i++ {
		_, err := c.Adjustment(context.Background(), &notification.Event{EventType: "reminder"})
		require.Error(t, err)
	}
	// Once open, calls fail fast without hitting the server; still soft.
	_, err := c.Adjustment(context.Background(), &notification.Event{EventType: "reminder"})
	assert.Error(t, err)
}
