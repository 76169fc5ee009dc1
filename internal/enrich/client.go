// Package enrich fetches the AI relevance adjustment for an event.
//
// The call is hard-capped at 200ms. Timeouts, transport faults, and an open
// circuit all surface as errors that the orchestrator converts to a SKIPPED
// stage with adjustment 0; enrichment never blocks or fails an evaluation.
//
// With no endpoint configured, a deterministic-ish mock supplies adjustments
// from a per-event-type base plus bounded noise.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"triage/pkg/clock"
	"triage/pkg/domain/notification"
)

const (
	// Deadline is the hard cap on one enrichment fetch.
	Deadline = 200 * time.Millisecond

	// MinAdjustment and MaxAdjustment bound the returned value.
	MinAdjustment = -10
	MaxAdjustment = 15
)

var mockBases = map[string]int{
	"security_alert":  12,
	"direct_message":  10,
	"payment_alert":   11,
	"reminder":        8,
	"system_update":   2,
	"promotion":       -5,
	"low_value_promo": -8,
}

// Client fetches score adjustments from the optional AI endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	clk      clock.Clock
	log      *zap.Logger
	noise    func(n int) int // injectable for deterministic tests
}

// NewClient builds a client. An empty endpoint selects the mock.
func NewClient(endpoint string, clk clock.Clock, log *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: Deadline},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ai-enrichment",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("ai breaker state change",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		clk:   clk,
		log:   log,
		noise: rand.Intn,
	}
}

type adjustmentRequest struct {
	UserID    string `json:"user_id"`
	EventType string `json:"event_type"`
	Channel   string `json:"channel"`
	Source    string `json:"source"`
	HourOfDay int    `json:"hour_of_day"`
}

type adjustmentResponse struct {
	ScoreAdjustment int `json:"score_adjustment"`
}

// Adjustment returns the clamped score adjustment for the event. The error
// is soft: callers use adjustment 0 and annotate the stage SKIPPED.
func (c *Client) Adjustment(ctx context.Context, e *notification.Event) (int, error) {
	if c.endpoint == "" {
		return c.mock(e), nil
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, e)
	})
	if err != nil {
		return 0, err
	}
	return clampAdjustment(out.(int)), nil
}

func (c *Client) fetch(ctx context.Context, e *notification.Event) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()

	body, err := json.Marshal(adjustmentRequest{
		UserID:    e.UserID,
		EventType: e.EventType,
		Channel:   string(e.Channel),
		Source:    e.Source,
		HourOfDay: c.clk.Now().Hour(),
	})
	if err != nil {
		return 0, fmt.Errorf("ai request encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("ai request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ai fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ai fetch: unexpected status %d", resp.StatusCode)
	}

	var parsed adjustmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("ai response decode: %w", err)
	}
	return parsed.ScoreAdjustment, nil
}

// mock returns the per-type base plus uniform noise in [-3, +2], clamped.
func (c *Client) mock(e *notification.Event) int {
	base := mockBases[e.EventType]
	return clampAdjustment(base + c.noise(6) - 3)
}

func clampAdjustment(v int) int {
	if v < MinAdjustment {
		return MinAdjustment
	}
	if v > MaxAdjustment {
		return MaxAdjustment
	}
	return v
}
