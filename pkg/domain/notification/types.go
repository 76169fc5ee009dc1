// Package notification defines the domain model for the prioritization core:
// the inbound Event, the caller-facing Decision envelope, matching Rules, and
// the per-evaluation AuditRecord.
//
// Types here are plain data. Classification lives in internal/ engines; this
// package only carries values and applies defaults.
package notification

import (
	"time"
)

// Priority is the caller-supplied urgency hint.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Channel is the delivery medium the caller intends to use.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in-app"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelPush, ChannelEmail, ChannelSMS, ChannelInApp:
		return true
	}
	return false
}

// Outcome is the terminal classification of one evaluation.
type Outcome string

const (
	OutcomeNow   Outcome = "NOW"   // dispatch immediately
	OutcomeLater Outcome = "LATER" // defer to ScheduleAt
	OutcomeNever Outcome = "NEVER" // suppress
)

// Event is the single input to Evaluate. UserID and EventType are required;
// everything else defaults via ApplyDefaults.
type Event struct {
	EventID      string         `json:"event_id,omitempty"`
	UserID       string         `json:"user_id"`
	EventType    string         `json:"event_type"`
	Message      string         `json:"message,omitempty"`
	Source       string         `json:"source,omitempty"`
	PriorityHint Priority       `json:"priority_hint,omitempty"`
	Channel      Channel        `json:"channel,omitempty"`
	Timestamp    time.Time      `json:"timestamp,omitempty"`
	DedupeKey    string         `json:"dedupe_key,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SourceUnknown is substituted when the caller omits Source.
const SourceUnknown = "unknown"

// ApplyDefaults fills optional fields in place: source "unknown", priority
// MEDIUM, channel push, timestamp now. Unknown enum values are preserved so
// the boundary validator can reject them.
func (e *Event) ApplyDefaults(now time.Time) {
	if e.Source == "" {
		e.Source = SourceUnknown
	}
	if e.PriorityHint == "" {
		e.PriorityHint = PriorityMedium
	}
	if e.Channel == "" {
		e.Channel = ChannelPush
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
}

// Expired reports whether the event carries a past expires_at.
func (e *Event) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// PromoEventTypes are the event types treated as promotional traffic for
// dedup TTLs and the promo fatigue counter.
var PromoEventTypes = map[string]bool{
	"promotion":       true,
	"low_value_promo": true,
}

// IsPromo reports whether the event type counts as promotional.
func (e *Event) IsPromo() bool { return PromoEventTypes[e.EventType] }

// Decision is the caller-facing result envelope.
//
// Invariant: ScheduleAt is non-nil iff Outcome is LATER, except when the
// failsafe synthesized a NOW (ScheduleAt stays nil there too).
type Decision struct {
	Outcome    Outcome    `json:"decision"`
	Score      int        `json:"score"`
	Reason     string     `json:"reason"`
	ScheduleAt *time.Time `json:"schedule_at,omitempty"`
	AuditID    string     `json:"audit_id"`
}
