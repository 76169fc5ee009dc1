// Package scoring computes the composite signal score.
//
// CRITICAL: Pure table arithmetic. Deterministic. No side effects.
// Base is bounded to [0, 75]; the final score to [0, 100].
package scoring

import (
	"time"

	"triage/pkg/domain/notification"
)

// BaseMax caps the pre-adjustment composite.
const BaseMax = 75

var priorityWeights = map[notification.Priority]int{
	notification.PriorityCritical: 40,
	notification.PriorityHigh:     25,
	notification.PriorityMedium:   15,
	notification.PriorityLow:      5,
}

const priorityDefault = 10

var eventTypeWeights = map[string]int{
	"security_alert":  30,
	"direct_message":  25,
	"payment_alert":   28,
	"reminder":        20,
	"system_alert":    18,
	"system_update":   10,
	"promotion":       5,
	"low_value_promo": 2,
	"digest":          3,
}

const eventTypeDefault = 5

var channelWeights = map[notification.Channel]int{
	notification.ChannelSMS:   10,
	notification.ChannelPush:  8,
	notification.ChannelEmail: 5,
	notification.ChannelInApp: 3,
}

const channelDefault = 3

// Base combines priority, event-type, channel, and freshness weights, capped
// at BaseMax.
func Base(e *notification.Event, now time.Time) int {
	score := weight(priorityWeights, e.PriorityHint, priorityDefault) +
		weight(eventTypeWeights, e.EventType, eventTypeDefault) +
		weight(channelWeights, e.Channel, channelDefault) +
		freshness(e.Timestamp, now)
	if score > BaseMax {
		score = BaseMax
	}
	return score
}

// freshness rewards recent events by age bucket. A missing timestamp scores
// the middle bucket.
func freshness(ts, now time.Time) int {
	if ts.IsZero() {
		return 5
	}
	age := now.Sub(ts)
	switch {
	case age < time.Minute:
		return 10
	case age < 5*time.Minute:
		return 8
	case age < 15*time.Minute:
		return 5
	case age < time.Hour:
		return 2
	default:
		return 0
	}
}

// Final applies the fatigue penalty and AI adjustment, clamped to [0, 100].
func Final(base, fatiguePenalty, aiAdjustment int) int {
	score := base - fatiguePenalty + aiAdjustment
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func weight[K comparable](table map[K]int, key K, def int) int {
	if w, ok := table[key]; ok {
		return w
	}
	return def
}
