// Package conflict arbitrates between urgency and fatigue after the final
// score is known but before the threshold boundary applies.
//
// Design intent: important traffic that collides with fatigue is deferred,
// never dropped; unimportant traffic that happens to score high under
// fatigue is also deferred rather than sent.
//
// CRITICAL: Pure function of (priority, fatigue level, source, final score).
// Rules are applied in order; first match wins.
package conflict

import (
	"fmt"
	"time"

	"triage/internal/fatigue"
	"triage/pkg/domain/notification"
)

// ShortDefer is the deferral applied when a conflict resolves to LATER.
const ShortDefer = 15 * time.Minute

// highScoreFloor is the final score at which even LOW-priority traffic under
// MAXED fatigue is deferred instead of dropped.
const highScoreFloor = 60

// NoisySources are senders whose HIGH-priority traffic is not trusted enough
// to punch through heavy fatigue. Static input; not learned.
var NoisySources = map[string]bool{
	"marketing-svc":    true,
	"promo-service":    true,
	"analytics-alerts": true,
	"noisy-svc":        true,
	"bulk-sender":      true,
}

// Resolution is the arbitration outcome. When Resolved is false the decision
// boundary applies instead.
type Resolution struct {
	Resolved bool
	Outcome  notification.Outcome
	Reason   string
}

// Resolve applies the arbitration table in order, first match wins:
//
//  1. HIGH + MAXED                  => LATER (short defer)
//  2. HIGH + HIGH + noisy source    => LATER (short defer)
//  3. MEDIUM + MAXED                => NEVER
//  4. LOW + score >= 60 + MAXED     => LATER (short defer)
func Resolve(priority notification.Priority, level fatigue.Level, source string, finalScore int) Resolution {
	switch {
	case priority == notification.PriorityHigh && level == fatigue.LevelMaxed:
		return Resolution{
			Resolved: true,
			Outcome:  notification.OutcomeLater,
			Reason:   "Conflict: HIGH priority vs MAXED fatigue; deferred briefly instead of dropped",
		}
	case priority == notification.PriorityHigh && level == fatigue.LevelHigh && NoisySources[source]:
		return Resolution{
			Resolved: true,
			Outcome:  notification.OutcomeLater,
			Reason:   fmt.Sprintf("Conflict: HIGH priority from noisy source %q under HIGH fatigue; deferred briefly", source),
		}
	case priority == notification.PriorityMedium && level == fatigue.LevelMaxed:
		return Resolution{
			Resolved: true,
			Outcome:  notification.OutcomeNever,
			Reason:   "Conflict: MEDIUM priority under MAXED fatigue; suppressed",
		}
	case priority == notification.PriorityLow && finalScore >= highScoreFloor && level == fatigue.LevelMaxed:
		return Resolution{
			Resolved: true,
			Outcome:  notification.OutcomeLater,
			Reason:   fmt.Sprintf("Conflict: LOW priority scoring %d under MAXED fatigue; deferred briefly", finalScore),
		}
	}
	return Resolution{}
}
