package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage keys used in AuditRecord.Stages. Each evaluation records one
// diagnostic string per stage it reached; StageFailsafe appears only when the
// failsafe envelope fired.
const (
	StageExpiry   = "expiry"
	StageDedup    = "dedup"
	StageRules    = "rules"
	StageDND      = "dnd"
	StageScorer   = "scorer"
	StageFatigue  = "fatigue"
	StageAI       = "ai"
	StageConflict = "conflict"
	StageDecision = "decision"
	StageFailsafe = "failsafe"
)

// AuditRecord is the append-only trace of one Evaluate call. Exactly one is
// written per evaluation, before Evaluate returns, even when the failsafe
// synthesized the decision.
type AuditRecord struct {
	AuditID      string            `json:"audit_id"`
	EventID      string            `json:"event_id,omitempty"`
	UserID       string            `json:"user_id"`
	EventType    string            `json:"event_type"`
	Decision     Outcome           `json:"decision"`
	Score        int               `json:"score"`
	Reason       string            `json:"reason"`
	Stages       map[string]string `json:"stages"`
	RulesMatched []string          `json:"rules_matched,omitempty"`
	ScheduleAt   *time.Time        `json:"schedule_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewAuditID returns an identifier of the form "aud_" + 8 hex chars drawn
// from a UUID.
func NewAuditID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "aud_" + raw[:8]
}
