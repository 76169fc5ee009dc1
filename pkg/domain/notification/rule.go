package notification

// RuleAction is what a matched rule asks the pipeline to do.
//
// Only SUPPRESS short-circuits the pipeline today. DEFER, SEND_NOW and CAP
// are annotated in the audit record and composed with the DND/score/conflict
// stages instead.
// TODO: decide whether SEND_NOW should become a pre-score short-circuit; if
// so it belongs between the rules stage and the DND gate.
type RuleAction string

const (
	ActionDefer    RuleAction = "DEFER"
	ActionSuppress RuleAction = "SUPPRESS"
	ActionSendNow  RuleAction = "SEND_NOW"
	ActionCap      RuleAction = "CAP"
)

// MatchAny is the wildcard accepted in any condition field.
const MatchAny = "*"

// RuleCondition matches events field-by-field. An empty or "*" field matches
// any value.
type RuleCondition struct {
	EventType string `yaml:"event_type,omitempty" json:"event_type,omitempty"`
	Channel   string `yaml:"channel,omitempty" json:"channel,omitempty"`
	Source    string `yaml:"source,omitempty" json:"source,omitempty"`
	Priority  string `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// RateCap limits matches to Count per Window (Go duration string, e.g. "1h").
// Carried for CAP rules; currently annotation-only.
type RateCap struct {
	Count  int    `yaml:"count" json:"count"`
	Window string `yaml:"window" json:"window"`
}

// Rule is one hot-reloadable matching rule. Higher Priority wins ordering;
// disabled rules never match.
type Rule struct {
	RuleID    string        `yaml:"rule_id" json:"rule_id"`
	Condition RuleCondition `yaml:"condition" json:"condition"`
	Action    RuleAction    `yaml:"action" json:"action"`
	MaxPer    *RateCap      `yaml:"max_per,omitempty" json:"max_per,omitempty"`
	Priority  int           `yaml:"priority" json:"priority"`
	Enabled   bool          `yaml:"enabled" json:"enabled"`
}

// Matches reports whether every condition field accepts the event.
func (r *Rule) Matches(e *Event) bool {
	if !r.Enabled {
		return false
	}
	if !fieldMatches(r.Condition.EventType, e.EventType) {
		return false
	}
	if !fieldMatches(r.Condition.Channel, string(e.Channel)) {
		return false
	}
	if !fieldMatches(r.Condition.Source, e.Source) {
		return false
	}
	if !fieldMatches(r.Condition.Priority, string(e.PriorityHint)) {
		return false
	}
	return true
}

func fieldMatches(cond, value string) bool {
	return cond == "" || cond == MatchAny || cond == value
}
