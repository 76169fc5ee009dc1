// Package rules provides condition matching over hot-reloadable rules.
//
// The snapshot is re-read from the backing file every 30 seconds and on
// filesystem change events. A failed read or parse keeps the last good
// snapshot in effect; readers always see a complete snapshot, never a
// partial one.
package rules

import (
	"sort"

	"triage/pkg/domain/notification"
)

// Match returns the enabled rules whose conditions all accept the event,
// sorted by rule priority descending, stable on ties.
func Match(e *notification.Event, rules []notification.Rule) []notification.Rule {
	var matched []notification.Rule
	for i := range rules {
		if rules[i].Matches(e) {
			matched = append(matched, rules[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

// FirstSuppress returns the highest-priority matched rule with action
// SUPPRESS, if any.
func FirstSuppress(matched []notification.Rule) (notification.Rule, bool) {
	for _, r := range matched {
		if r.Action == notification.ActionSuppress {
			return r, true
		}
	}
	return notification.Rule{}, false
}
