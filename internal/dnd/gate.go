// Package dnd implements the quiet-hours gate. The default window runs
// 23:00-08:00 in the evaluation clock's location; non-critical traffic inside
// the window is deferred to the next end-of-window boundary.
//
// CRITICAL: Pure clock math. No side effects.
package dnd

import (
	"fmt"
	"time"
)

// Gate holds the quiet-hours window as local wall-clock hours. The window
// wraps midnight when StartHour > EndHour.
type Gate struct {
	StartHour int
	EndHour   int
}

// NewGate returns a gate for the given window; out-of-range hours fall back
// to the 23:00-08:00 default.
func NewGate(startHour, endHour int) *Gate {
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 || startHour == endHour {
		return DefaultGate()
	}
	return &Gate{StartHour: startHour, EndHour: endHour}
}

// DefaultGate returns the 23:00-08:00 window.
func DefaultGate() *Gate { return &Gate{StartHour: 23, EndHour: 8} }

// Status is the gate's view of one instant.
type Status struct {
	InDND  bool
	Window string
}

// Status reports whether now falls inside the quiet window.
func (g *Gate) Status(now time.Time) Status {
	hour := now.Hour()
	var in bool
	if g.StartHour > g.EndHour {
		// Wraps midnight, e.g. 23:00-08:00.
		in = hour >= g.StartHour || hour < g.EndHour
	} else {
		in = hour >= g.StartHour && hour < g.EndHour
	}
	return Status{InDND: in, Window: g.windowLabel()}
}

// NextAllowed returns the next end-of-window boundary strictly in the
// future: today's boundary if the current hour precedes it, else tomorrow's.
func (g *Gate) NextAllowed(now time.Time) time.Time {
	boundary := time.Date(now.Year(), now.Month(), now.Day(), g.EndHour, 0, 0, 0, now.Location())
	if now.Hour() >= g.EndHour {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}

func (g *Gate) windowLabel() string {
	return fmt.Sprintf("%02d:00-%02d:00", g.StartHour, g.EndHour)
}
