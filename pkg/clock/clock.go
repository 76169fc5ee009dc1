// Package clock provides the injectable time source used by every
// time-dependent engine (expiry, freshness, fatigue windows, DND, deferral).
//
// Core packages MUST NOT call time.Now() directly. Inject a Clock so that
// window math and boundary checks are deterministic under test.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock. Use only at entry points (cmd/*).
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// Fixed always returns the same instant. For deterministic tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (c Fixed) Now() time.Time { return c.T }

// Func wraps a function as a Clock, for tests that need advancing time.
type Func func() time.Time

// Now calls the wrapped function.
func (f Func) Now() time.Time { return f() }

// NewReal returns a Clock backed by the system clock.
func NewReal() Clock { return Real{} }

// NewFixed returns a Clock pinned to t.
func NewFixed(t time.Time) Clock { return Fixed{T: t} }

var (
	_ Clock = Real{}
	_ Clock = Fixed{}
	_ Clock = Func(nil)
)
