// Package dispatch defines the deferred-dispatch port. Durable queueing is
// out of scope for the core; LATER decisions are handed to this interface
// and a failure to submit is logged, never surfaced.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"triage/pkg/domain/notification"
)

// Scheduler accepts deferred events for later delivery.
type Scheduler interface {
	ScheduleDeferred(ctx context.Context, e *notification.Event, at time.Time, auditID string) error
}

// LogScheduler records deferrals as structured log lines. The default when
// no queue transport is wired.
type LogScheduler struct {
	log *zap.Logger
}

// NewLogScheduler builds a log-backed scheduler.
func NewLogScheduler(log *zap.Logger) *LogScheduler {
	return &LogScheduler{log: log}
}

// ScheduleDeferred logs the deferral.
func (s *LogScheduler) ScheduleDeferred(_ context.Context, e *notification.Event, at time.Time, auditID string) error {
	s.log.Info("deferred dispatch scheduled",
		zap.String("audit_id", auditID),
		zap.String("user_id", e.UserID),
		zap.String("event_type", e.EventType),
		zap.Time("schedule_at", at),
	)
	return nil
}

// Deferred is one captured submission.
type Deferred struct {
	Event   notification.Event
	At      time.Time
	AuditID string
}

// MemoryScheduler captures submissions in memory. For tests.
type MemoryScheduler struct {
	mu       sync.Mutex
	deferred []Deferred
	err      error
}

// NewMemoryScheduler builds an empty in-memory scheduler.
func NewMemoryScheduler() *MemoryScheduler { return &MemoryScheduler{} }

// FailWith makes every subsequent submission return err.
func (s *MemoryScheduler) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ScheduleDeferred captures the submission.
func (s *MemoryScheduler) ScheduleDeferred(_ context.Context, e *notification.Event, at time.Time, auditID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.deferred = append(s.deferred, Deferred{Event: *e, At: at, AuditID: auditID})
	return nil
}

// Deferred returns a copy of captured submissions.
func (s *MemoryScheduler) Deferred() []Deferred {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Deferred, len(s.deferred))
	copy(out, s.deferred)
	return out
}

var (
	_ Scheduler = (*LogScheduler)(nil)
	_ Scheduler = (*MemoryScheduler)(nil)
)
