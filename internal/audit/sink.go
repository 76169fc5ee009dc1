// Package audit defines the audit sink port. The pipeline writes exactly one
// record per evaluation; a failing sink is logged and never propagates into
// the caller's decision.
package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"triage/pkg/domain/notification"
)

// Sink accepts audit records. Implementations own persistence; the core only
// appends.
type Sink interface {
	Write(ctx context.Context, rec *notification.AuditRecord) error
}

// LogSink emits audit records as structured log lines. The default sink when
// no persistence backend is wired.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink builds a log-backed sink.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Write logs the record at Info.
func (s *LogSink) Write(_ context.Context, rec *notification.AuditRecord) error {
	s.log.Info("audit",
		zap.String("audit_id", rec.AuditID),
		zap.String("user_id", rec.UserID),
		zap.String("event_type", rec.EventType),
		zap.String("decision", string(rec.Decision)),
		zap.Int("score", rec.Score),
		zap.String("reason", rec.Reason),
		zap.Any("stages", rec.Stages),
		zap.Strings("rules_matched", rec.RulesMatched),
	)
	return nil
}

// MemorySink retains records in memory. For tests.
type MemorySink struct {
	mu      sync.Mutex
	records []notification.AuditRecord
	err     error
}

// NewMemorySink builds an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// FailWith makes every subsequent Write return err.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Write appends the record.
func (s *MemorySink) Write(_ context.Context, rec *notification.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, *rec)
	return nil
}

// Records returns a copy of everything written so far.
func (s *MemorySink) Records() []notification.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*MemorySink)(nil)
)
