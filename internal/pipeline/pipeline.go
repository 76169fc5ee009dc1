// Package pipeline implements the nine-stage evaluation orchestrator. One
// call to Evaluate classifies one event as NOW, LATER, or NEVER.
//
// CRITICAL INVARIANTS:
//   - Stages execute in fixed order; every early exit funnels through
//     finalize, which writes the audit record before returning.
//   - Exactly one decision per event.
//   - Fingerprints and fatigue counters are written only for outcomes that
//     consume user attention: NOW, LATER, and the CRITICAL short-circuit.
//   - A CRITICAL event is never lost: any fault in stages 2-9 yields a
//     synthetic NOW via the failsafe envelope.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"triage/internal/audit"
	"triage/internal/conflict"
	"triage/internal/dedup"
	"triage/internal/dispatch"
	"triage/internal/dnd"
	"triage/internal/enrich"
	"triage/internal/fatigue"
	"triage/internal/metrics"
	"triage/internal/rules"
	"triage/internal/scoring"
	"triage/pkg/clock"
	"triage/pkg/domain/notification"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidEvent is returned for events missing required fields. This is a
// pre-core rejection: no audit record is written.
var ErrInvalidEvent = errors.New("pipeline: event missing user_id or event_type")

// Decision thresholds: at or above SendThreshold dispatch NOW; at or above
// DeferThreshold schedule LATER; below, suppress.
const (
	SendThreshold  = 60
	DeferThreshold = 30
)

const (
	criticalScore = 97
	failsafeScore = 90
	dndScore      = 35

	// criticalRuleID is the pseudo-rule recorded when the CRITICAL
	// short-circuit fires.
	criticalRuleID = "critical-always-now"
)

// DupChecker is the deduplicator port consumed by the pipeline.
type DupChecker interface {
	Check(ctx context.Context, e *notification.Event) dedup.Result
	Store(ctx context.Context, e *notification.Event)
}

// FatigueAccountant is the fatigue port consumed by the pipeline.
type FatigueAccountant interface {
	Assess(ctx context.Context, userID, source string) fatigue.Assessment
	Record(ctx context.Context, e *notification.Event)
	CapTotal() int
}

// RuleSource yields the current rules snapshot.
type RuleSource interface {
	Snapshot() []notification.Rule
}

// Adjuster is the AI enrichment port.
type Adjuster interface {
	Adjustment(ctx context.Context, e *notification.Event) (int, error)
}

// Config wires the engine's collaborators. Detector, Fatigue, Rules, Audit
// and Dispatch are required; nil Gate, Clock, Logger, and Metrics fall back
// to defaults.
type Config struct {
	Detector DupChecker
	Fatigue  FatigueAccountant
	Rules    RuleSource
	Gate     *dnd.Gate
	AI       Adjuster
	Audit    audit.Sink
	Dispatch dispatch.Scheduler
	Clock    clock.Clock
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Engine executes the evaluation pipeline.
type Engine struct {
	detector DupChecker
	fatigue  FatigueAccountant
	rules    RuleSource
	gate     *dnd.Gate
	ai       Adjuster
	sink     audit.Sink
	dispatch dispatch.Scheduler
	clk      clock.Clock
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New builds an engine from cfg.
func New(cfg Config) *Engine {
	if cfg.Gate == nil {
		cfg.Gate = dnd.DefaultGate()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		// Isolated registry so tests never collide on registration.
		cfg.Metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	}
	return &Engine{
		detector: cfg.Detector,
		fatigue:  cfg.Fatigue,
		rules:    cfg.Rules,
		gate:     cfg.Gate,
		ai:       cfg.AI,
		sink:     cfg.Audit,
		dispatch: cfg.Dispatch,
		clk:      cfg.Clock,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// state carries the per-evaluation diagnostics that finalize assembles into
// the audit record.
type state struct {
	event        *notification.Event
	auditID      string
	start        time.Time
	stages       map[string]string
	rulesMatched []string
}

// Evaluate classifies one event. The caller receives either a Decision or an
// error; a CRITICAL event always receives a Decision.
func (p *Engine) Evaluate(ctx context.Context, e *notification.Event) (*notification.Decision, error) {
	if e == nil || e.UserID == "" || e.EventType == "" {
		return nil, ErrInvalidEvent
	}

	now := p.clk.Now()
	e.ApplyDefaults(now)

	st := &state{
		event:   e,
		auditID: notification.NewAuditID(),
		start:   now,
		stages:  make(map[string]string, 10),
	}

	// Stage 1: expiry guard. Runs outside the failsafe envelope and beats
	// CRITICAL: expired traffic is worthless no matter how urgent.
	if e.Expired(now) {
		st.stages[notification.StageExpiry] = "EXPIRED"
		return p.finalize(ctx, st, &notification.Decision{
			Outcome: notification.OutcomeNever,
			Score:   0,
			Reason:  fmt.Sprintf("Event expired at %s", e.ExpiresAt.Format(time.RFC3339)),
			AuditID: st.auditID,
		}), nil
	}
	st.stages[notification.StageExpiry] = "OK"

	dec, err := p.run(ctx, st, now)
	if err != nil {
		if e.PriorityHint == notification.PriorityCritical {
			p.log.Error("pipeline fault, failsafe engaged",
				zap.String("audit_id", st.auditID), zap.Error(err))
			st.stages[notification.StageFailsafe] = "true"
			p.metrics.FailsafeFired.Inc()
			return p.finalize(ctx, st, &notification.Decision{
				Outcome: notification.OutcomeNow,
				Score:   failsafeScore,
				Reason:  "FAILSAFE: pipeline error; CRITICAL sent NOW",
				AuditID: st.auditID,
			}), nil
		}
		return nil, err
	}
	return p.finalize(ctx, st, dec), nil
}

// run executes stages 2-9 inside the failsafe envelope: any returned error
// or panic is caught by Evaluate.
func (p *Engine) run(ctx context.Context, st *state, now time.Time) (dec *notification.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			dec = nil
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	e := st.event
	critical := e.PriorityHint == notification.PriorityCritical

	// Stage 2: dedup guard. CRITICAL bypasses dedup: a duplicate CRITICAL
	// still sends.
	if critical {
		st.stages[notification.StageDedup] = "BYPASSED (CRITICAL)"
	} else {
		if res := p.detector.Check(ctx, e); res.Duplicate {
			st.stages[notification.StageDedup] = "DUPLICATE " + string(res.Type)
			p.metrics.DedupHits.WithLabelValues(string(res.Type)).Inc()
			return &notification.Decision{
				Outcome: notification.OutcomeNever,
				Score:   0,
				Reason:  fmt.Sprintf("Duplicate notification (%s): %s", res.Type, res.Detail),
				AuditID: st.auditID,
			}, nil
		}
		st.stages[notification.StageDedup] = "OK"
	}

	// Stage 3: CRITICAL short-circuit. Consumes attention, so identity and
	// counters are recorded.
	if critical {
		p.detector.Store(ctx, e)
		p.fatigue.Record(ctx, e)
		st.rulesMatched = append(st.rulesMatched, criticalRuleID)
		st.stages[notification.StageRules] = "SHORT_CIRCUIT " + criticalRuleID
		return &notification.Decision{
			Outcome: notification.OutcomeNow,
			Score:   criticalScore,
			Reason:  "CRITICAL priority: always send immediately",
			AuditID: st.auditID,
		}, nil
	}

	// Stage 4: rule matching. Only SUPPRESS short-circuits; DEFER, SEND_NOW
	// and CAP are annotated and composed with the later stages.
	matched := rules.Match(e, p.rules.Snapshot())
	for _, r := range matched {
		st.rulesMatched = append(st.rulesMatched, r.RuleID)
	}
	st.stages[notification.StageRules] = fmt.Sprintf("matched=%d", len(matched))
	if sup, ok := rules.FirstSuppress(matched); ok {
		return &notification.Decision{
			Outcome: notification.OutcomeNever,
			Score:   0,
			Reason:  fmt.Sprintf("Suppressed by rule %s", sup.RuleID),
			AuditID: st.auditID,
		}, nil
	}

	// Stage 5: DND gate.
	if status := p.gate.Status(now); status.InDND {
		sched := p.gate.NextAllowed(now)
		st.stages[notification.StageDND] = "IN_WINDOW " + status.Window
		return &notification.Decision{
			Outcome:    notification.OutcomeLater,
			Score:      dndScore,
			Reason:     fmt.Sprintf("In DND window (%s); deferred to %s", status.Window, sched.Format(time.RFC3339)),
			ScheduleAt: &sched,
			AuditID:    st.auditID,
		}, nil
	}
	st.stages[notification.StageDND] = "CLEAR"

	// Stage 6: base score.
	base := scoring.Base(e, now)
	st.stages[notification.StageScorer] = fmt.Sprintf("base=%d", base)

	// Stage 7: fatigue read (fails soft to UNKNOWN inside the accountant).
	assessment := p.fatigue.Assess(ctx, e.UserID, e.Source)
	st.stages[notification.StageFatigue] = assessment.Describe(p.fatigue.CapTotal())

	// Stage 8: AI adjustment, soft on any fault.
	adjustment, aiErr := p.ai.Adjustment(ctx, e)
	if aiErr != nil {
		adjustment = 0
		st.stages[notification.StageAI] = fmt.Sprintf("SKIPPED (%v)", aiErr)
		p.metrics.AISkipped.Inc()
	} else {
		st.stages[notification.StageAI] = fmt.Sprintf("adjustment=%+d", adjustment)
	}

	final := scoring.Final(base, assessment.Penalty, adjustment)

	// Stage 9: conflict resolution between urgency and fatigue.
	if res := conflict.Resolve(e.PriorityHint, assessment.Level, e.Source, final); res.Resolved {
		st.stages[notification.StageConflict] = "RESOLVED " + string(res.Outcome)
		dec := &notification.Decision{
			Outcome: res.Outcome,
			Score:   final,
			Reason:  res.Reason,
			AuditID: st.auditID,
		}
		if res.Outcome == notification.OutcomeLater {
			sched := now.Add(conflict.ShortDefer)
			dec.ScheduleAt = &sched
		}
		if res.Outcome != notification.OutcomeNever {
			p.detector.Store(ctx, e)
			p.fatigue.Record(ctx, e)
		}
		return dec, nil
	}
	st.stages[notification.StageConflict] = "NONE"

	// Stage 10: threshold boundary.
	return p.boundary(ctx, st, final, now), nil
}

func (p *Engine) boundary(ctx context.Context, st *state, final int, now time.Time) *notification.Decision {
	e := st.event
	switch {
	case final >= SendThreshold:
		st.stages[notification.StageDecision] = fmt.Sprintf("NOW score=%d", final)
		p.detector.Store(ctx, e)
		p.fatigue.Record(ctx, e)
		return &notification.Decision{
			Outcome: notification.OutcomeNow,
			Score:   final,
			Reason:  fmt.Sprintf("Score %d at or above send threshold", final),
			AuditID: st.auditID,
		}
	case final >= DeferThreshold:
		sched := optimalWindow(e.EventType, now)
		st.stages[notification.StageDecision] = fmt.Sprintf("LATER score=%d", final)
		p.detector.Store(ctx, e)
		p.fatigue.Record(ctx, e)
		return &notification.Decision{
			Outcome:    notification.OutcomeLater,
			Score:      final,
			Reason:     fmt.Sprintf("Score %d in defer band; scheduled for optimal window", final),
			ScheduleAt: &sched,
			AuditID:    st.auditID,
		}
	default:
		st.stages[notification.StageDecision] = fmt.Sprintf("NEVER score=%d", final)
		return &notification.Decision{
			Outcome: notification.OutcomeNever,
			Score:   final,
			Reason:  fmt.Sprintf("Score %d below minimum threshold", final),
			AuditID: st.auditID,
		}
	}
}

// optimalWindow picks the deferred delivery instant: low-urgency bulk types
// land uniformly in [2h, 5h); everything else in [15m, 45m).
func optimalWindow(eventType string, now time.Time) time.Time {
	switch eventType {
	case "promotion", "low_value_promo", "system_update":
		return now.Add(2*time.Hour + time.Duration(rand.Int63n(int64(3*time.Hour))))
	default:
		return now.Add(15*time.Minute + time.Duration(rand.Int63n(int64(30*time.Minute))))
	}
}

// finalize assembles and writes the audit record, submits deferred dispatch
// for LATER decisions, updates metrics, and returns the decision. Audit and
// dispatch faults are logged, never surfaced; the write is attempted exactly
// once before returning.
func (p *Engine) finalize(ctx context.Context, st *state, dec *notification.Decision) *notification.Decision {
	if _, ok := st.stages[notification.StageDecision]; !ok {
		st.stages[notification.StageDecision] = string(dec.Outcome)
	}

	rec := &notification.AuditRecord{
		AuditID:      st.auditID,
		EventID:      st.event.EventID,
		UserID:       st.event.UserID,
		EventType:    st.event.EventType,
		Decision:     dec.Outcome,
		Score:        dec.Score,
		Reason:       dec.Reason,
		Stages:       st.stages,
		RulesMatched: st.rulesMatched,
		ScheduleAt:   dec.ScheduleAt,
		CreatedAt:    p.clk.Now(),
	}
	if err := p.sink.Write(ctx, rec); err != nil {
		p.log.Warn("audit write failed", zap.String("audit_id", st.auditID), zap.Error(err))
	}

	if dec.Outcome == notification.OutcomeLater && dec.ScheduleAt != nil {
		if err := p.dispatch.ScheduleDeferred(ctx, st.event, *dec.ScheduleAt, st.auditID); err != nil {
			p.log.Warn("deferred dispatch failed", zap.String("audit_id", st.auditID), zap.Error(err))
		}
	}

	p.metrics.Decisions.WithLabelValues(string(dec.Outcome)).Inc()
	p.metrics.EvaluateDuration.Observe(p.clk.Now().Sub(st.start).Seconds())
	return dec
}

var _ Adjuster = (*enrich.Client)(nil)
