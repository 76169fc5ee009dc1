// Package fatigue tracks how much attention each user has recently spent and
// converts that into a score penalty plus a qualitative level.
//
// Counters are strict sliding windows over millisecond-scored sorted sets:
//
//	freq:<user>:total     1h window, cap 5
//	freq:<user>:<source>  1h window, cap 2
//	freq:<user>:promo     4h window, cap 1 (promo event types only)
//
// CRITICAL INVARIANTS:
//   - The penalty is derived from the total counter only; the per-source and
//     promo caps surface as diagnostics.
//   - Read faults degrade to {count 0, penalty 0, level UNKNOWN}.
//   - Write faults are logged and swallowed.
//   - Record is called only for outcomes that consume user attention.
package fatigue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"triage/internal/kv"
	"triage/pkg/clock"
	"triage/pkg/domain/notification"
)

// Level is the qualitative fatigue label. Distinct from notification
// priority: MEDIUM here describes the user's load, not the event's urgency.
type Level string

const (
	LevelLow     Level = "LOW"
	LevelMedium  Level = "MEDIUM"
	LevelHigh    Level = "HIGH"
	LevelMaxed   Level = "MAXED"
	LevelUnknown Level = "UNKNOWN"
)

// Caps configures the three sliding-window limits.
type Caps struct {
	Total     int // per hour
	PerSource int // per hour
	Promo     int // per four hours
}

// DefaultCaps returns the production limits.
func DefaultCaps() Caps {
	return Caps{Total: 5, PerSource: 2, Promo: 1}
}

const (
	hourWindow  = time.Hour
	promoWindow = 4 * time.Hour
	counterTTL  = 4 * time.Hour
)

// Assessment is the fatigue read for one user at one instant.
type Assessment struct {
	Total          int
	BySource       int
	Promo          int
	Penalty        int
	Level          Level
	SourceExceeded bool
	PromoExceeded  bool
}

// Accountant reads and updates the per-user counters.
type Accountant struct {
	store kv.Store
	caps  Caps
	clk   clock.Clock
	log   *zap.Logger
}

// NewAccountant builds an accountant with the given caps. Zero cap fields
// fall back to the defaults.
func NewAccountant(store kv.Store, caps Caps, clk clock.Clock, log *zap.Logger) *Accountant {
	def := DefaultCaps()
	if caps.Total <= 0 {
		caps.Total = def.Total
	}
	if caps.PerSource <= 0 {
		caps.PerSource = def.PerSource
	}
	if caps.Promo <= 0 {
		caps.Promo = def.Promo
	}
	return &Accountant{store: store, caps: caps, clk: clk, log: log}
}

func keyTotal(userID string) string          { return "freq:" + userID + ":total" }
func keySource(userID, source string) string { return "freq:" + userID + ":" + source }
func keyPromo(userID string) string          { return "freq:" + userID + ":promo" }

// Assess counts recent notifications and derives the penalty and level. A KV
// read fault on the total counter fails soft to UNKNOWN with no penalty.
func (a *Accountant) Assess(ctx context.Context, userID, source string) Assessment {
	nowMS := a.clk.Now().UnixMilli()

	total, err := a.countWindow(ctx, keyTotal(userID), nowMS, hourWindow)
	if err != nil {
		a.log.Warn("fatigue read failed, assuming no fatigue",
			zap.String("user_id", userID), zap.Error(err))
		return Assessment{Level: LevelUnknown}
	}

	// Secondary counters are diagnostic; their read faults degrade to zero.
	bySource, err := a.countWindow(ctx, keySource(userID, source), nowMS, hourWindow)
	if err != nil {
		bySource = 0
	}
	promo, err := a.countWindow(ctx, keyPromo(userID), nowMS, promoWindow)
	if err != nil {
		promo = 0
	}

	penalty := a.penalty(total)
	return Assessment{
		Total:          total,
		BySource:       bySource,
		Promo:          promo,
		Penalty:        penalty,
		Level:          levelFor(penalty),
		SourceExceeded: bySource >= a.caps.PerSource,
		PromoExceeded:  promo >= a.caps.Promo,
	}
}

func (a *Accountant) countWindow(ctx context.Context, key string, nowMS int64, window time.Duration) (int, error) {
	min := float64(nowMS - window.Milliseconds())
	n, err := a.store.ZCountByScore(ctx, key, min, float64(nowMS))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// penalty applies the curve to the total count. Branches are not mutually
// exclusive; evaluation order is highest ratio first.
func (a *Accountant) penalty(total int) int {
	ratio := float64(total) / float64(a.caps.Total)
	switch {
	case ratio >= 1.0:
		return 30
	case ratio >= 0.8:
		return 20
	case ratio >= 0.5:
		return 10
	case total >= 2:
		return 5
	default:
		return 0
	}
}

func levelFor(penalty int) Level {
	switch {
	case penalty == 0:
		return LevelLow
	case penalty <= 10:
		return LevelMedium
	case penalty <= 20:
		return LevelHigh
	default:
		return LevelMaxed
	}
}

// Record adds the event to every relevant counter, refreshes TTLs, and prunes
// entries that slid out of the window. All faults are logged and swallowed.
func (a *Accountant) Record(ctx context.Context, e *notification.Event) {
	nowMS := a.clk.Now().UnixMilli()
	member := strconv.FormatInt(nowMS, 10) + ":" + e.EventType

	a.bump(ctx, keyTotal(e.UserID), nowMS, member, hourWindow)
	a.bump(ctx, keySource(e.UserID, e.Source), nowMS, member, hourWindow)
	if e.IsPromo() {
		a.bump(ctx, keyPromo(e.UserID), nowMS, member, promoWindow)
	}
}

func (a *Accountant) bump(ctx context.Context, key string, nowMS int64, member string, window time.Duration) {
	if err := a.store.ZAdd(ctx, key, float64(nowMS), member); err != nil {
		a.log.Warn("fatigue counter write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := a.store.Expire(ctx, key, counterTTL); err != nil {
		a.log.Warn("fatigue counter expire failed", zap.String("key", key), zap.Error(err))
	}
	cutoff := float64(nowMS - window.Milliseconds())
	if err := a.store.ZRemoveByScore(ctx, key, 0, cutoff-1); err != nil {
		a.log.Warn("fatigue counter prune failed", zap.String("key", key), zap.Error(err))
	}
}

// Describe renders an assessment for the audit stage map.
func (as Assessment) Describe(capTotal int) string {
	return fmt.Sprintf("count=%d/%d penalty=%d level=%s", as.Total, capTotal, as.Penalty, as.Level)
}

// CapTotal exposes the configured total cap for diagnostics.
func (a *Accountant) CapTotal() int { return a.caps.Total }
