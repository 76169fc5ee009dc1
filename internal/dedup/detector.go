// Package dedup implements the three-check duplicate detector: caller
// idempotency key, exact content fingerprint, and SimHash near-duplicate
// within a sliding window.
//
// CRITICAL INVARIANTS:
//   - Checks run in order: EXACT_KEY, EXACT_FINGERPRINT, NEAR_DUPLICATE.
//   - KV faults during checks fail open: the event is treated as new.
//   - KV faults during Store are logged and swallowed. No retries.
//   - Store is called only for outcomes that consume user attention.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"triage/internal/hashing"
	"triage/internal/kv"
	"triage/pkg/clock"
	"triage/pkg/domain/notification"
)

// Type labels which check flagged the duplicate.
type Type string

const (
	TypeExactKey         Type = "EXACT_KEY"
	TypeExactFingerprint Type = "EXACT_FINGERPRINT"
	TypeNearDuplicate    Type = "NEAR_DUPLICATE"
)

const (
	// nearDupMinLen gates the SimHash check; shorter messages carry too
	// little signal for a 64-bit sketch.
	nearDupMinLen = 10

	// nearDupMaxDistance: hashes closer than this Hamming distance are
	// considered the same message.
	nearDupMaxDistance = 5

	// nearDupWindow bounds how long SimHashes stay comparable. The prune
	// cutoff is now - nearDupWindow in milliseconds; the system this
	// replaces multiplied the seconds value by 1000 twice, which pushed the
	// cutoff out ~7 days and disabled pruning entirely.
	nearDupWindow = 600 * time.Second

	ttlTransactional = 600 * time.Second
	ttlPromotional   = 86400 * time.Second
)

// Result is the outcome of a duplicate check.
type Result struct {
	Duplicate bool
	Type      Type
	Detail    string
}

// Detector checks and records event identity against the KV store.
type Detector struct {
	store kv.Store
	clk   clock.Clock
	log   *zap.Logger
}

// NewDetector builds a detector over the given store.
func NewDetector(store kv.Store, clk clock.Clock, log *zap.Logger) *Detector {
	return &Detector{store: store, clk: clk, log: log}
}

func keyForDedupeKey(k string) string    { return "dedup:key:" + k }
func keyForFingerprint(fp string) string { return "dedup:fp:" + fp }
func keyForSimHashes(userID, eventType string) string {
	return "sim:" + userID + ":" + eventType
}

// Check runs the three duplicate checks in order and returns the first hit.
// Any KV fault is logged and treated as "not seen" (fail-open read).
func (d *Detector) Check(ctx context.Context, e *notification.Event) Result {
	if e.DedupeKey != "" {
		if d.probe(ctx, keyForDedupeKey(e.DedupeKey)) {
			return Result{
				Duplicate: true,
				Type:      TypeExactKey,
				Detail:    fmt.Sprintf("dedupe_key %q seen within TTL", e.DedupeKey),
			}
		}
	}

	fp := hashing.Fingerprint(e.UserID, e.EventType, e.Message, e.Source)
	if d.probe(ctx, keyForFingerprint(fp)) {
		return Result{
			Duplicate: true,
			Type:      TypeExactFingerprint,
			Detail:    "fingerprint " + fp[:12] + " seen within TTL",
		}
	}

	if len(e.Message) < nearDupMinLen {
		return Result{}
	}
	return d.checkNearDuplicate(ctx, e)
}

// probe returns true only on a definite hit.
func (d *Detector) probe(ctx context.Context, key string) bool {
	_, err := d.store.Get(ctx, key)
	if err == nil {
		return true
	}
	if !errors.Is(err, kv.ErrNotFound) {
		d.log.Warn("dedup probe failed, treating as new", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (d *Detector) checkNearDuplicate(ctx context.Context, e *notification.Event) Result {
	current := hashing.SimHash(e.Message)

	members, err := d.store.ZRangeAll(ctx, keyForSimHashes(e.UserID, e.EventType))
	if err != nil {
		d.log.Warn("simhash read failed, treating as new",
			zap.String("user_id", e.UserID), zap.Error(err))
		return Result{}
	}

	for _, m := range members {
		stored, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		if dist := hashing.Hamming(current, stored); dist < nearDupMaxDistance {
			return Result{
				Duplicate: true,
				Type:      TypeNearDuplicate,
				Detail:    fmt.Sprintf("similar message within window (hamming %d)", dist),
			}
		}
	}
	return Result{}
}

// Store records the event's identity for future checks: fingerprint and
// dedupe key with a type-dependent TTL, and the SimHash in the per-user
// sliding window. Every fault is logged and swallowed.
func (d *Detector) Store(ctx context.Context, e *notification.Event) {
	ttl := ttlTransactional
	if e.IsPromo() {
		ttl = ttlPromotional
	}

	fp := hashing.Fingerprint(e.UserID, e.EventType, e.Message, e.Source)
	if err := d.store.Set(ctx, keyForFingerprint(fp), "1", ttl); err != nil {
		d.log.Warn("fingerprint store failed", zap.Error(err))
	}

	if e.DedupeKey != "" {
		if err := d.store.Set(ctx, keyForDedupeKey(e.DedupeKey), "1", ttl); err != nil {
			d.log.Warn("dedupe key store failed", zap.Error(err))
		}
	}

	// Short messages are never compared by the near-dup check, so they are
	// not indexed either.
	if len(e.Message) < nearDupMinLen {
		return
	}

	key := keyForSimHashes(e.UserID, e.EventType)
	nowMS := d.clk.Now().UnixMilli()
	member := strconv.FormatUint(hashing.SimHash(e.Message), 10)

	if err := d.store.ZAdd(ctx, key, float64(nowMS), member); err != nil {
		d.log.Warn("simhash store failed", zap.Error(err))
		return
	}
	if err := d.store.Expire(ctx, key, nearDupWindow); err != nil {
		d.log.Warn("simhash expire failed", zap.Error(err))
	}
	cutoff := nowMS - nearDupWindow.Milliseconds()
	if err := d.store.ZRemoveByScore(ctx, key, 0, float64(cutoff-1)); err != nil {
		d.log.Warn("simhash prune failed", zap.Error(err))
	}
}
