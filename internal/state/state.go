// Package state implements the State Tracker: the engine's only
// mutable component, guarded by a single mutex and written exclusively by
// the orchestrator goroutine. Everything else in the pipeline
// reads immutable snapshots derived from here, never the tracker itself.
package state

import (
	"sync"
	"time"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// historyCapacity bounds the performance_history ring buffer.
const historyCapacity = 100

// purposeHistoryCapacity bounds the per-position PurposeHistory ring.
const purposeHistoryCapacity = 20

// Decision is one closed-tick's outcome, fed into performance_history.
type Decision struct {
	DecisionID      string
	At              time.Time
	Success         bool
	PredictedNetPnL float64
	RealizedNetPnL  float64
	LatencyMS       int64
}

// Tracker holds the engine's cross-tick mutable state.
type Tracker struct {
	mu sync.Mutex

	livePositions   map[model.PositionID]model.Position
	pendingClosure  map[model.PositionID]struct{}
	lastClosureTime time.Time

	history     []Decision
	historyHead int

	purposeCache     map[model.PositionID]model.Purpose
	purposeUpdatedAt map[model.PositionID]time.Time
	purposeHistory   map[model.PositionID][]model.PurposeKind
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{
		livePositions:    make(map[model.PositionID]model.Position),
		pendingClosure:   make(map[model.PositionID]struct{}),
		purposeCache:     make(map[model.PositionID]model.Purpose),
		purposeUpdatedAt: make(map[model.PositionID]time.Time),
		purposeHistory:   make(map[model.PositionID][]model.PurposeKind),
	}
}

// SetLivePositions replaces the tracked live-position set at the start of a
// tick, from the fresh PortfolioSnapshot.
func (t *Tracker) SetLivePositions(positions map[model.PositionID]model.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.livePositions = positions
	for id := range t.pendingClosure {
		if _, stillOpen := positions[id]; !stillOpen {
			delete(t.pendingClosure, id) // closed broker-side, no longer pending
		}
	}
}

// MarkPending adds ids to the pending_closure set: positions
// locked while an executor request is in flight.
func (t *Tracker) MarkPending(ids []model.PositionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		t.pendingClosure[id] = struct{}{}
	}
}

// ClearPending removes ids from the pending_closure set, whether the close
// succeeded, failed, or the executor abandoned the attempt.
func (t *Tracker) ClearPending(ids []model.PositionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		delete(t.pendingClosure, id)
	}
}

// PendingClosure returns a snapshot copy of the pending-closure set.
func (t *Tracker) PendingClosure() map[model.PositionID]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[model.PositionID]struct{}, len(t.pendingClosure))
	for id := range t.pendingClosure {
		out[id] = struct{}{}
	}
	return out
}

// RecordClosure stamps last_closure_time and appends to performance_history,
// evicting the oldest entry once the ring is full.
func (t *Tracker) RecordClosure(d Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastClosureTime = d.At
	if len(t.history) < historyCapacity {
		t.history = append(t.history, d)
		return
	}
	t.history[t.historyHead] = d
	t.historyHead = (t.historyHead + 1) % historyCapacity
}

// LastClosureTime returns the most recent recorded closure time.
func (t *Tracker) LastClosureTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastClosureTime
}

// CooldownActive reports whether the closing cooldown is
// still in effect as of now.
func (t *Tracker) CooldownActive(now time.Time, cooldown time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastClosureTime.IsZero() {
		return false
	}
	return now.Sub(t.lastClosureTime) < cooldown
}

// History returns a copy of the recorded decisions, oldest first.
func (t *Tracker) History() []Decision {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) < historyCapacity {
		out := make([]Decision, len(t.history))
		copy(out, t.history)
		return out
	}
	out := make([]Decision, historyCapacity)
	for i := 0; i < historyCapacity; i++ {
		out[i] = t.history[(t.historyHead+i)%historyCapacity]
	}
	return out
}

// UpdatePurpose caches a position's freshly computed purpose and appends its
// kind to that position's bounded PurposeHistory ring.
func (t *Tracker) UpdatePurpose(id model.PositionID, p model.Purpose, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.purposeCache[id] = p
	t.purposeUpdatedAt[id] = now

	hist := t.purposeHistory[id]
	hist = append(hist, p.Kind)
	if len(hist) > purposeHistoryCapacity {
		hist = hist[len(hist)-purposeHistoryCapacity:]
	}
	t.purposeHistory[id] = hist
}

// PurposeCache returns a snapshot copy of the cached purposes.
func (t *Tracker) PurposeCache() map[model.PositionID]model.Purpose {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[model.PositionID]model.Purpose, len(t.purposeCache))
	for id, p := range t.purposeCache {
		out[id] = p
	}
	return out
}

// PurposeHistory returns the read-only PurposeKind ring for id, oldest first.
func (t *Tracker) PurposeHistory(id model.PositionID) []model.PurposeKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := t.purposeHistory[id]
	out := make([]model.PurposeKind, len(hist))
	copy(out, hist)
	return out
}

// Cooldowned returns the set of position ids whose cached purpose is still
// within the purpose-update cooldown window as of now.
func (t *Tracker) Cooldowned(now time.Time, cooldown time.Duration) map[model.PositionID]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[model.PositionID]struct{})
	for id, updatedAt := range t.purposeUpdatedAt {
		if now.Sub(updatedAt) < cooldown {
			out[id] = struct{}{}
		}
	}
	return out
}
