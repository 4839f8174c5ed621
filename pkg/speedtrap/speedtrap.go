// Package speedtrap implements the two-beam speed measurement pair: two
// independent triggers whose time difference over a known sensor spacing
// yields one SPEED_DATA sample.
package speedtrap

import (
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/racestate"
)

// SanityWindowUs bounds a valid Δt: the capture is published only if
// 0 < Δt < SanityWindowUs.
const SanityWindowUs = 10_000_000

// AbandonTimeout is how long t1 may sit set without t2 before the
// capture is abandoned and both cells are cleared.
const AbandonTimeout = 5 * time.Second

// Trap holds the two timing cells for one speed-trap pair. Sensors are
// always live (no explicit arm); ARM_CMD only clears a stale capture.
type Trap struct {
	t1 racestate.TimingCell
	t2 racestate.TimingCell

	t1SetAt time.Time // wall-clock time t1 was captured, for the abandon timeout
}

// New returns an empty, zeroed trap.
func New() *Trap {
	return &Trap{}
}

// FirstEdge records the pair's first beam break. A second call before
// Clear is a no-op: only the first edge after arming is kept.
func (t *Trap) FirstEdge(nowUs uint64) bool {
	if t.t1.StoreIfUnset(nowUs) {
		t.t1SetAt = time.Now()
		return true
	}
	return false
}

// SecondEdge records the pair's second beam break, but only if the first
// has already been captured (t1 > 0).
func (t *Trap) SecondEdge(nowUs uint64) bool {
	if !t.t1.IsSet() {
		return false
	}
	return t.t2.StoreIfUnset(nowUs)
}

// Sample attempts to compute a speed sample once both edges are set,
// given the sensor spacing in meters. It returns (sample, true) exactly
// once per capture; the cells are cleared whether or not the window
// check passes.
func (t *Trap) Sample(spacingM float64) (domain.SpeedSample, bool) {
	t1 := t.t1.Load()
	t2 := t.t2.Load()
	if t1 == 0 || t2 == 0 {
		return domain.SpeedSample{}, false
	}
	defer t.Clear()

	deltaUs := int64(t2) - int64(t1)
	if deltaUs <= 0 || deltaUs >= SanityWindowUs {
		return domain.SpeedSample{}, false
	}

	deltaS := float64(deltaUs) / 1_000_000.0
	speed := spacingM / deltaS
	return domain.SpeedSample{TriggerTimeUs: t1, SpeedMps: speed}, true
}

// CheckAbandon clears the capture if t1 has been set for longer than
// AbandonTimeout without a matching t2, returning true if it did.
func (t *Trap) CheckAbandon(now time.Time) bool {
	if !t.t1.IsSet() || t.t2.IsSet() {
		return false
	}
	if now.Sub(t.t1SetAt) < AbandonTimeout {
		return false
	}
	t.Clear()
	return true
}

// Clear zeros both timing cells, matching the ARM_CMD-clears-capture rule.
func (t *Trap) Clear() {
	t.t1.Clear()
	t.t2.Clear()
	t.t1SetAt = time.Time{}
}
