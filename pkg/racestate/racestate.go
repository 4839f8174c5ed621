// Package racestate provides the atomic building blocks every role's state
// machine shares: the 2-bit race state cell, a zero-means-unset 64-bit
// timing cell, and a deadline/next-state pair for non-blocking auto-reset
// timers.
//
// A TimingCell's Load/Store pair IS the critical section: on real hardware
// the ISR and the task both wrap a 64-bit access in portENTER/EXIT_CRITICAL
// because a 32-bit core can tear a 64-bit word across two loads. Go's
// atomic.Uint64 gives the same guarantee without an explicit lock. The speed
// trap's two capture times (speedtrap_time1/2) are held in this type; the
// start and finish machines in pkg/race keep their trigger times as plain
// fields, read and written only from the node's run loop.
package racestate

import (
	"sync/atomic"
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// State is an atomic holder for domain.RaceState.
type State struct {
	v atomic.Uint32
}

// Load returns the current state.
func (s *State) Load() domain.RaceState {
	return domain.RaceState(s.v.Load())
}

// Store sets the state unconditionally.
func (s *State) Store(v domain.RaceState) {
	s.v.Store(uint32(v))
}

// CompareAndSwap transitions the state only if it currently equals old.
func (s *State) CompareAndSwap(old, new domain.RaceState) bool {
	return s.v.CompareAndSwap(uint32(old), uint32(new))
}

// TimingCell is a 64-bit timestamp that is safe to read and write from any
// goroutine. Zero means "unset", matching the original firmware's
// convention.
type TimingCell struct {
	v atomic.Uint64
}

// Load reads the cell.
func (c *TimingCell) Load() uint64 { return c.v.Load() }

// Store writes the cell unconditionally.
func (c *TimingCell) Store(v uint64) { c.v.Store(v) }

// Clear resets the cell to unset (zero).
func (c *TimingCell) Clear() { c.v.Store(0) }

// IsSet reports whether the cell holds a non-zero timestamp.
func (c *TimingCell) IsSet() bool { return c.v.Load() != 0 }

// StoreIfUnset sets the cell to v only if it is currently zero, returning
// true if this call performed the write. This is what the original ISRs'
// `if (x == 0) x = now()` idiom becomes under true concurrency.
func (c *TimingCell) StoreIfUnset(v uint64) bool {
	return c.v.CompareAndSwap(0, v)
}

// Deadline is a (wake-up time, next state) pair for a non-blocking
// auto-reset timer, per §9's design note: a deadline-plus-state pair
// carries no redundant boolean, since "timer active" is just "deadline is
// not the zero value".
type Deadline struct {
	At   time.Time
	Next domain.RaceState
}

// Arm schedules the deadline.
func (d *Deadline) Arm(at time.Time, next domain.RaceState) {
	d.At = at
	d.Next = next
}

// Disarm clears the deadline.
func (d *Deadline) Disarm() {
	d.At = time.Time{}
}

// Active reports whether the deadline is armed.
func (d *Deadline) Active() bool { return !d.At.IsZero() }

// Due reports whether the deadline is armed and now is at or past it.
func (d *Deadline) Due(now time.Time) bool {
	return !d.At.IsZero() && !now.Before(d.At)
}
