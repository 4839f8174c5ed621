// Package race implements the per-role race state machines: Start and
// Finish. Each machine owns its own atomic state cell and timing
// variables and exposes one method per triggering event (arm, beam
// trigger, frame received, timeout tick) rather than a single dispatch
// function, so the caller's event loop stays a thin switch over what
// actually happened.
package race

import (
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/racestate"
)

// RaceTimeout is how long Start waits in RACING for a CONFIRM before
// giving up and returning to IDLE.
const RaceTimeout = 30 * time.Second

// StartAutoReset is how long Start stays in FINISHED before auto-resetting.
const StartAutoReset = 2 * time.Second

// Start is the start-line node's race state machine: IDLE -> ARMED on an
// arm source firing, ARMED -> RACING on its own beam trigger, RACING ->
// FINISHED on CONFIRM (or IDLE on timeout), FINISHED -> IDLE after
// StartAutoReset.
type Start struct {
	state   racestate.State
	timeout racestate.Deadline

	triggerTimeUs uint64 // local trigger ts for the START frame most recently sent
}

// NewStart returns a Start machine in IDLE.
func NewStart() *Start {
	return &Start{}
}

// State returns the current race state.
func (s *Start) State() domain.RaceState { return s.state.Load() }

// Arm transitions IDLE -> ARMED, attaching the beam trigger. It is a
// no-op if not currently IDLE (an arm source firing mid-race is ignored).
func (s *Start) Arm() bool {
	return s.state.CompareAndSwap(domain.Idle, domain.Armed)
}

// Trigger is the beam-break event: ARMED -> RACING, recording the local
// trigger time that the START frame carries. It returns the timestamp to
// send and whether a transition actually occurred.
func (s *Start) Trigger(nowUs uint64) (uint64, bool) {
	if !s.state.CompareAndSwap(domain.Armed, domain.Racing) {
		return 0, false
	}
	s.triggerTimeUs = nowUs
	s.timeout.Arm(time.Now().Add(RaceTimeout), domain.Idle)
	return nowUs, true
}

// Disarm is the DISARM_CMD-received event: ARMED -> IDLE, clearing the
// attached beam trigger without waiting out a timeout.
func (s *Start) Disarm() bool {
	if !s.state.CompareAndSwap(domain.Armed, domain.Idle) {
		return false
	}
	s.timeout.Disarm()
	s.triggerTimeUs = 0
	return true
}

// HandleConfirm is the CONFIRM-received event: RACING -> FINISHED,
// arming the auto-reset timer.
func (s *Start) HandleConfirm(now time.Time) bool {
	if !s.state.CompareAndSwap(domain.Racing, domain.Finished) {
		return false
	}
	s.timeout.Disarm()
	s.timeout.Arm(now.Add(StartAutoReset), domain.Idle)
	return true
}

// Tick advances pending deadlines (race timeout, auto-reset) and reports
// whether a transition to IDLE happened.
func (s *Start) Tick(now time.Time) bool {
	if !s.timeout.Due(now) {
		return false
	}
	prev := s.state.Load()
	s.state.CompareAndSwap(prev, domain.Idle)
	s.timeout.Disarm()
	s.triggerTimeUs = 0
	return true
}

// TriggerTimeUs returns the timestamp sent in the most recent START frame.
func (s *Start) TriggerTimeUs() uint64 { return s.triggerTimeUs }
