package node

import (
	"sync"

	"github.com/Ryan4n6/MASS-Trap/pkg/arming"
	"github.com/Ryan4n6/MASS-Trap/pkg/clock"
)

// BeamSensor is the run loop's view of one beam-break digital input: Poll
// reports a fresh trigger edge exactly once, with the local timestamp it
// occurred at. It plays the role a hardware ISR plays in the original
// firmware, so implementations must never block or allocate on a hot path.
type BeamSensor interface {
	Poll() (uint64, bool)
}

// PinBeam adapts a level-sensed digital input (arming.PinReader) into a
// one-shot edge-triggered BeamSensor: it reports the clock time of each
// not-present -> present transition exactly once, the same level-to-edge
// translation arming.Proximity does for the dwell interlock.
type PinBeam struct {
	pin   arming.PinReader
	clock clock.Source

	wasPresent bool
}

// NewPinBeam returns a BeamSensor derived from pin, stamping each edge
// with clk.
func NewPinBeam(pin arming.PinReader, clk clock.Source) *PinBeam {
	return &PinBeam{pin: pin, clock: clk}
}

// Poll reports the clock time of a fresh beam break, if one occurred
// since the last call.
func (b *PinBeam) Poll() (uint64, bool) {
	present := b.pin.Present()
	if present && !b.wasPresent {
		b.wasPresent = true
		return b.clock.NowUs(), true
	}
	if !present {
		b.wasPresent = false
	}
	return 0, false
}

// MockBeam is a BeamSensor driven by a test or simulation, queuing
// timestamps to be returned one per Poll call.
type MockBeam struct {
	mu      sync.Mutex
	pending []uint64
}

// NewMockBeam returns an empty MockBeam.
func NewMockBeam() *MockBeam {
	return &MockBeam{}
}

// Fire queues a trigger at timestamp ts, as if a beam had just broken.
func (m *MockBeam) Fire(ts uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, ts)
}

// Poll returns the next queued trigger, if any.
func (m *MockBeam) Poll() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return 0, false
	}
	ts := m.pending[0]
	m.pending = m.pending[1:]
	return ts, true
}
