package arming

import (
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// ProximityDwell is how long the sensor must read "present" before the
// proximity source fires an arm request.
const ProximityDwell = 500 * time.Millisecond

// PinReader abstracts the digital proximity input: Present reports
// whether a car currently occupies the sensor (LOW = present on the
// original hardware).
type PinReader interface {
	Present() bool
}

// Proximity is the reflectance-sensor arm source. It fires once per
// dwell and then requires the sensor to read clear before it will dwell
// again, so a car left sitting on the sensor cannot re-arm the track by
// itself.
type Proximity struct {
	pin PinReader

	presentSince time.Time
	dwellFired   bool
	mustSeeClear bool
}

// NewProximity returns a Proximity source reading pin. The interlock
// starts engaged, matching the original firmware's boot default.
func NewProximity(pin PinReader) *Proximity {
	return &Proximity{pin: pin, mustSeeClear: true}
}

// Poll evaluates the dwell/interlock state machine; it never blocks.
func (p *Proximity) Poll(now time.Time) (*domain.ArmRequest, bool) {
	present := p.pin.Present()

	if p.mustSeeClear {
		if !present {
			p.mustSeeClear = false
			p.presentSince = time.Time{}
			p.dwellFired = false
		}
		return nil, false
	}

	if !present {
		p.presentSince = time.Time{}
		p.dwellFired = false
		return nil, false
	}

	if p.presentSince.IsZero() {
		p.presentSince = now
	}
	if !p.dwellFired && now.Sub(p.presentSince) >= ProximityDwell {
		p.dwellFired = true
		p.mustSeeClear = true
		return &domain.ArmRequest{Source: domain.ArmSourceProximity}, true
	}
	return nil, false
}

// ResetInterlock re-engages the "must see clear first" interlock,
// called on every transition into IDLE.
func (p *Proximity) ResetInterlock() {
	p.mustSeeClear = true
	p.presentSince = time.Time{}
	p.dwellFired = false
}
