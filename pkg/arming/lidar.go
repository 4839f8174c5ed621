package arming

import (
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// LidarDwell is how long a car must sit inside the staging distance
// before the LiDAR source fires its one-shot arm request.
const LidarDwell = 1 * time.Second

// AmplitudeOutOfRangeBelow is the TF-Luna signal-amplitude floor: a
// reading below this is unreliable and treated as out-of-range.
const AmplitudeOutOfRangeBelow = 100

type lidarState uint8

const (
	lidarNoCar lidarState = iota
	lidarCarStaged
	lidarCarLaunched
)

// LiDAR is the arm source driven by a TF-Luna-style distance stream: a
// three-state machine (NO_CAR -> CAR_STAGED -> CAR_LAUNCHED) detects a
// car settling in front of the sensor and, after LidarDwell, fires an
// auto-arm request exactly once.
type LiDAR struct {
	dev         Device
	thresholdCm uint16

	state      lidarState
	stagedAt   time.Time
	dwellFired bool
}

// NewLiDAR returns a LiDAR source reading dev, staging a car when its
// distance drops below thresholdCm.
func NewLiDAR(dev Device, thresholdCm uint16) *LiDAR {
	return &LiDAR{dev: dev, thresholdCm: thresholdCm}
}

// Poll drains any frames received since the last call and evaluates the
// dwell timer; it never blocks.
func (l *LiDAR) Poll(now time.Time) (*domain.ArmRequest, bool) {
	l.drain(now)
	if l.state == lidarCarStaged && !l.dwellFired && now.Sub(l.stagedAt) >= LidarDwell {
		l.dwellFired = true
		return &domain.ArmRequest{Source: domain.ArmSourceLiDAR}, true
	}
	return nil, false
}

func (l *LiDAR) drain(now time.Time) {
	for {
		select {
		case f := <-l.dev.Frames():
			l.handleFrame(f, now)
		default:
			return
		}
	}
}

func (l *LiDAR) handleFrame(f Frame, now time.Time) {
	outOfRange := f.AmplitudeRaw < AmplitudeOutOfRangeBelow
	clear := outOfRange || f.DistanceCm >= l.thresholdCm
	launched := !outOfRange && f.DistanceCm > 3*l.thresholdCm

	switch l.state {
	case lidarNoCar:
		if !clear {
			l.state = lidarCarStaged
			l.stagedAt = now
			l.dwellFired = false
		}
	case lidarCarStaged:
		switch {
		case launched:
			l.state = lidarCarLaunched
		case clear:
			l.state = lidarNoCar
		}
	case lidarCarLaunched:
		if clear {
			l.state = lidarNoCar
		}
	}
}
