package arming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

func TestExplicitFiresOnce(t *testing.T) {
	e := NewExplicit()
	_, ok := e.Poll(time.Now())
	require.False(t, ok)

	e.Fire()
	req, ok := e.Poll(time.Now())
	require.True(t, ok)
	require.Equal(t, domain.ArmSourceExplicit, req.Source)

	_, ok = e.Poll(time.Now())
	require.False(t, ok, "Fire must be consumed exactly once")
}

func TestDecodeFrameChecksum(t *testing.T) {
	// distance=150cm (0x96,0x00), amplitude=500 (0xF4,0x01), temp ignored.
	buf := []byte{0x59, 0x59, 0x96, 0x00, 0xF4, 0x01, 0x00, 0x00, 0}
	var sum byte
	for i := 0; i < 8; i++ {
		sum += buf[i]
	}
	buf[8] = sum

	f, ok := DecodeFrame(buf)
	require.True(t, ok)
	require.Equal(t, uint16(150), f.DistanceCm)
	require.Equal(t, uint16(500), f.AmplitudeRaw)
}

func TestDecodeFrameRejectsBadChecksum(t *testing.T) {
	buf := []byte{0x59, 0x59, 0x96, 0x00, 0xF4, 0x01, 0x00, 0x00, 0xFF}
	_, ok := DecodeFrame(buf)
	require.False(t, ok)
}

func TestDecodeFrameRejectsMissingSync(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x96, 0x00, 0xF4, 0x01, 0x00, 0x00, 0x00}
	_, ok := DecodeFrame(buf)
	require.False(t, ok)
}

func pushStagedThenDwell(t *testing.T, l *LiDAR, dev *Mock, distanceCm uint16, amplitude uint16) {
	t.Helper()
	dev.Push(Frame{DistanceCm: distanceCm, AmplitudeRaw: amplitude})
	_, ok := l.Poll(time.Now())
	require.False(t, ok, "must not fire before dwell elapses")
}

func TestLiDARDwellFiresArmRequest(t *testing.T) {
	dev := NewMock()
	l := NewLiDAR(dev, 50)

	pushStagedThenDwell(t, l, dev, 20, 500)

	req, ok := l.Poll(time.Now().Add(LidarDwell + time.Millisecond))
	require.True(t, ok)
	require.Equal(t, domain.ArmSourceLiDAR, req.Source)

	_, ok = l.Poll(time.Now().Add(2 * LidarDwell))
	require.False(t, ok, "dwell must only fire once per staging")
}

func TestLiDARLowAmplitudeTreatedOutOfRange(t *testing.T) {
	dev := NewMock()
	l := NewLiDAR(dev, 50)

	dev.Push(Frame{DistanceCm: 20, AmplitudeRaw: 99})
	l.Poll(time.Now())
	require.Equal(t, lidarNoCar, l.state, "amplitude below 100 must not stage a car even if close")

	dev.Push(Frame{DistanceCm: 20, AmplitudeRaw: 100})
	l.Poll(time.Now())
	require.Equal(t, lidarCarStaged, l.state)
}

func TestLiDARClearReturnsToNoCar(t *testing.T) {
	dev := NewMock()
	l := NewLiDAR(dev, 50)
	dev.Push(Frame{DistanceCm: 20, AmplitudeRaw: 500})
	l.Poll(time.Now())
	require.Equal(t, lidarCarStaged, l.state)

	dev.Push(Frame{DistanceCm: 60, AmplitudeRaw: 500})
	l.Poll(time.Now())
	require.Equal(t, lidarNoCar, l.state)
}

func TestLiDARJumpToLaunchedThenClear(t *testing.T) {
	dev := NewMock()
	l := NewLiDAR(dev, 50)
	dev.Push(Frame{DistanceCm: 20, AmplitudeRaw: 500})
	l.Poll(time.Now())
	require.Equal(t, lidarCarStaged, l.state)

	dev.Push(Frame{DistanceCm: 200, AmplitudeRaw: 500}) // > 3x threshold
	l.Poll(time.Now())
	require.Equal(t, lidarCarLaunched, l.state)

	dev.Push(Frame{DistanceCm: 60, AmplitudeRaw: 500})
	l.Poll(time.Now())
	require.Equal(t, lidarNoCar, l.state)
}

type fakePin struct{ present bool }

func (f *fakePin) Present() bool { return f.present }

func TestProximityDwellFiresThenInterlocks(t *testing.T) {
	pin := &fakePin{}
	p := NewProximity(pin)

	// boot interlock: present=false clears it.
	_, ok := p.Poll(time.Now())
	require.False(t, ok)

	pin.present = true
	now := time.Now()
	_, ok = p.Poll(now)
	require.False(t, ok)

	_, ok = p.Poll(now.Add(ProximityDwell + time.Millisecond))
	require.True(t, ok)

	_, ok = p.Poll(now.Add(2 * ProximityDwell))
	require.False(t, ok, "still present: interlock must block re-arm")
}

func TestProximityReArmScenario(t *testing.T) {
	pin := &fakePin{}
	p := NewProximity(pin)
	p.Poll(time.Now()) // clear boot interlock

	pin.present = true
	now := time.Now()
	p.Poll(now)
	req, ok := p.Poll(now.Add(ProximityDwell + time.Millisecond))
	require.True(t, ok)
	require.Equal(t, domain.ArmSourceProximity, req.Source)

	// car A removed: sensor clears, interlock releases.
	pin.present = false
	_, ok = p.Poll(now.Add(ProximityDwell + 2*time.Millisecond))
	require.False(t, ok)

	// car B placed: dwell, arm again.
	pin.present = true
	now2 := now.Add(time.Second)
	p.Poll(now2)
	_, ok = p.Poll(now2.Add(ProximityDwell + time.Millisecond))
	require.True(t, ok)
}

func TestProximityResetInterlockOnIdleTransition(t *testing.T) {
	pin := &fakePin{present: true}
	p := NewProximity(pin)
	p.Poll(time.Now()) // boot interlock blocks while present, stays engaged

	p.mustSeeClear = false // simulate interlock already cleared from an earlier cycle
	p.ResetInterlock()
	_, ok := p.Poll(time.Now())
	require.False(t, ok, "reset interlock must require a fresh clear before dwelling")
}

func TestPipelineOrSemantics(t *testing.T) {
	e := NewExplicit()
	dev := NewMock()
	l := NewLiDAR(dev, 50)
	pipeline := NewPipeline(e, l)

	_, ok := pipeline.Poll(time.Now())
	require.False(t, ok)

	e.Fire()
	req, ok := pipeline.Poll(time.Now())
	require.True(t, ok)
	require.Equal(t, domain.ArmSourceExplicit, req.Source)
}
