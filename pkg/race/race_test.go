package race

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

type fakeLogger struct {
	rows []domain.RaceResult
}

func (f *fakeLogger) LogRun(r domain.RaceResult) error {
	f.rows = append(f.rows, r)
	return nil
}

func TestStartHappyPath(t *testing.T) {
	s := NewStart()
	require.Equal(t, domain.Idle, s.State())
	require.True(t, s.Arm())
	require.Equal(t, domain.Armed, s.State())

	ts, ok := s.Trigger(10_000_000)
	require.True(t, ok)
	require.Equal(t, uint64(10_000_000), ts)
	require.Equal(t, domain.Racing, s.State())

	require.True(t, s.HandleConfirm(time.Now()))
	require.Equal(t, domain.Finished, s.State())
}

func TestStartTriggerIgnoredWhenNotArmed(t *testing.T) {
	s := NewStart()
	_, ok := s.Trigger(123)
	require.False(t, ok)
	require.Equal(t, domain.Idle, s.State())
}

func TestStartRaceTimeoutReturnsToIdle(t *testing.T) {
	s := NewStart()
	s.Arm()
	s.Trigger(1000)
	require.Equal(t, domain.Racing, s.State())

	require.False(t, s.Tick(time.Now()))
	require.True(t, s.Tick(time.Now().Add(RaceTimeout+time.Millisecond)))
	require.Equal(t, domain.Idle, s.State())
	require.Equal(t, uint64(0), s.TriggerTimeUs())
}

func TestStartAutoResetAfterFinished(t *testing.T) {
	s := NewStart()
	s.Arm()
	s.Trigger(1000)
	now := time.Now()
	s.HandleConfirm(now)
	require.False(t, s.Tick(now))
	require.True(t, s.Tick(now.Add(StartAutoReset+time.Millisecond)))
	require.Equal(t, domain.Idle, s.State())
}

func TestStartDisarmReturnsToIdleWithoutWaitingOutTimeout(t *testing.T) {
	s := NewStart()
	s.Arm()
	require.True(t, s.Disarm())
	require.Equal(t, domain.Idle, s.State())
	require.False(t, s.Tick(time.Now()), "disarm already cleared the deadline")
}

func TestStartDisarmNoopWhenNotArmed(t *testing.T) {
	s := NewStart()
	s.Arm()
	s.Trigger(1000)
	require.False(t, s.Disarm(), "disarm only cancels ARMED, not RACING")
	require.Equal(t, domain.Racing, s.State())
}

func TestFinishHappyRaceMatchesWorkedExample(t *testing.T) {
	logger := &fakeLogger{}
	f := NewFinish(2.0, 1.0, false, logger, zerolog.Nop())

	require.True(t, f.Arm(RaceParams{Car: "Hot Wheels Twin Mill", WeightG: 35}))
	require.True(t, f.HandleStart(9_999_500))

	result, ok := f.Trigger(10_532_500)
	require.True(t, ok)
	require.False(t, result.TimingError)
	require.Equal(t, int64(533_000), result.ElapsedUs)
	require.InDelta(t, 3.7523, result.SpeedMps, 0.001)
	require.InDelta(t, 8.39, result.SpeedMph, 0.01)
	require.InDelta(t, 0.1313, result.MomentumKgMs, 0.001)
	require.InDelta(t, 0.2464, result.KineticJ, 0.001)
	require.Len(t, logger.rows, 1)
}

func TestFinishTimingErrorOnNonPositiveElapsed(t *testing.T) {
	logger := &fakeLogger{}
	f := NewFinish(2.0, 1.0, false, logger, zerolog.Nop())
	f.Arm(RaceParams{Car: "x", WeightG: 10})
	f.HandleStart(10_000_000)

	result, ok := f.Trigger(9_999_999) // finish "before" translated start
	require.True(t, ok)
	require.True(t, result.TimingError)
	require.Zero(t, result.SpeedMps)
	require.Empty(t, logger.rows, "a failed timing must not append a CSV row")
}

func TestFinishTimingErrorOverSixtySeconds(t *testing.T) {
	logger := &fakeLogger{}
	f := NewFinish(2.0, 1.0, false, logger, zerolog.Nop())
	f.Arm(RaceParams{Car: "x", WeightG: 10})
	f.HandleStart(0)

	boundary := f.computeResult(MaxRaceElapsedUs)
	require.False(t, boundary.TimingError, "exactly 60s is still valid")

	overBoundary := f.computeResult(MaxRaceElapsedUs + 1)
	require.True(t, overBoundary.TimingError, "60s + 1us must be a timing error")
}

func TestFinishDryRunSkipsLogging(t *testing.T) {
	logger := &fakeLogger{}
	f := NewFinish(2.0, 1.0, true, logger, zerolog.Nop())
	f.Arm(RaceParams{Car: "x", WeightG: 10})
	f.HandleStart(0)
	_, ok := f.Trigger(1_000_000)
	require.True(t, ok)
	require.Empty(t, logger.rows)
}

func TestFinishDisarmCancelsPendingRun(t *testing.T) {
	f := NewFinish(2.0, 1.0, true, nil, zerolog.Nop())
	f.Arm(RaceParams{Car: "x", WeightG: 10})
	require.True(t, f.Disarm())
	require.Equal(t, domain.Idle, f.State())
}

func TestFinishAutoResetAfterFiveSeconds(t *testing.T) {
	f := NewFinish(2.0, 1.0, true, nil, zerolog.Nop())
	f.Arm(RaceParams{Car: "x", WeightG: 10})
	f.HandleStart(0)
	f.Trigger(1_000_000)
	now := time.Now()
	require.False(t, f.Tick(now))
	require.True(t, f.Tick(now.Add(FinishAutoReset+time.Millisecond)))
	require.Equal(t, domain.Idle, f.State())
}
