package race

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/racestate"
)

// FinishAutoReset is how long Finish stays in FINISHED before resetting.
const FinishAutoReset = 5 * time.Second

// MaxRaceElapsedUs is the sanity ceiling on elapsed race time; anything
// outside (0, MaxRaceElapsedUs] is reported as a timing error.
const MaxRaceElapsedUs = 60_000_000

const mpsToMph = 2.2369362920544

// RaceParams are the per-run inputs supplied when the finish node is
// armed: which car is racing and how much it weighs, needed to compute
// momentum and kinetic energy once the run completes.
type RaceParams struct {
	Car     string
	WeightG float64
}

// RunLogger appends one completed run to the persistent race log.
type RunLogger interface {
	LogRun(domain.RaceResult) error
}

// Finish is the finish-line node's race state machine: IDLE -> ARMED on
// user arm (the caller is responsible for emitting ARM_CMD to peers),
// ARMED -> RACING on a received START frame, RACING -> FINISHED on its
// own beam trigger, FINISHED -> IDLE after FinishAutoReset.
type Finish struct {
	state   racestate.State
	timeout racestate.Deadline

	trackLengthM float64
	scaleFactor  float64
	dryRun       bool
	logger       RunLogger
	log          zerolog.Logger

	params     RaceParams
	startLocal int64 // t_s_local, signed: start trigger translated to this clock
}

// NewFinish returns a Finish machine in IDLE. trackLengthM is the
// configured distance between start and finish beams; scaleFactor
// converts true measured speed into the die-cast model's equivalent
// full-size speed for scale_mph.
func NewFinish(trackLengthM, scaleFactor float64, dryRun bool, logger RunLogger, log zerolog.Logger) *Finish {
	return &Finish{
		trackLengthM: trackLengthM,
		scaleFactor:  scaleFactor,
		dryRun:       dryRun,
		logger:       logger,
		log:          log,
	}
}

// State returns the current race state.
func (f *Finish) State() domain.RaceState { return f.state.Load() }

// Arm transitions IDLE -> ARMED and records the run's car/weight inputs.
// The caller still owns emitting ARM_CMD downstream.
func (f *Finish) Arm(params RaceParams) bool {
	if !f.state.CompareAndSwap(domain.Idle, domain.Armed) {
		return false
	}
	f.params = params
	f.startLocal = 0
	return true
}

// Disarm is the DISARM_CMD-received event: ARMED -> IDLE, cancelling a
// pending run before any START has arrived.
func (f *Finish) Disarm() bool {
	if !f.state.CompareAndSwap(domain.Armed, domain.Idle) {
		return false
	}
	f.startLocal = 0
	return true
}

// HandleStart is the START-received event: ARMED -> RACING, recording
// the start trigger translated into this node's clock.
func (f *Finish) HandleStart(tsLocal int64) bool {
	if !f.state.CompareAndSwap(domain.Armed, domain.Racing) {
		return false
	}
	f.startLocal = tsLocal
	return true
}

// Trigger is this node's own beam-break event: RACING -> FINISHED. It
// computes and returns the race result, arms the auto-reset timer, and
// (unless dry-run) appends a CSV row.
func (f *Finish) Trigger(tfUs uint64) (domain.RaceResult, bool) {
	if !f.state.CompareAndSwap(domain.Racing, domain.Finished) {
		return domain.RaceResult{}, false
	}
	f.timeout.Arm(time.Now().Add(FinishAutoReset), domain.Idle)

	result := f.computeResult(int64(tfUs))

	if !f.dryRun && !result.TimingError && f.logger != nil {
		if err := f.logger.LogRun(result); err != nil {
			f.log.Warn().Err(err).Msg("failed to append run log row")
		}
	}
	return result, true
}

func (f *Finish) computeResult(tfUs int64) domain.RaceResult {
	elapsed := tfUs - f.startLocal
	result := domain.RaceResult{
		RunID:   ksuid.New().String(),
		Car:     f.params.Car,
		WeightG: f.params.WeightG,
	}

	if elapsed <= 0 || elapsed > MaxRaceElapsedUs {
		result.TimingError = true
		return result
	}

	result.ElapsedUs = elapsed
	elapsedS := float64(elapsed) / 1_000_000.0
	speedMps := f.trackLengthM / elapsedS
	massKg := f.params.WeightG / 1000.0

	result.SpeedMps = speedMps
	result.SpeedMph = speedMps * mpsToMph
	result.ScaleMph = result.SpeedMph * f.scaleFactor
	result.MomentumKgMs = massKg * speedMps
	result.KineticJ = 0.5 * massKg * speedMps * speedMps
	return result
}

// Tick advances the auto-reset deadline, reporting whether FINISHED ->
// IDLE occurred.
func (f *Finish) Tick(now time.Time) bool {
	if !f.timeout.Due(now) {
		return false
	}
	prev := f.state.Load()
	f.state.CompareAndSwap(prev, domain.Idle)
	f.timeout.Disarm()
	f.startLocal = 0
	return true
}
