// Package offsetsync estimates the clock offset between a finish node and
// its paired start node from a single round-trip sample, so timestamps
// captured on either clock can be compared.
package offsetsync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Ryan4n6/MASS-Trap/pkg/clock"
	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/radio"
	"github.com/Ryan4n6/MASS-Trap/pkg/wire"
)

// ResyncPeriod is how often the finish node re-samples the offset while
// its paired start is online.
const ResyncPeriod = 30 * time.Second

// Estimator runs on the finish node only. It holds the current signed
// offset (start clock minus finish clock, in microseconds) and knows how
// to translate a start-clock timestamp into finish-clock time.
type Estimator struct {
	clock     clock.Source
	transport radio.Transport
	log       zerolog.Logger

	offset  int64
	hasSync bool
}

// New returns an Estimator reading the local clock from src.
func New(src clock.Source, transport radio.Transport, log zerolog.Logger) *Estimator {
	return &Estimator{clock: src, transport: transport, log: log}
}

// RequestSync sends SYNC_REQ to the paired start, carrying this node's
// current time so logs can correlate request and reply.
func (e *Estimator) RequestSync(startMAC domain.MAC, selfID uint8) error {
	f := wire.ControlFrame{
		Type:        domain.FrameSyncReq,
		SenderID:    selfID,
		TimestampUs: e.clock.NowUs(),
	}
	return e.transport.Send(startMAC, f.Marshal())
}

// HandleOffset processes an OFFSET reply: tsS is the start's clock value
// embedded in the frame, receiveTimeUs is the finish-clock time the radio
// callback captured when the frame arrived (before dispatch, per spec).
func (e *Estimator) HandleOffset(tsS uint64, receiveTimeUs uint64) {
	sample := int64(tsS) - int64(receiveTimeUs)
	if e.hasSync {
		drift := sample - e.offset
		if drift < 0 {
			drift = -drift
		}
		if drift > 0 {
			e.log.Debug().Int64("drift_us", drift).Msg("clock offset drift observed")
		}
	}
	e.offset = sample
	e.hasSync = true
}

// Offset returns the current offset estimate and whether one has ever
// been taken.
func (e *Estimator) Offset() (int64, bool) {
	return e.offset, e.hasSync
}

// Translate converts a start-clock timestamp into the equivalent
// finish-clock time: t_s_local = ts_s - offset.
func (e *Estimator) Translate(tsS uint64) int64 {
	return int64(tsS) - e.offset
}
