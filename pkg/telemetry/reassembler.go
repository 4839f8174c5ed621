// Package telemetry reassembles the finish node's fragmented IMU capture
// (one HEADER, many CHUNKs, one END) into a physical-unit sample set,
// mirroring the teacher's accumulate-then-flush-on-trigger shape from its
// lap reducer but with one active buffer rather than one per key, since
// the hardware only ever reassembles a single in-flight capture at a time.
package telemetry

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Ryan4n6/MASS-Trap/pkg/wire"
)

// MaxSampleCount is the sanity ceiling on a HEADER's sample_count: the
// firmware's capture buffer lives in a fixed pool of RAM, so a reported
// count past this is treated as a corrupt or malicious frame rather than
// a real capture, the same role AmplitudeOutOfRangeBelow plays for LiDAR.
const MaxSampleCount = 4096

// PhysicalSample is one IMU reading converted to physical units.
type PhysicalSample struct {
	TimestampUs uint32
	AccelG      [3]float64
	GyroDps     [3]float64
}

// Sink receives a fully reassembled capture.
type Sink interface {
	EmitRun(header wire.TelemetryHeader, samples []PhysicalSample, crcOK bool) error
}

// Reassembler holds the single in-progress telemetry capture. A fresh
// HEADER always frees whatever buffer was in progress, matching the
// spec's "no explicit reassembly timeout" rule.
type Reassembler struct {
	mu sync.Mutex
	log zerolog.Logger
	sink Sink

	active   bool
	runID    uint32
	header   wire.TelemetryHeader
	samples  []wire.IMUSample
}

// New returns an empty Reassembler emitting completed captures to sink.
func New(sink Sink, log zerolog.Logger) *Reassembler {
	return &Reassembler{sink: sink, log: log}
}

// HandleHeader allocates a fresh sample buffer for h.RunID, discarding
// any capture already in progress. A sample_count past MaxSampleCount is
// treated as an allocation failure: it is logged and the header dropped,
// leaving whatever capture (if any) was already in progress untouched.
func (r *Reassembler) HandleHeader(h wire.TelemetryHeader) {
	if h.SampleCount > MaxSampleCount {
		r.log.Error().
			Uint32("run_id", h.RunID).
			Uint16("sample_count", h.SampleCount).
			Msg("telemetry allocation failed, sample_count too large")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.runID = h.RunID
	r.header = h
	r.samples = make([]wire.IMUSample, h.SampleCount)
}

// HandleChunk copies a chunk's samples into the buffer at the position
// implied by its chunk index, bounds-checked against the allocated
// buffer. A chunk whose run_id does not match the active capture is
// silently dropped as stale.
func (r *Reassembler) HandleChunk(c wire.TelemetryChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || c.RunID != r.runID {
		return
	}
	start := int(c.ChunkIndex) * wire.SamplesPerChunk
	for i := 0; i < int(c.SamplesInChunk); i++ {
		idx := start + i
		if idx < 0 || idx >= len(r.samples) {
			continue
		}
		r.samples[idx] = c.Samples[i]
	}
}

// HandleEnd verifies the capture's CRC-16 against the buffered samples
// (logging, not discarding, on mismatch), converts to physical units,
// hands the result to the sink, and frees the buffer regardless of
// outcome. It reports false without emitting anything if e.RunID does
// not match the capture in progress.
func (r *Reassembler) HandleEnd(e wire.TelemetryEnd) (bool, error) {
	r.mu.Lock()
	if !r.active || e.RunID != r.runID {
		r.mu.Unlock()
		return false, nil
	}
	header := r.header
	samples := r.samples
	r.active = false
	r.samples = nil
	r.mu.Unlock()

	if e.SampleCount != uint16(len(samples)) {
		r.log.Warn().
			Uint32("run_id", e.RunID).
			Uint16("expected", uint16(len(samples))).
			Uint16("reported", e.SampleCount).
			Msg("telemetry sample count mismatch")
	}

	computed := wire.CRC16(flatten(samples))
	crcOK := computed == e.ChecksumCRC16
	if !crcOK {
		r.log.Warn().
			Uint32("run_id", e.RunID).
			Uint16("computed", computed).
			Uint16("reported", e.ChecksumCRC16).
			Msg("telemetry CRC mismatch, emitting data anyway")
	}

	physical := convert(samples)
	err := r.sink.EmitRun(header, physical, crcOK)
	return crcOK, err
}

func flatten(samples []wire.IMUSample) []byte {
	buf := make([]byte, 0, len(samples)*wire.IMUSampleSize)
	for _, s := range samples {
		buf = append(buf, s.Marshal()...)
	}
	return buf
}

func convert(samples []wire.IMUSample) []PhysicalSample {
	out := make([]PhysicalSample, len(samples))
	for i, s := range samples {
		out[i] = PhysicalSample{
			TimestampUs: s.TimestampUs,
			AccelG: [3]float64{
				float64(s.AX) * wire.AccelLSBToG,
				float64(s.AY) * wire.AccelLSBToG,
				float64(s.AZ) * wire.AccelLSBToG,
			},
			GyroDps: [3]float64{
				float64(s.GX) * wire.GyroLSBToDps,
				float64(s.GY) * wire.GyroLSBToDps,
				float64(s.GZ) * wire.GyroLSBToDps,
			},
		}
	}
	return out
}
