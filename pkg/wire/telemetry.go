package wire

import (
	"encoding/binary"
	"fmt"
)

// IMUSampleSize is the wire size of one IMU sample: t_us, ax, ay, az, gx, gy, gz.
const IMUSampleSize = 16

// SamplesPerChunk is the maximum number of IMU samples one TELEM_CHUNK frame carries.
const SamplesPerChunk = 14

// IMUSample is one raw accel/gyro reading with its capture timestamp.
type IMUSample struct {
	TimestampUs uint32
	AX, AY, AZ  int16
	GX, GY, GZ  int16
}

// Marshal encodes one IMU sample into its 16-byte wire form.
func (s IMUSample) Marshal() []byte {
	buf := make([]byte, IMUSampleSize)
	binary.LittleEndian.PutUint32(buf[0:4], s.TimestampUs)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(s.AX))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(s.AY))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(s.AZ))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(s.GX))
	binary.LittleEndian.PutUint16(buf[12:14], uint16(s.GY))
	binary.LittleEndian.PutUint16(buf[14:16], uint16(s.GZ))
	return buf
}

// UnmarshalIMUSample decodes one 16-byte IMU sample.
func UnmarshalIMUSample(buf []byte) (IMUSample, error) {
	if len(buf) != IMUSampleSize {
		return IMUSample{}, fmt.Errorf("wire: IMU sample size mismatch: got %d want %d", len(buf), IMUSampleSize)
	}
	return IMUSample{
		TimestampUs: binary.LittleEndian.Uint32(buf[0:4]),
		AX:          int16(binary.LittleEndian.Uint16(buf[4:6])),
		AY:          int16(binary.LittleEndian.Uint16(buf[6:8])),
		AZ:          int16(binary.LittleEndian.Uint16(buf[8:10])),
		GX:          int16(binary.LittleEndian.Uint16(buf[10:12])),
		GY:          int16(binary.LittleEndian.Uint16(buf[12:14])),
		GZ:          int16(binary.LittleEndian.Uint16(buf[14:16])),
	}, nil
}

// Physical-unit conversion factors for telemetry CSV export (§4.9).
const (
	AccelLSBToG   = 0.000488
	GyroLSBToDps  = 0.070
)

// TelemetryHeader announces a new telemetry run and its sample layout.
type TelemetryHeader struct {
	RunID          uint32
	SampleCount    uint16
	SampleRate     uint16
	AccelRange     uint8
	GyroRangeDiv100 uint16
	DurationMs     uint32
	StartTs        uint64
}

const telemetryHeaderSize = 4 + 2 + 2 + 1 + 2 + 4 + 8

// Marshal encodes the telemetry header frame.
func (h TelemetryHeader) Marshal() []byte {
	buf := make([]byte, telemetryHeaderSize)
	i := 0
	binary.LittleEndian.PutUint32(buf[i:i+4], h.RunID)
	i += 4
	binary.LittleEndian.PutUint16(buf[i:i+2], h.SampleCount)
	i += 2
	binary.LittleEndian.PutUint16(buf[i:i+2], h.SampleRate)
	i += 2
	buf[i] = h.AccelRange
	i++
	binary.LittleEndian.PutUint16(buf[i:i+2], h.GyroRangeDiv100)
	i += 2
	binary.LittleEndian.PutUint32(buf[i:i+4], h.DurationMs)
	i += 4
	binary.LittleEndian.PutUint64(buf[i:i+8], h.StartTs)
	return buf
}

// UnmarshalTelemetryHeader decodes a telemetry header frame.
func UnmarshalTelemetryHeader(buf []byte) (TelemetryHeader, error) {
	if len(buf) != telemetryHeaderSize {
		return TelemetryHeader{}, fmt.Errorf("wire: telemetry header size mismatch: got %d want %d", len(buf), telemetryHeaderSize)
	}
	var h TelemetryHeader
	i := 0
	h.RunID = binary.LittleEndian.Uint32(buf[i : i+4])
	i += 4
	h.SampleCount = binary.LittleEndian.Uint16(buf[i : i+2])
	i += 2
	h.SampleRate = binary.LittleEndian.Uint16(buf[i : i+2])
	i += 2
	h.AccelRange = buf[i]
	i++
	h.GyroRangeDiv100 = binary.LittleEndian.Uint16(buf[i : i+2])
	i += 2
	h.DurationMs = binary.LittleEndian.Uint32(buf[i : i+4])
	i += 4
	h.StartTs = binary.LittleEndian.Uint64(buf[i : i+8])
	return h, nil
}

// TelemetryChunk carries up to SamplesPerChunk IMU samples.
type TelemetryChunk struct {
	ChunkIndex     uint8
	TotalChunks    uint8
	SamplesInChunk uint8
	RunID          uint32
	Samples        [SamplesPerChunk]IMUSample
}

const telemetryChunkSize = 1 + 1 + 1 + 4 + SamplesPerChunk*IMUSampleSize

// Marshal encodes the telemetry chunk frame.
func (c TelemetryChunk) Marshal() []byte {
	buf := make([]byte, telemetryChunkSize)
	buf[0] = c.ChunkIndex
	buf[1] = c.TotalChunks
	buf[2] = c.SamplesInChunk
	binary.LittleEndian.PutUint32(buf[3:7], c.RunID)
	off := 7
	for i := 0; i < SamplesPerChunk; i++ {
		copy(buf[off:off+IMUSampleSize], c.Samples[i].Marshal())
		off += IMUSampleSize
	}
	return buf
}

// UnmarshalTelemetryChunk decodes a telemetry chunk frame.
func UnmarshalTelemetryChunk(buf []byte) (TelemetryChunk, error) {
	if len(buf) != telemetryChunkSize {
		return TelemetryChunk{}, fmt.Errorf("wire: telemetry chunk size mismatch: got %d want %d", len(buf), telemetryChunkSize)
	}
	var c TelemetryChunk
	c.ChunkIndex = buf[0]
	c.TotalChunks = buf[1]
	c.SamplesInChunk = buf[2]
	c.RunID = binary.LittleEndian.Uint32(buf[3:7])
	off := 7
	for i := 0; i < SamplesPerChunk; i++ {
		s, err := UnmarshalIMUSample(buf[off : off+IMUSampleSize])
		if err != nil {
			return TelemetryChunk{}, err
		}
		c.Samples[i] = s
		off += IMUSampleSize
	}
	return c, nil
}

// TelemetryEnd closes a run and carries the sender's CRC-16 for verification.
type TelemetryEnd struct {
	RunID       uint32
	SampleCount uint16
	ChecksumCRC16 uint16
}

const telemetryEndSize = 4 + 2 + 2

// Marshal encodes the telemetry end frame.
func (e TelemetryEnd) Marshal() []byte {
	buf := make([]byte, telemetryEndSize)
	binary.LittleEndian.PutUint32(buf[0:4], e.RunID)
	binary.LittleEndian.PutUint16(buf[4:6], e.SampleCount)
	binary.LittleEndian.PutUint16(buf[6:8], e.ChecksumCRC16)
	return buf
}

// UnmarshalTelemetryEnd decodes a telemetry end frame.
func UnmarshalTelemetryEnd(buf []byte) (TelemetryEnd, error) {
	if len(buf) != telemetryEndSize {
		return TelemetryEnd{}, fmt.Errorf("wire: telemetry end size mismatch: got %d want %d", len(buf), telemetryEndSize)
	}
	return TelemetryEnd{
		RunID:         binary.LittleEndian.Uint32(buf[0:4]),
		SampleCount:   binary.LittleEndian.Uint16(buf[4:6]),
		ChecksumCRC16: binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}

// CRC16 computes the CRC-16/MODBUS checksum (reflected poly 0xA001, init 0xFFFF) the
// telemetry end marker is verified against.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
