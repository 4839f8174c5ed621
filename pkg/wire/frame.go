// Package wire implements the fixed-layout control-frame codec and the
// telemetry chunking format described in the M.A.S.S. Trap wire protocol.
// The codec is pure: it never touches global state, and a size mismatch is
// reported to the caller rather than silently guessed at.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// ControlFrameSize is the fixed size of every non-telemetry frame: an
// 18-byte header (type, sender ID, timestamp, offset) followed by the
// 16-byte role and 32-byte hostname fields.
const ControlFrameSize = 66

const (
	roleFieldLen     = 16
	hostnameFieldLen = 32
)

// ControlFrame is the common envelope carried by every non-telemetry message.
// OffsetI64 is overloaded: a clock offset, a fixed-point speed, packed
// diagnostics, or a sample count, depending on Type — see UnpackDiag and
// DecodeSpeed.
type ControlFrame struct {
	Type        domain.FrameType
	SenderID    uint8
	TimestampUs uint64
	OffsetI64   int64
	Role        string
	Hostname    string
}

// Marshal encodes f into a ControlFrameSize-byte little-endian buffer.
func (f ControlFrame) Marshal() []byte {
	buf := make([]byte, ControlFrameSize)
	buf[0] = uint8(f.Type)
	buf[1] = f.SenderID
	binary.LittleEndian.PutUint64(buf[2:10], f.TimestampUs)
	binary.LittleEndian.PutUint64(buf[10:18], uint64(f.OffsetI64))
	putFixedString(buf[18:18+roleFieldLen], f.Role)
	putFixedString(buf[18+roleFieldLen:18+roleFieldLen+hostnameFieldLen], f.Hostname)
	return buf
}

// UnmarshalControlFrame decodes a control frame. A size mismatch is an
// error the caller is expected to drop the frame on, per §4.2.
func UnmarshalControlFrame(buf []byte) (ControlFrame, error) {
	if len(buf) != ControlFrameSize {
		return ControlFrame{}, fmt.Errorf("wire: control frame size mismatch: got %d want %d", len(buf), ControlFrameSize)
	}
	f := ControlFrame{
		Type:        domain.FrameType(buf[0]),
		SenderID:    buf[1],
		TimestampUs: binary.LittleEndian.Uint64(buf[2:10]),
		OffsetI64:   int64(binary.LittleEndian.Uint64(buf[10:18])),
		Role:        getFixedString(buf[18 : 18+roleFieldLen]),
		Hostname:    getFixedString(buf[18+roleFieldLen : 18+roleFieldLen+hostnameFieldLen]),
	}
	return f, nil
}

// putFixedString copies at most len(dst)-1 bytes of s so the field always
// ends in a NUL, like the C string fields of the original frame.
func putFixedString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getFixedString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// PackDiag packs beacon diagnostics into the overloaded OffsetI64 field:
// [uptime_min:16 | free_heap_kb:16 | rssi_encoded:8 | race_state:8 | fw_major:8 | fw_minor:8]
// from MSB, with rssi_encoded = rssi_dbm + 128.
func PackDiag(d domain.Diagnostics) int64 {
	rssi := uint8(int16(d.RSSIdBm) + 128)
	var v uint64
	v |= uint64(d.UptimeMin) << 48
	v |= uint64(d.FreeHeapKB) << 32
	v |= uint64(rssi) << 24
	v |= uint64(d.RaceState) << 16
	v |= uint64(d.FWMajor) << 8
	v |= uint64(d.FWMinor)
	return int64(v)
}

// UnpackDiag is the inverse of PackDiag.
func UnpackDiag(packed int64) domain.Diagnostics {
	v := uint64(packed)
	return domain.Diagnostics{
		UptimeMin:  uint16(v >> 48),
		FreeHeapKB: uint16(v >> 32),
		RSSIdBm:    int8(int16(uint8(v>>24)) - 128),
		RaceState:  domain.RaceState(uint8(v >> 16)),
		FWMajor:    uint8(v >> 8),
		FWMinor:    uint8(v),
	}
}

// SpeedFixedPointScale is the fixed-point scale speed-trap measurements use
// when encoded into OffsetI64 (v_mps * 10000).
const SpeedFixedPointScale = 10000.0

// EncodeSpeed converts a m/s measurement to the fixed-point wire encoding.
func EncodeSpeed(mps float64) int64 {
	return int64(mps * SpeedFixedPointScale)
}

// DecodeSpeed converts a fixed-point wire value back to m/s.
func DecodeSpeed(encoded int64) float64 {
	return float64(encoded) / SpeedFixedPointScale
}
