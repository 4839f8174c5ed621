package wire

import (
	"testing"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/stretchr/testify/require"
)

func TestControlFrameRoundTrip(t *testing.T) {
	f := ControlFrame{
		Type:        domain.FrameStart,
		SenderID:    7,
		TimestampUs: 10_000_000,
		OffsetI64:   -500,
		Role:        "start",
		Hostname:    "gate-01",
	}
	buf := f.Marshal()
	require.Len(t, buf, ControlFrameSize)

	got, err := UnmarshalControlFrame(buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestControlFrameSizeMismatchDropped(t *testing.T) {
	_, err := UnmarshalControlFrame(make([]byte, 10))
	require.Error(t, err)
}

func TestControlFrameLongStringsTruncate(t *testing.T) {
	f := ControlFrame{
		Type:     domain.FrameBeacon,
		Role:     "this-role-name-is-way-too-long-to-fit",
		Hostname: "this-hostname-is-also-far-too-long-to-fit-in-32-bytes",
	}
	buf := f.Marshal()
	got, err := UnmarshalControlFrame(buf)
	require.NoError(t, err)
	require.LessOrEqual(t, len(got.Role), 15)
	require.LessOrEqual(t, len(got.Hostname), 31)
}

func TestDiagPackUnpackRoundTrip(t *testing.T) {
	cases := []domain.Diagnostics{
		{UptimeMin: 0, FreeHeapKB: 0, RSSIdBm: -128, RaceState: domain.Idle, FWMajor: 0, FWMinor: 0},
		{UptimeMin: 65535, FreeHeapKB: 65535, RSSIdBm: 127, RaceState: domain.Finished, FWMajor: 255, FWMinor: 255},
		{UptimeMin: 120, FreeHeapKB: 180, RSSIdBm: -42, RaceState: domain.Racing, FWMajor: 2, FWMinor: 3},
	}
	for _, d := range cases {
		packed := PackDiag(d)
		got := UnpackDiag(packed)
		require.Equal(t, d, got)
	}
}

func TestSpeedFixedPointEncoding(t *testing.T) {
	encoded := EncodeSpeed(5.0)
	require.Equal(t, int64(50_000), encoded)
	require.InDelta(t, 5.0, DecodeSpeed(encoded), 1e-9)
}
