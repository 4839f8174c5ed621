package offsetsync

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Ryan4n6/MASS-Trap/pkg/clock"
	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/radio"
)

func TestHandleOffsetComputesSample(t *testing.T) {
	hub := radio.NewHub()
	transport := hub.Join(domain.MAC{1})
	e := New(clock.Real{}, transport, zerolog.Nop())

	e.HandleOffset(1_000_500, 1_000_000)
	offset, ok := e.Offset()
	require.True(t, ok)
	require.Equal(t, int64(500), offset)
}

func TestTranslateIsInvolution(t *testing.T) {
	hub := radio.NewHub()
	transport := hub.Join(domain.MAC{1})
	e := New(clock.Real{}, transport, zerolog.Nop())
	e.HandleOffset(2_000_300, 2_000_000)

	ts := uint64(5_123_456)
	local := e.Translate(ts)
	roundTripped := local + func() int64 { o, _ := e.Offset(); return o }()
	require.Equal(t, int64(ts), roundTripped)
}

func TestOffsetUnsetBeforeFirstSample(t *testing.T) {
	hub := radio.NewHub()
	transport := hub.Join(domain.MAC{1})
	e := New(clock.Real{}, transport, zerolog.Nop())
	_, ok := e.Offset()
	require.False(t, ok)
}

func TestRequestSyncSendsFrame(t *testing.T) {
	hub := radio.NewHub()
	finishMAC := domain.MAC{1}
	startMAC := domain.MAC{2}
	finishT := hub.Join(finishMAC)
	startT := hub.Join(startMAC)
	defer finishT.Close()
	defer startT.Close()

	e := New(clock.Real{}, finishT, zerolog.Nop())
	require.NoError(t, e.RequestSync(startMAC, 7))

	select {
	case in := <-startT.Recv():
		require.Equal(t, finishMAC, in.From)
	default:
		t.Fatal("expected SYNC_REQ to be delivered")
	}
}
