package radio

import (
	"testing"
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/stretchr/testify/require"
)

func TestLoopbackUnicast(t *testing.T) {
	hub := NewHub()
	a := hub.Join(domain.MAC{1})
	b := hub.Join(domain.MAC{2})
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send(domain.MAC{2}, []byte("hello")))

	select {
	case in := <-b.Recv():
		require.Equal(t, domain.MAC{1}, in.From)
		require.Equal(t, []byte("hello"), in.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unicast frame")
	}
}

func TestLoopbackBroadcastReachesAllButSender(t *testing.T) {
	hub := NewHub()
	a := hub.Join(domain.MAC{1})
	b := hub.Join(domain.MAC{2})
	c := hub.Join(domain.MAC{3})
	defer a.Close()
	defer b.Close()
	defer c.Close()

	require.NoError(t, a.Send(Broadcast, []byte("beacon")))

	for _, r := range []*Loopback{b, c} {
		select {
		case in := <-r.Recv():
			require.Equal(t, domain.MAC{1}, in.From)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast frame")
		}
	}

	select {
	case <-a.Recv():
		t.Fatal("sender should not receive its own broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}
