package node

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Ryan4n6/MASS-Trap/pkg/arming"
	"github.com/Ryan4n6/MASS-Trap/pkg/discovery"
	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/offsetsync"
	"github.com/Ryan4n6/MASS-Trap/pkg/peers"
	"github.com/Ryan4n6/MASS-Trap/pkg/race"
	"github.com/Ryan4n6/MASS-Trap/pkg/radio"
)

// fakeClock is a settable clock.Source so tests can drive translate/offset
// math with known values instead of wall-clock time.
type fakeClock struct{ us uint64 }

func (c *fakeClock) NowUs() uint64 { return c.us }

func mac(b byte) domain.MAC { return domain.MAC{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, b} }

func newTestRegistry(t *testing.T) (*peers.Registry, *peers.Persister) {
	t.Helper()
	reg := peers.NewRegistry()
	store := peers.NewJSONStore(filepath.Join(t.TempDir(), "peers.json"))
	return reg, peers.NewPersister(reg, store, nil)
}

func newStartNode(t *testing.T, hub *radio.Hub, clk *fakeClock) (*Node, *arming.Explicit, *MockBeam) {
	t.Helper()
	transport := hub.Join(mac(1))
	reg, persister := newTestRegistry(t)
	self := discovery.Identity{MAC: mac(1), Role: domain.RoleStart, Hostname: "start-1", DeviceID: 1}
	disc := discovery.New(self, transport, reg, persister, clk, func() domain.Diagnostics { return domain.Diagnostics{} })
	explicit := arming.NewExplicit()
	beam := NewMockBeam()

	n := New(Config{
		Role:       domain.RoleStart,
		Self:       self,
		Transport:  transport,
		Registry:   reg,
		Persister:  persister,
		Discoverer: disc,
		Clock:      clk,
		Log:        zerolog.Nop(),
		Start:      race.NewStart(),
		StartBeam:  beam,
		Arm:        arming.NewPipeline(explicit),
		Explicit:   explicit,
	})
	return n, explicit, beam
}

func newFinishNode(t *testing.T, hub *radio.Hub, clk *fakeClock) (*Node, *MockBeam) {
	t.Helper()
	transport := hub.Join(mac(2))
	reg, persister := newTestRegistry(t)
	self := discovery.Identity{MAC: mac(2), Role: domain.RoleFinish, Hostname: "finish-1", DeviceID: 2}
	disc := discovery.New(self, transport, reg, persister, clk, func() domain.Diagnostics { return domain.Diagnostics{} })
	beam := NewMockBeam()
	offset := offsetsync.New(clk, transport, zerolog.Nop())

	n := New(Config{
		Role:       domain.RoleFinish,
		Self:       self,
		Transport:  transport,
		Registry:   reg,
		Persister:  persister,
		Discoverer: disc,
		Clock:      clk,
		Log:        zerolog.Nop(),
		Finish:     race.NewFinish(2.0, 1.0, true, nil, zerolog.Nop()),
		FinishBeam: beam,
		Offset:     offset,
	})
	return n, beam
}

// drain delivers every frame currently queued on each node's transport,
// looping until both queues are empty (a handshake can take a few rounds).
func drain(t *testing.T, nodes ...*Node) {
	t.Helper()
	for round := 0; round < 10; round++ {
		any := false
		for _, n := range nodes {
			for {
				select {
				case in := <-n.cfg.Transport.Recv():
					n.handleInbound(in)
					any = true
				default:
					goto next
				}
			}
		next:
		}
		if !any {
			return
		}
	}
}

func TestColdPairingOverSharedHub(t *testing.T) {
	hub := radio.NewHub()
	clk := &fakeClock{us: 1_000_000}

	start, _, _ := newStartNode(t, hub, clk)
	finish, _ := newFinishNode(t, hub, clk)

	require.NoError(t, start.cfg.Discoverer.SendBeacon())
	drain(t, start, finish)

	startRow, ok := start.cfg.Registry.FindByMAC(mac(2))
	require.True(t, ok)
	require.True(t, startRow.Paired)

	finishRow, ok := finish.cfg.Registry.FindByMAC(mac(1))
	require.True(t, ok)
	require.True(t, finishRow.Paired)
}

func TestHappyRaceEndToEnd(t *testing.T) {
	hub := radio.NewHub()
	clk := &fakeClock{us: 1_000_000}

	start, _, startBeam := newStartNode(t, hub, clk)
	finish, finishBeam := newFinishNode(t, hub, clk)

	require.NoError(t, start.cfg.Discoverer.SendBeacon())
	drain(t, start, finish)
	require.True(t, finish.Arm(race.RaceParams{Car: "Hot Wheels Twin Mill", WeightG: 35}))

	// Offset resync: finish asks, start answers OFFSET, establishing a
	// zero clock skew between the two fake clocks.
	finishRow, ok := finish.cfg.Registry.FindByRoleOnline(domain.RoleStart, clk.NowUs()/1000)
	require.True(t, ok)
	require.NoError(t, finish.cfg.Offset.RequestSync(finishRow.MAC, finish.cfg.Self.DeviceID))
	drain(t, start, finish)
	_, hasSync := finish.cfg.Offset.Offset()
	require.True(t, hasSync)

	require.True(t, start.cfg.Start.Arm())
	startBeam.Fire(clk.NowUs())
	start.tickStart(time.Now())
	drain(t, start, finish)
	require.Equal(t, domain.Racing, finish.cfg.Finish.State())

	clk.us += 533_000
	finishBeam.Fire(clk.NowUs())
	finish.tickFinish(time.Now())
	require.NotNil(t, finish.lastResult)
	require.False(t, finish.lastResult.TimingError)
	require.InDelta(t, 8.39, finish.lastResult.SpeedMph, 0.01)

	drain(t, start, finish)
	require.Equal(t, domain.Finished, start.cfg.Start.State())
}

func TestArmAndDisarmCommandRoundTrip(t *testing.T) {
	hub := radio.NewHub()
	clk := &fakeClock{us: 1_000_000}

	start, explicit, _ := newStartNode(t, hub, clk)
	finish, _ := newFinishNode(t, hub, clk)

	require.NoError(t, start.cfg.Discoverer.SendBeacon())
	drain(t, start, finish)

	require.True(t, finish.Arm(race.RaceParams{Car: "x", WeightG: 10}))
	drain(t, start, finish)
	_, pending := explicit.Poll(time.Now())
	require.True(t, pending)

	require.True(t, start.cfg.Start.Arm())
	finishRow, ok := start.cfg.Registry.FindByRoleOnline(domain.RoleFinish, clk.NowUs()/1000)
	require.True(t, ok)

	// A DISARM_CMD from the paired finish node cancels the ARMED wait.
	start.handleDisarmCmd(finishRow.MAC)
	require.Equal(t, domain.Idle, start.cfg.Start.State())
}
