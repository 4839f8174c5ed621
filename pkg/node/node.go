// Package node wires every other package into one role's main loop: beam
// sensors polled on every tick, the radio receive path, and a ticker-driven
// run loop, all served by the single goroutine in Run, stand in for the
// original firmware's ISR/RX-callback/main-loop trio (§5). Node itself holds no timing or protocol logic of its own —
// it only sequences calls into pkg/race, pkg/discovery, pkg/speedtrap,
// pkg/arming, pkg/offsetsync and pkg/telemetry and forwards their
// outcomes to the radio and to the external sinks.
package node

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ryan4n6/MASS-Trap/pkg/arming"
	"github.com/Ryan4n6/MASS-Trap/pkg/clock"
	"github.com/Ryan4n6/MASS-Trap/pkg/discovery"
	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/offsetsync"
	"github.com/Ryan4n6/MASS-Trap/pkg/peers"
	"github.com/Ryan4n6/MASS-Trap/pkg/race"
	"github.com/Ryan4n6/MASS-Trap/pkg/radio"
	"github.com/Ryan4n6/MASS-Trap/pkg/sink"
	"github.com/Ryan4n6/MASS-Trap/pkg/speedtrap"
	"github.com/Ryan4n6/MASS-Trap/pkg/telemetry"
	"github.com/Ryan4n6/MASS-Trap/pkg/wire"
)

// tickPeriod is the run loop's base granularity: every deadline, sensor
// poll and beacon/ping/sync schedule is checked at this resolution.
const tickPeriod = 50 * time.Millisecond

// Config aggregates every dependency one Node needs. At most one of
// Start, Finish, Trap is non-nil, selected by Role (a telemetry-role node
// sets none of them); the rest are left zero for roles that don't use them.
type Config struct {
	Role domain.RoleTag
	Self discovery.Identity

	Transport  radio.Transport
	Registry   *peers.Registry
	Persister  *peers.Persister
	Discoverer *discovery.Discoverer
	Clock      clock.Source
	Log        zerolog.Logger

	Events sink.EventSink
	Cues   sink.CueSink

	SpeedSensorSpaceM float64

	// Start role.
	Start     *race.Start
	StartBeam BeamSensor
	Arm       *arming.Pipeline
	Explicit  *arming.Explicit
	Proximity *arming.Proximity

	// Finish role.
	Finish     *race.Finish
	FinishBeam BeamSensor
	Offset     *offsetsync.Estimator
	Telemetry  *telemetry.Reassembler

	// Speed-trap role.
	Trap      *speedtrap.Trap
	TrapBeam1 BeamSensor
	TrapBeam2 BeamSensor
}

// Node drives one role's main loop: a single goroutine with one ticker,
// reading a radio.Transport and comparing deadlines, matching §5's
// concurrency model.
type Node struct {
	cfg Config

	lastBeacon time.Time
	lastPing   map[domain.MAC]time.Time
	lastSync   time.Time

	lastResult *domain.RaceResult
	lastSpeed  *float64
}

// New returns a Node driven by cfg. Call Run to start its main loop.
func New(cfg Config) *Node {
	return &Node{cfg: cfg, lastPing: make(map[domain.MAC]time.Time)}
}

// Run blocks, driving beacons, pings, sensor polling and inbound frame
// dispatch until ctx is cancelled, at which point any pending peer-store
// write is flushed before returning.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	recv := n.cfg.Transport.Recv()
	for {
		select {
		case <-ctx.Done():
			if n.cfg.Persister != nil {
				return n.cfg.Persister.FlushNow()
			}
			return nil
		case in, ok := <-recv:
			if !ok {
				return nil
			}
			n.handleInbound(in)
		case now := <-ticker.C:
			n.tick(now)
		}
	}
}

// Arm is the finish node's user-arm entrypoint (the dashboard action the
// core exposes an interface for, per §1): IDLE -> ARMED, emitting
// ARM_CMD to the paired start and an aggressive one-shot offset resync,
// per §4.5/§4.6.
func (n *Node) Arm(params race.RaceParams) bool {
	if n.cfg.Finish == nil {
		return false
	}
	if !n.cfg.Finish.Arm(params) {
		return false
	}
	if row, ok := n.cfg.Registry.FindByRoleOnline(domain.RoleStart, n.nowMs()); ok {
		n.send(row.MAC, domain.FrameArmCmd, n.cfg.Clock.NowUs(), 0)
		if n.cfg.Offset != nil {
			if err := n.cfg.Offset.RequestSync(row.MAC, n.cfg.Self.DeviceID); err != nil {
				n.cfg.Log.Debug().Err(err).Msg("aggressive resync on arm failed")
			}
		}
	}
	n.playCue(sink.CueArmed)
	n.broadcastSnapshot()
	return true
}

func (n *Node) nowMs() uint64 { return n.cfg.Clock.NowUs() / 1000 }

// ---- inbound dispatch ----

func (n *Node) handleInbound(in radio.Inbound) {
	receiveTimeUs := n.cfg.Clock.NowUs()

	if f, err := wire.UnmarshalControlFrame(in.Payload); err == nil {
		n.handleControlFrame(in.From, f, receiveTimeUs)
		return
	}
	if n.cfg.Telemetry == nil {
		return
	}
	if h, err := wire.UnmarshalTelemetryHeader(in.Payload); err == nil {
		n.cfg.Telemetry.HandleHeader(h)
		return
	}
	if c, err := wire.UnmarshalTelemetryChunk(in.Payload); err == nil {
		n.cfg.Telemetry.HandleChunk(c)
		return
	}
	if e, err := wire.UnmarshalTelemetryEnd(in.Payload); err == nil {
		if _, err := n.cfg.Telemetry.HandleEnd(e); err != nil {
			n.cfg.Log.Warn().Err(err).Msg("telemetry sink failed to emit run")
		}
		return
	}
	// Unrecognized size: dropped silently, per §4.2/§6.
}

func (n *Node) handleControlFrame(from domain.MAC, f wire.ControlFrame, receiveTimeUs uint64) {
	switch f.Type {
	case domain.FrameBeacon, domain.FrameBeaconAck, domain.FramePairReq, domain.FramePairAck,
		domain.FramePing, domain.FramePong:
		if err := n.cfg.Discoverer.HandleFrame(from, f); err != nil {
			n.cfg.Log.Debug().Err(err).Str("peer", from.String()).Msg("discovery handling failed")
		}

	case domain.FrameStart:
		n.handleStartFrame(from, f)

	case domain.FrameConfirm:
		n.handleConfirmFrame()

	case domain.FrameArmCmd:
		n.handleArmCmd(from)

	case domain.FrameDisarmCmd:
		n.handleDisarmCmd(from)

	case domain.FrameSyncReq:
		n.handleSyncReq(from)

	case domain.FrameOffset:
		n.handleOffset(f, receiveTimeUs)

	case domain.FrameSpeedData:
		n.handleSpeedData(from, f)

	case domain.FrameSpeedAck, domain.FrameTelemAck:
		// informational acknowledgements only, no action required

	default:
		n.cfg.Log.Debug().Str("type", f.Type.String()).Msg("unhandled frame type")
	}
}

func (n *Node) handleStartFrame(_ domain.MAC, f wire.ControlFrame) {
	if n.cfg.Finish == nil {
		return
	}
	local := int64(f.TimestampUs)
	if n.cfg.Offset != nil {
		local = n.cfg.Offset.Translate(f.TimestampUs)
	}
	if n.cfg.Finish.HandleStart(local) {
		n.playCue(sink.CueGo)
		n.broadcastSnapshot()
	}
}

func (n *Node) handleConfirmFrame() {
	if n.cfg.Start == nil {
		return
	}
	if n.cfg.Start.HandleConfirm(time.Now()) {
		n.playCue(sink.CueFinish)
		n.broadcastSnapshot()
	}
}

func (n *Node) handleArmCmd(from domain.MAC) {
	row, ok := n.cfg.Registry.FindByMAC(from)
	if !ok || !row.Paired {
		n.cfg.Log.Warn().Str("peer", from.String()).Msg("dropped ARM_CMD from unpaired sender")
		return
	}
	if n.cfg.Explicit != nil {
		n.cfg.Explicit.Fire()
	}
	if n.cfg.Trap != nil {
		n.cfg.Trap.Clear()
	}
}

func (n *Node) handleDisarmCmd(from domain.MAC) {
	row, ok := n.cfg.Registry.FindByMAC(from)
	if !ok || !row.Paired {
		n.cfg.Log.Warn().Str("peer", from.String()).Msg("dropped DISARM_CMD from unpaired sender")
		return
	}
	if n.cfg.Start != nil && n.cfg.Start.Disarm() {
		n.resetInterlock()
		n.broadcastSnapshot()
	}
	if n.cfg.Finish != nil && n.cfg.Finish.Disarm() {
		n.broadcastSnapshot()
	}
}

func (n *Node) handleSyncReq(from domain.MAC) {
	if n.cfg.Start == nil {
		return
	}
	n.send(from, domain.FrameOffset, n.cfg.Clock.NowUs(), 0)
}

func (n *Node) handleOffset(f wire.ControlFrame, receiveTimeUs uint64) {
	if n.cfg.Offset == nil {
		return
	}
	n.cfg.Offset.HandleOffset(f.TimestampUs, receiveTimeUs)
}

func (n *Node) handleSpeedData(from domain.MAC, f wire.ControlFrame) {
	if n.cfg.Finish == nil {
		return
	}
	speedMps := wire.DecodeSpeed(f.OffsetI64)
	n.lastSpeed = &speedMps
	n.send(from, domain.FrameSpeedAck, n.cfg.Clock.NowUs(), 0)
	n.broadcastSnapshot()
}

// ---- run loop tick ----

func (n *Node) tick(now time.Time) {
	n.tickDiscovery(now)

	switch {
	case n.cfg.Start != nil:
		n.tickStart(now)
	case n.cfg.Finish != nil:
		n.tickFinish(now)
	case n.cfg.Trap != nil:
		n.tickSpeedtrap(now)
	}
}

func (n *Node) tickDiscovery(now time.Time) {
	if now.Sub(n.lastBeacon) >= discovery.BeaconPeriod {
		n.lastBeacon = now
		if err := n.cfg.Discoverer.SendBeacon(); err != nil {
			n.cfg.Log.Debug().Err(err).Msg("beacon send failed")
		}
	}

	nowMs := n.nowMs()
	for _, row := range n.cfg.Registry.All() {
		if !row.Paired {
			continue
		}
		period := discovery.PingPeriodFor(peers.Status(row, nowMs))
		if now.Sub(n.lastPing[row.MAC]) >= period {
			n.lastPing[row.MAC] = now
			n.send(row.MAC, domain.FramePing, n.cfg.Clock.NowUs(), 0)
		}
	}
}

func (n *Node) tickStart(now time.Time) {
	if n.cfg.Start.Tick(now) {
		n.resetInterlock()
		n.broadcastSnapshot()
	}

	if n.cfg.StartBeam != nil {
		if ts, ok := n.cfg.StartBeam.Poll(); ok {
			if triggerTs, ok := n.cfg.Start.Trigger(ts); ok {
				n.sendStart(triggerTs)
			}
		}
	}

	if n.cfg.Start.State() != domain.Idle || n.cfg.Arm == nil {
		return
	}
	if _, ok := n.cfg.Arm.Poll(now); ok {
		if n.cfg.Start.Arm() {
			n.playCue(sink.CueArmed)
			n.broadcastSnapshot()
		}
	}
}

func (n *Node) sendStart(triggerTs uint64) {
	if row, ok := n.cfg.Registry.FindByRoleOnline(domain.RoleFinish, n.nowMs()); ok {
		n.send(row.MAC, domain.FrameStart, triggerTs, 0)
	}
	n.broadcastSnapshot()
}

func (n *Node) resetInterlock() {
	if n.cfg.Proximity != nil {
		n.cfg.Proximity.ResetInterlock()
	}
}

func (n *Node) tickFinish(now time.Time) {
	if n.cfg.Finish.Tick(now) {
		n.broadcastSnapshot()
	}

	if n.cfg.FinishBeam != nil {
		if ts, ok := n.cfg.FinishBeam.Poll(); ok {
			if result, ok := n.cfg.Finish.Trigger(ts); ok {
				n.lastResult = &result
				n.finished(result)
			}
		}
	}

	if n.cfg.Offset != nil {
		n.tickOffsetResync(now)
	}
}

func (n *Node) finished(result domain.RaceResult) {
	if row, ok := n.cfg.Registry.FindByRoleOnline(domain.RoleStart, n.nowMs()); ok {
		n.send(row.MAC, domain.FrameConfirm, n.cfg.Clock.NowUs(), 0)
	}
	if result.TimingError {
		n.playCue(sink.CueError)
	} else {
		n.playCue(sink.CueRecord)
	}
	n.broadcastSnapshot()
}

func (n *Node) tickOffsetResync(now time.Time) {
	if now.Sub(n.lastSync) < offsetsync.ResyncPeriod {
		return
	}
	row, ok := n.cfg.Registry.FindByRoleOnline(domain.RoleStart, n.nowMs())
	if !ok {
		return
	}
	n.lastSync = now
	if err := n.cfg.Offset.RequestSync(row.MAC, n.cfg.Self.DeviceID); err != nil {
		n.cfg.Log.Debug().Err(err).Msg("periodic resync failed")
	}
}

func (n *Node) tickSpeedtrap(now time.Time) {
	if n.cfg.TrapBeam1 != nil {
		if ts, ok := n.cfg.TrapBeam1.Poll(); ok {
			n.cfg.Trap.FirstEdge(ts)
		}
	}
	if n.cfg.TrapBeam2 != nil {
		if ts, ok := n.cfg.TrapBeam2.Poll(); ok {
			n.cfg.Trap.SecondEdge(ts)
		}
	}
	if sample, ok := n.cfg.Trap.Sample(n.cfg.SpeedSensorSpaceM); ok {
		n.lastSpeed = &sample.SpeedMps
		n.emitSpeedData(sample)
	}
	n.cfg.Trap.CheckAbandon(now)
}

func (n *Node) emitSpeedData(sample domain.SpeedSample) {
	if row, ok := n.cfg.Registry.FindByRoleOnline(domain.RoleFinish, n.nowMs()); ok {
		n.send(row.MAC, domain.FrameSpeedData, sample.TriggerTimeUs, wire.EncodeSpeed(sample.SpeedMps))
	}
	n.broadcastSnapshot()
}

// ---- frame send / sink helpers ----

func (n *Node) send(to domain.MAC, ft domain.FrameType, tsUs uint64, offset int64) {
	f := wire.ControlFrame{
		Type:        ft,
		SenderID:    n.cfg.Self.DeviceID,
		TimestampUs: tsUs,
		OffsetI64:   offset,
		Role:        string(n.cfg.Self.Role),
		Hostname:    n.cfg.Self.Hostname,
	}
	if err := n.cfg.Transport.Send(to, f.Marshal()); err != nil {
		n.cfg.Log.Debug().Err(err).Str("peer", to.String()).Str("frame", ft.String()).Msg("send failed")
	}
}

func (n *Node) playCue(name string) {
	if n.cfg.Cues == nil {
		return
	}
	if err := n.cfg.Cues.PlayCue(name); err != nil {
		n.cfg.Log.Warn().Err(err).Msg("failed to play cue")
	}
}

func (n *Node) broadcastSnapshot() {
	if n.cfg.Events == nil {
		return
	}
	if err := n.cfg.Events.BroadcastState(n.snapshot()); err != nil {
		n.cfg.Log.Warn().Err(err).Msg("failed to broadcast state snapshot")
	}
}

func (n *Node) snapshot() sink.Snapshot {
	nowMs := n.nowMs()
	snap := sink.Snapshot{
		Role:       n.cfg.Self.Role,
		Connected:  n.cfg.Registry.HasOnlinePeer(nowMs),
		PeerCounts: n.peerCounts(nowMs),
		Result:     n.lastResult,
	}
	switch {
	case n.cfg.Start != nil:
		snap.RaceState = n.cfg.Start.State()
	case n.cfg.Finish != nil:
		snap.RaceState = n.cfg.Finish.State()
	}
	if n.lastSpeed != nil {
		snap.SpeedTrap = &sink.SpeedTrapStatus{LastSpeedMps: *n.lastSpeed}
	}
	return snap
}

func (n *Node) peerCounts(nowMs uint64) map[string]int {
	counts := map[string]int{"online": 0, "stale": 0, "offline": 0}
	for _, row := range n.cfg.Registry.All() {
		switch peers.Status(row, nowMs) {
		case domain.StatusOnline:
			counts["online"]++
		case domain.StatusStale:
			counts["stale"]++
		default:
			counts["offline"]++
		}
	}
	return counts
}
