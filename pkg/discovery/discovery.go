// Package discovery implements Brother's Six: the beacon/ack/pair-request
// handshake nodes use to find each other and agree on a pairing without
// any central coordinator.
package discovery

import (
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/clock"
	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/peers"
	"github.com/Ryan4n6/MASS-Trap/pkg/radio"
	"github.com/Ryan4n6/MASS-Trap/pkg/wire"
)

// BeaconPeriod is how often a node broadcasts its presence.
const BeaconPeriod = 3 * time.Second

// PingPeriodOnline and PingPeriodOffline are the liveness-check intervals
// for an already-paired peer, faster while it answers and slower once it
// has gone quiet.
const (
	PingPeriodOnline  = 2 * time.Second
	PingPeriodOffline = 10 * time.Second
)

// PingPeriodFor returns the ping interval appropriate to a peer's current
// status.
func PingPeriodFor(status domain.PeerStatus) time.Duration {
	if status == domain.StatusOffline {
		return PingPeriodOffline
	}
	return PingPeriodOnline
}

// Identity is the local node's self-description, broadcast in every
// control frame.
type Identity struct {
	MAC      domain.MAC
	Role     domain.RoleTag
	Hostname string
	DeviceID uint8
}

// Discoverer runs the Brother's Six handshake against one radio transport
// and one peer registry. It holds no role-specific race logic: the race
// state machine layer consumes HandleFrame's side effects (an updated
// registry) rather than being driven directly by it.
type Discoverer struct {
	self      Identity
	transport radio.Transport
	registry  *peers.Registry
	persister *peers.Persister
	clock     clock.Source
	diag      func() domain.Diagnostics
}

// New returns a Discoverer for self, wired to transport and registry.
// diagFunc supplies the current diagnostics snapshot to embed in each
// beacon.
func New(self Identity, transport radio.Transport, registry *peers.Registry, persister *peers.Persister, src clock.Source, diagFunc func() domain.Diagnostics) *Discoverer {
	return &Discoverer{
		self:      self,
		transport: transport,
		registry:  registry,
		persister: persister,
		clock:     src,
		diag:      diagFunc,
	}
}

func (d *Discoverer) buildFrame(ft domain.FrameType, offset int64) wire.ControlFrame {
	return wire.ControlFrame{
		Type:        ft,
		SenderID:    d.self.DeviceID,
		TimestampUs: d.clock.NowUs(),
		OffsetI64:   offset,
		Role:        string(d.self.Role),
		Hostname:    d.self.Hostname,
	}
}

func (d *Discoverer) send(to domain.MAC, f wire.ControlFrame) error {
	return d.transport.Send(to, f.Marshal())
}

// SendBeacon broadcasts this node's presence with packed diagnostics.
func (d *Discoverer) SendBeacon() error {
	packed := wire.PackDiag(d.diag())
	return d.send(radio.Broadcast, d.buildFrame(domain.FrameBeacon, packed))
}

// HandleFrame dispatches one inbound control frame through the Brother's
// Six state machine. PING and PONG only upsert the sender, which marks it
// reachable. Frames of any other type are ignored here and do not refresh
// the sender's registry row; callers route them to the race/offset layers
// instead.
func (d *Discoverer) HandleFrame(from domain.MAC, f wire.ControlFrame) error {
	role := domain.RoleTag(f.Role)
	now := d.clock.NowUs() / 1000

	switch f.Type {
	case domain.FrameBeacon:
		d.registry.Upsert(from, role, f.Hostname, f.SenderID, now)
		d.registry.SetRegistered(from, true)
		d.registry.UpdateDiag(from, wire.UnpackDiag(f.OffsetI64))
		if err := d.send(from, d.buildFrame(domain.FrameBeaconAck, 0)); err != nil {
			return err
		}
		row, _ := d.registry.FindByMAC(from)
		if domain.Compatible(d.self.Role, role) && !row.Paired {
			return d.send(from, d.buildFrame(domain.FramePairReq, 0))
		}
		return nil

	case domain.FrameBeaconAck:
		d.registry.Upsert(from, role, f.Hostname, f.SenderID, now)
		return nil

	case domain.FramePairReq:
		d.registry.Upsert(from, role, f.Hostname, f.SenderID, now)
		if !domain.Compatible(d.self.Role, role) {
			return nil // incompatible role: drop without reply
		}
		d.registry.SetPaired(from, true)
		d.persister.MarkDirty()
		return d.send(from, d.buildFrame(domain.FramePairAck, 0))

	case domain.FramePairAck:
		d.registry.Upsert(from, role, f.Hostname, f.SenderID, now)
		d.registry.SetPaired(from, true)
		d.persister.MarkDirty()
		return nil

	case domain.FramePing, domain.FramePong:
		d.registry.Upsert(from, role, f.Hostname, f.SenderID, now)
		return nil

	default:
		return nil
	}
}
