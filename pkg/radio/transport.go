// Package radio models the wireless link every node treats as a lossy,
// unordered-across-peers datagram channel (spec §5/§6). It is the
// interface the original ESP-NOW link sits behind; three implementations
// (Loopback, UDP, RedisBus) satisfy it for different deployment shapes.
package radio

import (
	"context"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// Broadcast is the all-ones MAC used for beacon broadcasts.
var Broadcast = domain.MAC{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Inbound is one frame as delivered by the transport, paired with the
// sender's MAC the way esp_now_recv_info_t carries src_addr alongside the
// payload.
type Inbound struct {
	From    domain.MAC
	Payload []byte
}

// Transport is the link-layer capability the core depends on. Frames from
// a single peer arrive in the order the transport received them; no
// ordering is implied across peers (§5).
type Transport interface {
	// LocalMAC returns this node's own address.
	LocalMAC() domain.MAC
	// Send transmits payload to a single peer (or Broadcast) best-effort.
	// A send failure is reported but never retried (§4.10).
	Send(to domain.MAC, payload []byte) error
	// Recv returns the channel inbound frames arrive on. The channel is
	// closed when the transport is closed.
	Recv() <-chan Inbound
	// Close releases the transport's resources.
	Close() error
}

// Dialer constructs named transports for wiring from configuration.
type Dialer interface {
	Dial(ctx context.Context, mac domain.MAC) (Transport, error)
}
