package radio

import (
	"fmt"
	"net"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// udpHeaderSize is the length of the header that prefixes every UDP
// datagram with the sender MAC and the intended recipient MAC, since a real UDP broadcast has no MAC addressing
// of its own — it stands in for esp_now_send's implicit addressing.
const udpHeaderSize = 12

// UDP is a Transport backed by a real LAN UDP socket: broadcasts use the
// subnet broadcast address, unicasts use a peer's last-known UDP address.
// This is the closest stock-hardware stand-in for "an existing vendor
// broadcast protocol" (§2) when nodes run as separate processes/machines.
type UDP struct {
	mac      domain.MAC
	conn     *net.UDPConn
	bcast    *net.UDPAddr
	peerAddr map[domain.MAC]*net.UDPAddr
	recv     chan Inbound
	done     chan struct{}
}

// NewUDP opens a UDP socket on listenAddr (e.g. ":9000") and configures
// broadcastAddr (e.g. "255.255.255.255:9000") as the destination for
// Send(Broadcast, ...).
func NewUDP(mac domain.MAC, listenAddr, broadcastAddr string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("radio: resolve listen addr: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("radio: listen udp: %w", err)
	}
	baddr, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("radio: resolve broadcast addr: %w", err)
	}

	u := &UDP{
		mac:      mac,
		conn:     conn,
		bcast:    baddr,
		peerAddr: make(map[domain.MAC]*net.UDPAddr),
		recv:     make(chan Inbound, 64),
		done:     make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

func (u *UDP) LocalMAC() domain.MAC { return u.mac }

func (u *UDP) Send(to domain.MAC, payload []byte) error {
	buf := make([]byte, udpHeaderSize+len(payload))
	copy(buf[0:6], u.mac[:])
	copy(buf[6:12], to[:])
	copy(buf[udpHeaderSize:], payload)

	addr := u.bcast
	if to != Broadcast {
		if a, ok := u.peerAddr[to]; ok {
			addr = a
		} else {
			addr = u.bcast // fall back to broadcast; peer may still see it
		}
	}
	_, err := u.conn.WriteToUDP(buf, addr)
	if err != nil {
		return fmt.Errorf("radio: udp send: %w", err)
	}
	return nil
}

func (u *UDP) Recv() <-chan Inbound { return u.recv }

func (u *UDP) Close() error {
	close(u.done)
	return u.conn.Close()
}

// RememberPeerAddr lets the node record a peer's observed UDP source
// address so future unicasts target it directly instead of broadcasting.
func (u *UDP) RememberPeerAddr(mac domain.MAC, addr *net.UDPAddr) {
	u.peerAddr[mac] = addr
}

func (u *UDP) readLoop() {
	buf := make([]byte, 2048)
	defer close(u.recv)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.done:
				return
			default:
				continue
			}
		}
		if n < udpHeaderSize {
			continue // malformed, drop silently per §4.2
		}
		var from, to domain.MAC
		copy(from[:], buf[0:6])
		copy(to[:], buf[6:12])
		if to != Broadcast && to != u.mac {
			continue // not addressed to us
		}
		if from == u.mac {
			continue // our own broadcast looped back
		}
		u.RememberPeerAddr(from, addr)

		payload := make([]byte, n-udpHeaderSize)
		copy(payload, buf[udpHeaderSize:n])
		select {
		case u.recv <- Inbound{From: from, Payload: payload}:
		default:
		}
	}
}
