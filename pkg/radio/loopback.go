package radio

import (
	"sync"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// Hub is a shared in-process radio medium: every Loopback transport
// registered on the same Hub can broadcast/unicast to every other one.
// It stands in for the "existing vendor broadcast protocol" of §6 when
// running several roles inside a single test or demo binary.
type Hub struct {
	mu    sync.Mutex
	peers map[domain.MAC]chan Inbound
}

// NewHub creates an empty shared medium.
func NewHub() *Hub {
	return &Hub{peers: make(map[domain.MAC]chan Inbound)}
}

// Join registers mac on the hub and returns a Transport for it.
func (h *Hub) Join(mac domain.MAC) *Loopback {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Inbound, 64)
	h.peers[mac] = ch
	return &Loopback{hub: h, mac: mac, recv: ch}
}

func (h *Hub) deliver(to domain.MAC, in Inbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if to == Broadcast {
		for mac, ch := range h.peers {
			if mac == in.From {
				continue
			}
			nonBlockingSend(ch, in)
		}
		return
	}
	if ch, ok := h.peers[to]; ok {
		nonBlockingSend(ch, in)
	}
}

func (h *Hub) leave(mac domain.MAC) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.peers[mac]; ok {
		delete(h.peers, mac)
		close(ch)
	}
}

func nonBlockingSend(ch chan Inbound, in Inbound) {
	select {
	case ch <- in:
	default:
		// Radio is best-effort and lossy (§4.10): a full inbound queue
		// drops the frame rather than blocking the sender.
	}
}

// Loopback is an in-process Transport backed by a Hub.
type Loopback struct {
	hub  *Hub
	mac  domain.MAC
	recv chan Inbound
}

func (l *Loopback) LocalMAC() domain.MAC { return l.mac }

func (l *Loopback) Send(to domain.MAC, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	l.hub.deliver(to, Inbound{From: l.mac, Payload: cp})
	return nil
}

func (l *Loopback) Recv() <-chan Inbound { return l.recv }

func (l *Loopback) Close() error {
	l.hub.leave(l.mac)
	return nil
}
