package radio

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// RedisBus is a Transport backed by Redis pub/sub: every node subscribes to
// a shared channel and filters frames not addressed to it, simulating the
// broadcast medium across machines without real radios — useful for demos
// and multi-process integration tests, grounded on the corpus's go-redis
// client.
type RedisBus struct {
	mac    domain.MAC
	client *redis.Client
	pubsub *redis.PubSub
	topic  string
	ctx    context.Context
	cancel context.CancelFunc
	recv   chan Inbound
}

// NewRedisBus connects to addr and joins the shared topic, filtering
// frames by MAC the way a real radio filters by address.
func NewRedisBus(ctx context.Context, mac domain.MAC, addr, topic string) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("radio: redis ping: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	ps := client.Subscribe(cctx, topic)

	b := &RedisBus{
		mac:    mac,
		client: client,
		pubsub: ps,
		topic:  topic,
		ctx:    cctx,
		cancel: cancel,
		recv:   make(chan Inbound, 64),
	}
	go b.readLoop()
	return b, nil
}

func (b *RedisBus) LocalMAC() domain.MAC { return b.mac }

func (b *RedisBus) Send(to domain.MAC, payload []byte) error {
	msg := make([]byte, 12+len(payload))
	copy(msg[0:6], b.mac[:])
	copy(msg[6:12], to[:])
	copy(msg[12:], payload)
	encoded := hex.EncodeToString(msg)
	if err := b.client.Publish(b.ctx, b.topic, encoded).Err(); err != nil {
		return fmt.Errorf("radio: redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Recv() <-chan Inbound { return b.recv }

func (b *RedisBus) Close() error {
	b.cancel()
	_ = b.pubsub.Close()
	return b.client.Close()
}

func (b *RedisBus) readLoop() {
	defer close(b.recv)
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			raw, err := hex.DecodeString(msg.Payload)
			if err != nil || len(raw) < 12 {
				continue // malformed, drop silently per §4.2
			}
			var from, to domain.MAC
			copy(from[:], raw[0:6])
			copy(to[:], raw[6:12])
			if from == b.mac {
				continue
			}
			if to != Broadcast && to != b.mac {
				continue
			}
			payload := make([]byte, len(raw)-12)
			copy(payload, raw[12:])
			select {
			case b.recv <- Inbound{From: from, Payload: payload}:
			default:
			}
		}
	}
}
