package bus

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"dicebridge/internal/protocol"
)

// RedisBus carries envelopes over a Redis pub/sub channel. Pub/sub is fire
// and forget: a message published while a sibling is disconnected is gone,
// which matches the protocol's best-effort contract.
type RedisBus struct {
	client  *redis.Client
	channel string
	sub     *redis.PubSub

	mu       sync.Mutex
	next     int
	handlers map[int]Handler
	closed   bool
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	b := &RedisBus{
		client:   client,
		channel:  channel,
		handlers: make(map[int]Handler),
	}
	b.sub = client.Subscribe(context.Background(), channel)
	go b.receive()
	return b
}

func (b *RedisBus) receive() {
	for msg := range b.sub.Channel() {
		var env protocol.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			// Shared channel; junk from other publishers is expected.
			continue
		}
		b.mu.Lock()
		hs := make([]Handler, 0, len(b.handlers))
		for _, h := range b.handlers {
			hs = append(hs, h)
		}
		b.mu.Unlock()
		for _, h := range hs {
			h(env)
		}
	}
}

func (b *RedisBus) Publish(ctx context.Context, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := b.next
	b.next++
	b.handlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = make(map[int]Handler)
	b.mu.Unlock()

	if err := b.sub.Close(); err != nil {
		log.Printf("close bus subscription failed: %v", err)
		return err
	}
	return nil
}
