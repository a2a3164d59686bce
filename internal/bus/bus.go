// Package bus wraps the shared broadcast channel sibling instances use to
// reach each other. Every subscriber sees every published message, including
// its own; delivery and cross-publisher ordering are best effort only.
package bus

import (
	"context"
	"sync"

	"dicebridge/internal/protocol"
)

// Handler receives every envelope delivered on the channel. Handlers must
// filter by type and correlation id themselves and tolerate junk traffic.
type Handler func(protocol.Envelope)

type Bus interface {
	Publish(ctx context.Context, env protocol.Envelope) error
	// Subscribe attaches a handler and returns a cancel func detaching it.
	Subscribe(h Handler) (cancel func())
	// Close detaches all handlers. Safe to call more than once.
	Close() error
}

// ChannelName namespaces the shared channel so unrelated tools on the same
// broker never collide on a generic name.
func ChannelName(namespace string) string {
	return "dicebridge:" + namespace + ":bus"
}

// MemoryBus is an in-process bus. It backs tests and the degraded
// single-instance mode used when no broker is configured.
type MemoryBus struct {
	mu       sync.Mutex
	next     int
	handlers map[int]Handler
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[int]Handler)}
}

func (b *MemoryBus) Publish(_ context.Context, env protocol.Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(env)
	}
	return nil
}

func (b *MemoryBus) Subscribe(h Handler) func() {
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

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[int]Handler)
	return nil
}
