package bus

import (
	"context"
	"testing"

	"dicebridge/internal/protocol"
)

func TestChannelNameIsNamespaced(t *testing.T) {
	if got := ChannelName("table-7"); got != "dicebridge:table-7:bus" {
		t.Fatalf("unexpected channel name %q", got)
	}
}

func TestMemoryBusDeliversToAllSubscribersIncludingPublisher(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	var first, second []string
	b.Subscribe(func(env protocol.Envelope) { first = append(first, env.MsgID) })
	b.Subscribe(func(env protocol.Envelope) { second = append(second, env.MsgID) })

	if err := b.Publish(context.Background(), protocol.Envelope{MsgID: "m1", Type: "x"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both subscribers to see the message, got %d and %d", len(first), len(second))
	}
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	var got int
	cancel := b.Subscribe(func(protocol.Envelope) { got++ })
	_ = b.Publish(context.Background(), protocol.Envelope{MsgID: "m1"})
	cancel()
	_ = b.Publish(context.Background(), protocol.Envelope{MsgID: "m2"})

	if got != 1 {
		t.Fatalf("expected exactly 1 delivery after unsubscribe, got %d", got)
	}
}

func TestMemoryBusCloseIsIdempotent(t *testing.T) {
	b := NewMemoryBus()
	var got int
	b.Subscribe(func(protocol.Envelope) { got++ })

	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	// Publishing after close is a no-op, not an error.
	if err := b.Publish(context.Background(), protocol.Envelope{MsgID: "m1"}); err != nil {
		t.Fatalf("publish after close failed: %v", err)
	}
	if got != 0 {
		t.Fatalf("handler ran after close")
	}

	if cancel := b.Subscribe(func(protocol.Envelope) {}); cancel == nil {
		t.Fatal("subscribe after close returned nil cancel")
	}
}
