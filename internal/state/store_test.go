package state

import (
	"context"
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func TestCompletePredicate(t *testing.T) {
	rs := RollState{Results: map[string]*int{"a": nil, "b": nil}}
	if Complete(rs) {
		t.Fatal("all-nil record reported complete")
	}

	rs.Results["a"] = intp(3)
	if Complete(rs) {
		t.Fatal("partially settled record reported complete")
	}

	rs.Results["b"] = intp(5)
	if !Complete(rs) {
		t.Fatal("fully settled record reported incomplete")
	}
	if got := Aggregate(rs); got != 8 {
		t.Fatalf("aggregate = %d, want 8", got)
	}
}

func TestAggregateIncludesBonus(t *testing.T) {
	rs := RollState{Bonus: 4, Results: map[string]*int{"a": intp(2), "b": intp(6)}}
	if got := Aggregate(rs); got != 12 {
		t.Fatalf("aggregate = %d, want 12", got)
	}
}

func TestMemoryStoreRollLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	rs := RollState{
		RollID:  "roll-1",
		Subject: "player-1",
		Results: map[string]*int{"classic-d6#1": nil, "classic-d6#2": nil},
	}
	if err := m.PutRollState(ctx, rs); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok, err := m.GetRollState(ctx, "player-1", "roll-1")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if Complete(got) {
		t.Fatal("fresh record should be incomplete")
	}

	if err := m.SetDieResult(ctx, "player-1", "roll-1", "classic-d6#1", 4); err != nil {
		t.Fatalf("set die result failed: %v", err)
	}
	if err := m.SetDieResult(ctx, "player-1", "roll-1", "classic-d6#2", 2); err != nil {
		t.Fatalf("set die result failed: %v", err)
	}

	got, ok, _ = m.GetRollState(ctx, "player-1", "roll-1")
	if !ok || !Complete(got) {
		t.Fatalf("expected complete record, got %+v", got)
	}
	if Aggregate(got) != 6 {
		t.Fatalf("aggregate = %d, want 6", Aggregate(got))
	}
	if settled := Settled(got); len(settled) != 2 || settled["classic-d6#1"] != 4 {
		t.Fatalf("unexpected settled map: %v", settled)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.PutRollState(ctx, RollState{RollID: "r", Subject: "s", Results: map[string]*int{"k": nil}})

	got, _, _ := m.GetRollState(ctx, "s", "r")
	got.Results["k"] = intp(99)

	again, _, _ := m.GetRollState(ctx, "s", "r")
	if again.Results["k"] != nil {
		t.Fatal("mutating a returned snapshot leaked into the store")
	}
}

func TestMemoryStoreWatchNotifications(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var events []string
	stop := m.WatchRolls(func(subject, rollID string) {
		events = append(events, subject+"/"+rollID)
	})

	_ = m.PutRollState(ctx, RollState{RollID: "r1", Subject: "s1", Results: map[string]*int{"k": nil}})
	_ = m.SetDieResult(ctx, "s1", "r1", "k", 3)

	if len(events) != 2 {
		t.Fatalf("expected 2 notifications, got %d (%v)", len(events), events)
	}

	stop()
	_ = m.SetDieResult(ctx, "s1", "r1", "k", 5)
	if len(events) != 2 {
		t.Fatal("watcher still firing after stop")
	}
}

func TestMemoryStoreSetDieResultUnknownRollIsNoop(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var fired bool
	m.WatchRolls(func(string, string) { fired = true })

	if err := m.SetDieResult(ctx, "nobody", "missing", "k", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired {
		t.Fatal("notification fired for unknown roll")
	}
}

func TestMemoryStoreHeartbeatTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, ok, _ := m.GetHeartbeat(ctx); ok {
		t.Fatal("heartbeat present before any publish")
	}

	hb := Heartbeat{Timestamp: time.Now().UnixMilli(), Version: "1.0.0"}
	if err := m.SetHeartbeat(ctx, hb, 50*time.Millisecond); err != nil {
		t.Fatalf("set heartbeat failed: %v", err)
	}

	got, ok, _ := m.GetHeartbeat(ctx)
	if !ok || got.Version != "1.0.0" {
		t.Fatalf("expected live heartbeat, got ok=%v hb=%+v", ok, got)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok, _ := m.GetHeartbeat(ctx); ok {
		t.Fatal("heartbeat survived its TTL")
	}
}
