package roll

import (
	"context"
	"testing"
	"time"

	"dicebridge/internal/catalog"
	"dicebridge/internal/state"
)

func testOrchestrator(st state.Store) *Orchestrator {
	return &Orchestrator{
		Catalog:  catalog.Default(),
		Executor: &Executor{Store: st},
	}
}

func TestBuildSpecResolvesAndReportsUnmatched(t *testing.T) {
	o := testOrchestrator(state.NewMemoryStore())

	spec, unmatched := o.BuildSpec("roll-1", "player-1", []DieRequest{
		{Descriptor: catalog.Descriptor{Style: "classic", Type: "d20"}},
		{Descriptor: catalog.Descriptor{Style: "obsidian", Type: "d20"}},
	}, Modifiers{})

	if len(spec.Dice) != 1 {
		t.Fatalf("expected 1 resolved die, got %d", len(spec.Dice))
	}
	if spec.Dice[0].Entry.ID != "classic-d20" || spec.Dice[0].Count != 1 {
		t.Fatalf("unexpected resolved die: %+v", spec.Dice[0])
	}
	if len(unmatched) != 1 || unmatched[0].Style != "obsidian" {
		t.Fatalf("expected obsidian reported unmatched, got %v", unmatched)
	}
}

func TestBuildSpecCoercesCounts(t *testing.T) {
	o := testOrchestrator(state.NewMemoryStore())

	spec, _ := o.BuildSpec("roll-1", "player-1", []DieRequest{
		{Descriptor: catalog.Descriptor{Style: "classic", Type: "d6"}, Count: 0},
		{Descriptor: catalog.Descriptor{Style: "classic", Type: "d8"}, Count: -3},
		{Descriptor: catalog.Descriptor{Style: "classic", Type: "d4"}, Count: 3},
	}, Modifiers{})

	want := []int{1, 1, 3}
	for i, d := range spec.Dice {
		if d.Count != want[i] {
			t.Errorf("die %d count = %d, want %d", i, d.Count, want[i])
		}
	}
}

func TestSubmitEmptySpecIsNoop(t *testing.T) {
	st := state.NewMemoryStore()
	o := testOrchestrator(st)

	spec, _ := o.BuildSpec("roll-1", "player-1", []DieRequest{
		{Descriptor: catalog.Descriptor{Style: "nope"}},
	}, Modifiers{})

	if err := o.Submit(context.Background(), spec); err != nil {
		t.Fatalf("empty submit errored: %v", err)
	}
	if _, ok, _ := st.GetRollState(context.Background(), "player-1", "roll-1"); ok {
		t.Fatal("no-op roll should not create a shared record")
	}
}

func TestInstanceKeysDeterministicOrder(t *testing.T) {
	spec := Spec{Dice: []Die{
		{Entry: catalog.Entry{ID: "classic-d6"}, Count: 2},
		{Entry: catalog.Entry{ID: "classic-d20"}, Count: 1},
	}}

	want := []string{"classic-d6#1", "classic-d6#2", "classic-d20#1"}
	got := spec.InstanceKeys()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func waitComplete(t *testing.T, st state.Store, subject, rollID string) state.RollState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		rs, ok, err := st.GetRollState(context.Background(), subject, rollID)
		if err != nil {
			t.Fatalf("get roll state failed: %v", err)
		}
		if ok && state.Complete(rs) {
			return rs
		}
		select {
		case <-deadline:
			t.Fatalf("roll never completed: %+v", rs)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestExecutorSettlesEveryInstanceKey(t *testing.T) {
	st := state.NewMemoryStore()
	ex := &Executor{Store: st}

	spec := Spec{
		RollID:  "roll-1",
		Subject: "player-1",
		Dice: []Die{
			{Entry: catalog.Entry{ID: "classic-d6", Sides: 6}, Count: 3},
			{Entry: catalog.Entry{ID: "classic-d20", Sides: 20}, Count: 1},
		},
		Seed: 7,
	}
	if err := ex.Submit(context.Background(), spec); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	rs := waitComplete(t, st, "player-1", "roll-1")
	if len(rs.Results) != 4 {
		t.Fatalf("expected 4 instance keys, got %d", len(rs.Results))
	}
	for key, v := range rs.Results {
		if *v < 1 {
			t.Errorf("key %s settled below 1: %d", key, *v)
		}
	}
	d20 := rs.Results["classic-d20#1"]
	if d20 == nil || *d20 > 20 {
		t.Errorf("d20 result out of range: %v", d20)
	}
}

func TestExecutorDeterministicPerSeed(t *testing.T) {
	run := func(rollID string) state.RollState {
		st := state.NewMemoryStore()
		ex := &Executor{Store: st}
		spec := Spec{
			RollID:  rollID,
			Subject: "p",
			Dice:    []Die{{Entry: catalog.Entry{ID: "classic-d20", Sides: 20}, Count: 5}},
			Seed:    42,
		}
		if err := ex.Submit(context.Background(), spec); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		return waitComplete(t, st, "p", rollID)
	}

	a, b := run("r1"), run("r2")
	for k, v := range a.Results {
		if *b.Results[k] != *v {
			t.Fatalf("same seed produced different results at %s: %d vs %d", k, *v, *b.Results[k])
		}
	}
}

func TestAdvantageKeepsHigherOfTwo(t *testing.T) {
	// With a 1-sided die advantage and disadvantage are indistinguishable,
	// so roll many d20s under both rules and compare totals: the kept-high
	// series must sum at least as large for the same seed.
	total := func(adv Advantage) int {
		st := state.NewMemoryStore()
		ex := &Executor{Store: st}
		spec := Spec{
			RollID:    "r",
			Subject:   "p",
			Dice:      []Die{{Entry: catalog.Entry{ID: "classic-d20", Sides: 20}, Count: 20}},
			Advantage: adv,
			Seed:      99,
		}
		if err := ex.Submit(context.Background(), spec); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		return state.Aggregate(waitComplete(t, st, "p", "r"))
	}

	high, low := total(AdvantageHigh), total(AdvantageLow)
	if high < low {
		t.Fatalf("advantage total %d below disadvantage total %d for same seed", high, low)
	}
}

func TestParseAdvantage(t *testing.T) {
	cases := map[string]Advantage{
		"advantage":    AdvantageHigh,
		"ADVANTAGE":    AdvantageHigh,
		"disadvantage": AdvantageLow,
		"":             AdvantageNone,
		"garbage":      AdvantageNone,
	}
	for in, want := range cases {
		if got := ParseAdvantage(in); got != want {
			t.Errorf("ParseAdvantage(%q) = %v, want %v", in, got, want)
		}
	}
}
