package roll

import (
	"context"
	"log"
	"math/rand"
	"time"

	"dicebridge/internal/state"
)

// Executor rolls dice locally and mirrors progress into the shared state
// store one die at a time, the way a physics simulation settles dice one
// by one. Observers infer completion from the record, not from a reply.
//
// Execution is deterministic with respect to Spec.Seed: the same seed and
// the same dice (including order) always produce the same results.
type Executor struct {
	Store state.Store
	// SettleDelay spaces out per-die writes to mimic staggered settling.
	// Zero writes results back to back, which tests rely on.
	SettleDelay time.Duration
}

// Submit seeds the shared record with every instance key unset, then
// settles the dice in the background. The returned error covers only the
// initial record write; settling is fire and forget.
func (e *Executor) Submit(ctx context.Context, spec Spec) error {
	keys := spec.InstanceKeys()
	results := make(map[string]*int, len(keys))
	for _, k := range keys {
		results[k] = nil
	}
	rs := state.RollState{
		RollID:    spec.RollID,
		Subject:   spec.Subject,
		Hidden:    spec.Hidden,
		Bonus:     spec.Bonus,
		Results:   results,
		StartedAt: time.Now().UnixMilli(),
	}
	if err := e.Store.PutRollState(ctx, rs); err != nil {
		return err
	}
	log.Printf("roll started: roll_id=%s subject=%s dice=%d", spec.RollID, spec.Subject, len(keys))

	go e.settle(spec)
	return nil
}

func (e *Executor) settle(spec Spec) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(spec.Seed))
	for _, d := range spec.Dice {
		for n := 1; n <= d.Count; n++ {
			if e.SettleDelay > 0 {
				time.Sleep(e.SettleDelay)
			}
			value := rollDie(rng, d.Entry.Sides, spec.Advantage)
			key := InstanceKey(d.Entry.ID, n)
			if err := e.Store.SetDieResult(ctx, spec.Subject, spec.RollID, key, value); err != nil {
				log.Printf("write die result failed: roll_id=%s key=%s err=%v", spec.RollID, key, err)
			}
		}
	}
}

// rollDie rolls one die. Under advantage or disadvantage two values are
// drawn and the higher or lower kept.
func rollDie(rng *rand.Rand, sides int, adv Advantage) int {
	first := rng.Intn(sides) + 1
	if adv == AdvantageNone {
		return first
	}
	second := rng.Intn(sides) + 1
	if adv == AdvantageHigh {
		return max(first, second)
	}
	return min(first, second)
}
