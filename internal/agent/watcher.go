package agent

import (
	"context"
	"log"
	"time"

	"dicebridge/internal/protocol"
	"dicebridge/internal/state"
)

// onRollChange runs on every shared-state change notification. The
// completion check is a pure predicate over the current snapshot, so
// re-running it on spurious or reordered notifications is harmless.
// Tracking keys on the roll id, not the subject, so two concurrent rolls
// for one subject never get conflated.
func (a *Agent) onRollChange(subject, rollID string) {
	a.mu.Lock()
	tr, ok := a.rolls[rollID]
	a.mu.Unlock()
	if !ok || tr.subject != subject {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rs, ok, err := a.store.GetRollState(ctx, subject, rollID)
	if err != nil {
		log.Printf("read roll state failed: roll_id=%s err=%v", rollID, err)
		return
	}
	if !ok || !state.Complete(rs) {
		return
	}

	// First completed observation wins; later notifications find the
	// roll untracked.
	a.mu.Lock()
	if _, still := a.rolls[rollID]; !still {
		a.mu.Unlock()
		return
	}
	delete(a.rolls, rollID)
	observers := make([]func(Completion), len(a.completions))
	copy(observers, a.completions)
	a.mu.Unlock()

	res := Result{
		RollID:  rollID,
		Subject: subject,
		Results: state.Settled(rs),
		Total:   state.Aggregate(rs),
	}
	log.Printf("roll complete: roll_id=%s subject=%s total=%d", rollID, subject, res.Total)

	if tr.announce {
		a.announceCompletion(ctx, res)
	}
	a.reg.Resolve(rollID, res)
	for _, fn := range observers {
		fn(res)
	}
}

func (a *Agent) announceCompletion(ctx context.Context, res Result) {
	env, err := protocol.Encode(protocol.TypeRollComplete, protocol.RollCompletePayload{
		RollID:  res.RollID,
		Subject: res.Subject,
		Results: res.Results,
		Total:   res.Total,
	})
	if err != nil {
		log.Printf("encode roll complete failed: %v", err)
		return
	}
	if err := a.bus.Publish(ctx, env); err != nil {
		log.Printf("publish roll complete failed: roll_id=%s err=%v", res.RollID, err)
	}
}
