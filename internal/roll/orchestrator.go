package roll

import (
	"context"
	"log"

	"dicebridge/internal/catalog"
)

// DieRequest is an abstract descriptor plus requested count, not yet
// resolved against any catalog.
type DieRequest struct {
	Descriptor catalog.Descriptor
	Count      int
}

// Modifiers carries the roll-level options that survive resolution
// unchanged.
type Modifiers struct {
	Bonus     int
	Advantage Advantage
	Hidden    bool
}

// Submitter starts a roll locally. Submission is fire and forget: the
// caller learns about completion by watching shared state, not from a
// return value here.
type Submitter interface {
	Submit(ctx context.Context, spec Spec) error
}

// Orchestrator resolves abstract die requests against the local catalog
// and forwards the resulting spec to the local executor.
type Orchestrator struct {
	Catalog  *catalog.Catalog
	Executor Submitter
}

// BuildSpec resolves every request via the catalog. Descriptors without a
// match are returned as diagnostics, never an error: one bad descriptor
// must not sink the rest of the request. Counts are coerced to at least 1.
func (o *Orchestrator) BuildSpec(rollID, subject string, reqs []DieRequest, mods Modifiers) (Spec, []catalog.Descriptor) {
	spec := Spec{
		RollID:    rollID,
		Subject:   subject,
		Bonus:     mods.Bonus,
		Advantage: mods.Advantage,
		Hidden:    mods.Hidden,
	}
	var unmatched []catalog.Descriptor
	for _, req := range reqs {
		entry, ok := o.Catalog.Resolve(req.Descriptor)
		if !ok {
			unmatched = append(unmatched, req.Descriptor)
			continue
		}
		spec.Dice = append(spec.Dice, Die{Entry: entry, Count: catalog.NormalizeCount(req.Count)})
	}
	return spec, unmatched
}

// Submit forwards the spec to the executor. A spec with zero resolved dice
// is an accepted no-op, logged and skipped.
func (o *Orchestrator) Submit(ctx context.Context, spec Spec) error {
	if len(spec.Dice) == 0 {
		log.Printf("skip empty roll: roll_id=%s subject=%s", spec.RollID, spec.Subject)
		return nil
	}
	if spec.Seed == 0 {
		seed, err := NewSeed()
		if err != nil {
			return err
		}
		spec.Seed = seed
	}
	return o.Executor.Submit(ctx, spec)
}
