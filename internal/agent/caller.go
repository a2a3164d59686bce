package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dicebridge/internal/protocol"
	"dicebridge/internal/registry"
)

// TriggerRequest is the caller-facing roll configuration; it mirrors the
// wire trigger minus the correlation id, which the caller generates.
type TriggerRequest struct {
	Subject   string
	Dice      []protocol.DieRequest
	Bonus     int
	Advantage string
	Hidden    bool
}

type probeOutcome struct {
	avail Availability
	err   error
}

// Probe asks whether any responder is listening on the channel. It always
// settles within the configured probe timeout: a matching response means
// available, silence means Available=false, never a hang.
func (a *Agent) Probe(ctx context.Context) (Availability, error) {
	requestID := uuid.NewString()
	ch := make(chan probeOutcome, 1)
	a.reg.Register(requestID,
		func(v any) {
			avail, ok := v.(Availability)
			if !ok {
				ch <- probeOutcome{err: fmt.Errorf("probe %s resolved with %T", requestID, v)}
				return
			}
			ch <- probeOutcome{avail: avail}
		},
		func(err error) { ch <- probeOutcome{err: err} },
		a.opts.ProbeTimeout,
	)

	env, err := protocol.Encode(protocol.TypeAvailabilityRequest, protocol.AvailabilityRequestPayload{RequestID: requestID})
	if err != nil {
		a.reg.Reject(requestID, err)
		return Availability{}, err
	}
	if err := a.bus.Publish(ctx, env); err != nil {
		a.reg.Reject(requestID, err)
		return Availability{}, err
	}

	select {
	case <-ctx.Done():
		a.reg.Reject(requestID, ctx.Err())
		return Availability{}, ctx.Err()
	case out := <-ch:
		if errors.Is(out.err, registry.ErrTimeout) {
			// Nobody answered: not installed or not listening.
			return Availability{Available: false}, nil
		}
		if out.err != nil {
			return Availability{}, out.err
		}
		return out.avail, nil
	}
}

// IsAvailable checks the passive liveness record instead of doing a probe
// round trip. Cheap enough for high-frequency checks; a present, unexpired
// heartbeat means a responder was alive within its TTL.
func (a *Agent) IsAvailable(ctx context.Context) (bool, error) {
	_, ok, err := a.store.GetHeartbeat(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}

type rollOutcome struct {
	res Result
	err error
}

// TriggerRoll publishes a roll trigger and waits for the roll to finish.
// Completion arrives either through the shared-state watcher or through an
// explicit roll_complete message, whichever lands first; absent both, the
// configured roll timeout rejects with registry.ErrTimeout.
func (a *Agent) TriggerRoll(ctx context.Context, req TriggerRequest) (Result, error) {
	rollID, ch, err := a.publishTrigger(ctx, req, true)
	if err != nil {
		return Result{}, err
	}

	select {
	case <-ctx.Done():
		a.untrack(rollID)
		a.reg.Reject(rollID, ctx.Err())
		return Result{}, ctx.Err()
	case out := <-ch:
		if out.err != nil {
			a.untrack(rollID)
			return Result{}, fmt.Errorf("roll %s: %w", rollID, out.err)
		}
		return out.res, nil
	}
}

// TriggerRollNoWait publishes a roll trigger without awaiting the outcome.
// The returned roll id lets local observers correlate the eventual
// completion event.
func (a *Agent) TriggerRollNoWait(ctx context.Context, req TriggerRequest) (string, error) {
	rollID, _, err := a.publishTrigger(ctx, req, false)
	return rollID, err
}

func (a *Agent) publishTrigger(ctx context.Context, req TriggerRequest, await bool) (string, chan rollOutcome, error) {
	rollID := uuid.NewString()
	subject := req.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	var ch chan rollOutcome
	if await {
		ch = make(chan rollOutcome, 1)
		a.reg.Register(rollID,
			func(v any) {
				res, ok := v.(Result)
				if !ok {
					ch <- rollOutcome{err: fmt.Errorf("roll %s resolved with %T", rollID, v)}
					return
				}
				ch <- rollOutcome{res: res}
			},
			func(err error) { ch <- rollOutcome{err: err} },
			a.opts.RollTimeout,
		)
		a.track(rollID, subject, false)
	}

	env, err := protocol.Encode(protocol.TypeRollTrigger, protocol.RollTriggerPayload{
		RollID:    rollID,
		Subject:   req.Subject,
		Dice:      req.Dice,
		Bonus:     req.Bonus,
		Advantage: req.Advantage,
		Hidden:    req.Hidden,
	})
	if err != nil {
		if await {
			a.untrack(rollID)
			a.reg.Reject(rollID, err)
		}
		return rollID, nil, err
	}
	if err := a.bus.Publish(ctx, env); err != nil {
		if await {
			a.untrack(rollID)
			a.reg.Reject(rollID, err)
		}
		return rollID, nil, err
	}
	return rollID, ch, nil
}
