// Package agent ties the pieces together: one Agent speaks the sibling
// protocol on the shared channel, answers availability probes, executes
// incoming roll triggers, publishes a liveness heartbeat, and watches
// shared state to settle its own outstanding requests.
package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"dicebridge/internal/bus"
	"dicebridge/internal/catalog"
	"dicebridge/internal/protocol"
	"dicebridge/internal/registry"
	"dicebridge/internal/roll"
	"dicebridge/internal/state"
)

// DefaultSubject is used when a trigger names no subject of its own.
const DefaultSubject = "shared"

type Options struct {
	Namespace string
	Version   string
	// Respond enables the responder role: answer availability requests,
	// execute roll triggers, publish the heartbeat. A pure caller leaves
	// it off.
	Respond bool
	// PublishCompletions additionally announces finished rolls with a
	// roll_complete message. Observers must not rely on it; watching
	// shared state remains the compatible completion path.
	PublishCompletions bool

	ProbeTimeout      time.Duration
	RollTimeout       time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTTL      time.Duration
}

func (o Options) withDefaults() Options {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 3 * time.Second
	}
	if o.RollTimeout <= 0 {
		o.RollTimeout = 30 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.HeartbeatTTL <= 0 {
		o.HeartbeatTTL = 3 * o.HeartbeatInterval
	}
	return o
}

// Availability is the outcome of a probe. A timeout is not an error; it
// simply means nobody is listening.
type Availability struct {
	Available bool
	Version   string
}

// Result is a finished roll as seen by a caller.
type Result struct {
	RollID  string
	Subject string
	Results map[string]int
	Total   int
}

// Completion is delivered to local observers whenever a tracked roll
// finishes, whether or not anyone awaited it.
type Completion = Result

type tracked struct {
	subject  string
	announce bool
}

type Agent struct {
	opts  Options
	bus   bus.Bus
	store state.Store
	orch  *roll.Orchestrator
	reg   *registry.Registry

	mu          sync.Mutex
	rolls       map[string]tracked
	completions []func(Completion)
	started     bool
	closed      bool

	unsubscribe func()
	stopWatch   func()
	hbDone      chan struct{}
}

func New(opts Options, b bus.Bus, st state.Store, orch *roll.Orchestrator) *Agent {
	return &Agent{
		opts:   opts.withDefaults(),
		bus:    b,
		store:  st,
		orch:   orch,
		reg:    registry.New(),
		rolls:  make(map[string]tracked),
		hbDone: make(chan struct{}),
	}
}

// OnComplete registers a local observer for finished rolls this agent
// tracks, awaited or not.
func (a *Agent) OnComplete(fn func(Completion)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completions = append(a.completions, fn)
}

func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	a.unsubscribe = a.bus.Subscribe(a.handle)
	a.stopWatch = a.store.WatchRolls(a.onRollChange)

	if a.opts.Respond {
		a.publishHeartbeat(ctx)
		go a.heartbeatLoop()
	}
	log.Printf("agent started: namespace=%s version=%s respond=%v", a.opts.Namespace, a.opts.Version, a.opts.Respond)
	return nil
}

// Close tears everything down: channel subscription, state watcher,
// heartbeat timer, and every outstanding request, so no caller hangs
// past the agent's lifetime. Safe to call more than once.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.rolls = make(map[string]tracked)
	a.mu.Unlock()

	if a.opts.Respond {
		close(a.hbDone)
	}
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.reg.CancelAll()
	if err := a.bus.Close(); err != nil {
		return err
	}
	log.Printf("agent closed: namespace=%s", a.opts.Namespace)
	return nil
}

// handle is the single dispatch point for channel traffic. Anything that
// does not decode is someone else's message and dropped without noise.
func (a *Agent) handle(env protocol.Envelope) {
	v, err := protocol.Decode(env)
	if err != nil {
		return
	}
	switch p := v.(type) {
	case protocol.AvailabilityRequestPayload:
		if !a.opts.Respond {
			return
		}
		a.answerProbe(p)
	case protocol.AvailabilityResponsePayload:
		// First matching response wins; duplicates are no-ops.
		a.reg.Resolve(p.RequestID, Availability{Available: p.Available, Version: p.Version})
	case protocol.RollTriggerPayload:
		if !a.opts.Respond {
			return
		}
		a.handleTrigger(p)
	case protocol.RollCompletePayload:
		a.handleRollComplete(p)
	}
}

func (a *Agent) answerProbe(p protocol.AvailabilityRequestPayload) {
	// Every request gets an answer, retries included; the probe's own
	// registry enforces at-most-once consumption.
	env, err := protocol.Encode(protocol.TypeAvailabilityResponse, protocol.AvailabilityResponsePayload{
		RequestID: p.RequestID,
		Available: true,
		Version:   a.opts.Version,
	})
	if err != nil {
		log.Printf("encode availability response failed: %v", err)
		return
	}
	if err := a.bus.Publish(context.Background(), env); err != nil {
		log.Printf("publish availability response failed: request_id=%s err=%v", p.RequestID, err)
	}
}

func (a *Agent) handleTrigger(p protocol.RollTriggerPayload) {
	subject := p.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	reqs := make([]roll.DieRequest, 0, len(p.Dice))
	for _, d := range p.Dice {
		reqs = append(reqs, roll.DieRequest{
			Descriptor: catalog.Descriptor{Style: d.Style, Type: d.Type},
			Count:      d.Count,
		})
	}
	spec, unmatched := a.orch.BuildSpec(p.RollID, subject, reqs, roll.Modifiers{
		Bonus:     p.Bonus,
		Advantage: roll.ParseAdvantage(p.Advantage),
		Hidden:    p.Hidden,
	})
	for _, d := range unmatched {
		log.Printf("unmatched die descriptor: roll_id=%s style=%s type=%s", p.RollID, d.Style, d.Type)
	}
	if len(spec.Dice) > 0 {
		// Track our own execution so local observers hear about it and,
		// when enabled, the completion gets announced on the channel.
		a.track(p.RollID, subject, a.opts.PublishCompletions)
	}
	if err := a.orch.Submit(context.Background(), spec); err != nil {
		log.Printf("submit roll failed: roll_id=%s err=%v", p.RollID, err)
		a.untrack(p.RollID)
	}
}

func (a *Agent) handleRollComplete(p protocol.RollCompletePayload) {
	// Explicit completion beats the state watcher when both fire; the
	// registry makes whichever comes second a no-op.
	a.untrack(p.RollID)
	a.reg.Resolve(p.RollID, Result{
		RollID:  p.RollID,
		Subject: p.Subject,
		Results: p.Results,
		Total:   p.Total,
	})
}

func (a *Agent) track(rollID, subject string, announce bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.rolls[rollID] = tracked{subject: subject, announce: announce}
}

func (a *Agent) untrack(rollID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.rolls, rollID)
}
