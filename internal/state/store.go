// Package state models the shared records sibling instances coordinate
// through: per-roll result records mutated die by die as a roll executes,
// and a liveness heartbeat. This side only ever reads roll records it did
// not start; the executor that started a roll is its only writer.
package state

import (
	"context"
	"sync"
	"time"
)

// Heartbeat is the passive liveness record an instance publishes so
// observers can check availability without a message round trip.
type Heartbeat struct {
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

// RollState is the shared record for one roll. Results maps each die
// instance key to its settled value; nil means the die is still in
// flight. A record starts with every key nil and is filled in key by key.
type RollState struct {
	RollID    string          `json:"roll_id"`
	Subject   string          `json:"subject"`
	Hidden    bool            `json:"hidden"`
	Bonus     int             `json:"bonus"`
	Results   map[string]*int `json:"results"`
	StartedAt int64           `json:"started_at"`
}

// Complete reports whether every die instance key has settled. It is a
// pure predicate over the snapshot, safe to re-run on every change
// notification including spurious or reordered ones.
func Complete(rs RollState) bool {
	for _, v := range rs.Results {
		if v == nil {
			return false
		}
	}
	return true
}

// Aggregate sums every settled die plus the roll's bonus. Dice here are
// uniform numeric dice, so sum is the only combination rule.
func Aggregate(rs RollState) int {
	total := rs.Bonus
	for _, v := range rs.Results {
		if v != nil {
			total += *v
		}
	}
	return total
}

// Settled returns the per-die results with the nils dropped.
func Settled(rs RollState) map[string]int {
	out := make(map[string]int, len(rs.Results))
	for k, v := range rs.Results {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// WatchFunc is invoked with the subject and roll id of a roll record that
// changed. Notifications are best effort and may be duplicated.
type WatchFunc func(subject, rollID string)

type Store interface {
	// PutRollState creates or replaces the record for (rs.Subject, rs.RollID)
	// and notifies watchers.
	PutRollState(ctx context.Context, rs RollState) error
	// SetDieResult settles one die instance key and notifies watchers.
	SetDieResult(ctx context.Context, subject, rollID, key string, value int) error
	GetRollState(ctx context.Context, subject, rollID string) (RollState, bool, error)
	SetHeartbeat(ctx context.Context, hb Heartbeat, ttl time.Duration) error
	// GetHeartbeat returns false when no live heartbeat record exists.
	GetHeartbeat(ctx context.Context) (Heartbeat, bool, error)
	// WatchRolls attaches a change observer; the returned func detaches it.
	WatchRolls(fn WatchFunc) (stop func())
}

type MemoryStore struct {
	mu        sync.RWMutex
	rolls     map[string]RollState
	heartbeat *Heartbeat
	expireAt  time.Time
	nextWatch int
	watchers  map[int]WatchFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rolls:    make(map[string]RollState),
		watchers: make(map[int]WatchFunc),
	}
}

func memKey(subject, rollID string) string {
	return subject + "\x00" + rollID
}

func (m *MemoryStore) PutRollState(_ context.Context, rs RollState) error {
	m.mu.Lock()
	m.rolls[memKey(rs.Subject, rs.RollID)] = cloneState(rs)
	m.mu.Unlock()
	m.notify(rs.Subject, rs.RollID)
	return nil
}

func (m *MemoryStore) SetDieResult(_ context.Context, subject, rollID, key string, value int) error {
	m.mu.Lock()
	rs, ok := m.rolls[memKey(subject, rollID)]
	if ok {
		v := value
		rs.Results[key] = &v
		m.rolls[memKey(subject, rollID)] = rs
	}
	m.mu.Unlock()
	if ok {
		m.notify(subject, rollID)
	}
	return nil
}

func (m *MemoryStore) GetRollState(_ context.Context, subject, rollID string) (RollState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.rolls[memKey(subject, rollID)]
	if !ok {
		return RollState{}, false, nil
	}
	return cloneState(rs), true, nil
}

func (m *MemoryStore) SetHeartbeat(_ context.Context, hb Heartbeat, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeat = &hb
	m.expireAt = time.Now().Add(ttl)
	return nil
}

func (m *MemoryStore) GetHeartbeat(_ context.Context) (Heartbeat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.heartbeat == nil || time.Now().After(m.expireAt) {
		return Heartbeat{}, false, nil
	}
	return *m.heartbeat, true, nil
}

func (m *MemoryStore) WatchRolls(fn WatchFunc) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextWatch
	m.nextWatch++
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

func (m *MemoryStore) notify(subject, rollID string) {
	m.mu.RLock()
	fns := make([]WatchFunc, 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(subject, rollID)
	}
}

func cloneState(rs RollState) RollState {
	results := make(map[string]*int, len(rs.Results))
	for k, v := range rs.Results {
		if v == nil {
			results[k] = nil
			continue
		}
		val := *v
		results[k] = &val
	}
	rs.Results = results
	return rs
}
