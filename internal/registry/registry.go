// Package registry tracks outstanding correlated requests for a caller.
// The transport gives no delivery guarantee, so every awaited request gets
// a deadline here; the registry owns the timers so call sites do not.
package registry

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrTimeout reports that no matching signal arrived before the
	// deadline. Callers use it to tell "nobody answered" apart from
	// other runtime failures.
	ErrTimeout = errors.New("request timed out")
	// ErrCanceled reports that the registry was torn down with the
	// request still pending.
	ErrCanceled = errors.New("request canceled")
)

type entry struct {
	createdAt time.Time
	timer     *time.Timer
	onResolve func(any)
	onReject  func(error)
}

type Registry struct {
	mu      sync.Mutex
	pending map[string]*entry
}

func New() *Registry {
	return &Registry{pending: make(map[string]*entry)}
}

// Register tracks a correlation id. Exactly one of onResolve/onReject runs,
// exactly once: the first Resolve/Reject wins, a timeout counts as a Reject
// with ErrTimeout. Registering an id that is already pending rejects the
// old entry first; ids are caller-generated and expected unique.
func (r *Registry) Register(id string, onResolve func(any), onReject func(error), timeout time.Duration) {
	r.mu.Lock()
	if old, ok := r.pending[id]; ok {
		delete(r.pending, id)
		old.timer.Stop()
		r.mu.Unlock()
		old.onReject(ErrCanceled)
		r.mu.Lock()
	}
	e := &entry{createdAt: time.Now(), onResolve: onResolve, onReject: onReject}
	e.timer = time.AfterFunc(timeout, func() {
		r.Reject(id, ErrTimeout)
	})
	r.pending[id] = e
	r.mu.Unlock()
}

// Resolve settles the request registered under id with a value. Returns
// false when id is unknown or already settled; duplicate signals are a
// legitimate occurrence on a best-effort channel, never an error.
func (r *Registry) Resolve(id string, value any) bool {
	e, ok := r.take(id)
	if !ok {
		return false
	}
	e.onResolve(value)
	return true
}

// Reject settles the request registered under id with an error. Same
// idempotency contract as Resolve.
func (r *Registry) Reject(id string, err error) bool {
	e, ok := r.take(id)
	if !ok {
		return false
	}
	e.onReject(err)
	return true
}

// CancelAll rejects every outstanding request with ErrCanceled. Used on
// teardown so no caller hangs past the owner's lifetime. Idempotent.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	taken := make([]*entry, 0, len(r.pending))
	for id, e := range r.pending {
		delete(r.pending, id)
		e.timer.Stop()
		taken = append(taken, e)
	}
	r.mu.Unlock()

	for _, e := range taken {
		e.onReject(ErrCanceled)
	}
}

// Len reports the number of outstanding requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// take removes and returns the entry for id, stopping its timer. The
// delete-under-lock is what makes settlement exactly-once: whichever of
// response, duplicate, or timer gets here first owns the continuation.
func (r *Registry) take(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pending[id]
	if !ok {
		return nil, false
	}
	delete(r.pending, id)
	e.timer.Stop()
	return e, true
}
