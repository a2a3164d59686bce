package registry

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveInvokesOnlyMatchingContinuation(t *testing.T) {
	r := New()
	defer r.CancelAll()

	resolved := make(map[string]any)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("req-%d", i)
		r.Register(id, func(v any) { resolved[id] = v }, func(error) { t.Errorf("unexpected reject for %s", id) }, time.Minute)
	}

	if !r.Resolve("req-3", 42) {
		t.Fatal("resolve returned false for a pending id")
	}
	if len(resolved) != 1 || resolved["req-3"] != 42 {
		t.Fatalf("expected only req-3 resolved, got %v", resolved)
	}
	if r.Len() != 4 {
		t.Fatalf("expected 4 still pending, got %d", r.Len())
	}
}

func TestExactlyOnceResolution(t *testing.T) {
	r := New()
	defer r.CancelAll()

	var calls int32
	r.Register("id", func(any) { atomic.AddInt32(&calls, 1) }, func(error) { atomic.AddInt32(&calls, 1) }, time.Minute)

	if !r.Resolve("id", "first") {
		t.Fatal("first resolve should win")
	}
	if r.Resolve("id", "second") {
		t.Fatal("second resolve should be a no-op")
	}
	if r.Reject("id", errors.New("late")) {
		t.Fatal("reject after resolve should be a no-op")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 continuation call, got %d", got)
	}
}

func TestTimeoutFiresOnceAndLateResponseIsNoop(t *testing.T) {
	r := New()
	defer r.CancelAll()

	errCh := make(chan error, 2)
	r.Register("id", func(any) { t.Error("unexpected resolve") }, func(err error) { errCh <- err }, 30*time.Millisecond)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}

	if r.Resolve("id", "late") {
		t.Fatal("response after timeout should be a no-op")
	}
	if r.Len() != 0 {
		t.Fatalf("entry leaked after timeout, len=%d", r.Len())
	}
}

func TestCancelAllRejectsEverything(t *testing.T) {
	r := New()

	var rejected int32
	for i := 0; i < 3; i++ {
		r.Register(fmt.Sprintf("req-%d", i), func(any) { t.Error("unexpected resolve") }, func(err error) {
			if errors.Is(err, ErrCanceled) {
				atomic.AddInt32(&rejected, 1)
			}
		}, time.Minute)
	}

	r.CancelAll()
	r.CancelAll() // second call must be harmless

	if got := atomic.LoadInt32(&rejected); got != 3 {
		t.Fatalf("expected 3 cancellations, got %d", got)
	}
	if r.Len() != 0 {
		t.Fatalf("pending entries left after CancelAll: %d", r.Len())
	}
}

func TestRegisterSameIDRejectsPrevious(t *testing.T) {
	r := New()
	defer r.CancelAll()

	errCh := make(chan error, 1)
	r.Register("id", func(any) {}, func(err error) { errCh <- err }, time.Minute)
	r.Register("id", func(any) {}, func(error) {}, time.Minute)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCanceled) {
			t.Fatalf("expected ErrCanceled for displaced entry, got %v", err)
		}
	default:
		t.Fatal("previous entry was not rejected")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", r.Len())
	}
}
