package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoSerializesSameKey(t *testing.T) {
	r := NewRegistry()

	var inFlight int32
	var maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Do(context.Background(), "ride:1", func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					max := atomic.LoadInt32(&maxInFlight)
					if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("operations for one key interleaved: max in flight %d, want 1", got)
	}
}

func TestDoRunsDifferentKeysInParallel(t *testing.T) {
	r := NewRegistry()

	release := make(chan struct{})
	firstRunning := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Do(context.Background(), "ride:a", func(ctx context.Context) error {
			close(firstRunning)
			<-release
			return nil
		})
	}()

	<-firstRunning

	// A second key must make progress while the first key's op is blocked.
	done := make(chan struct{})
	go func() {
		r.Do(context.Background(), "ride:b", func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("operation on a different key was blocked")
	}

	close(release)
	wg.Wait()
}

func TestDoPropagatesOperationError(t *testing.T) {
	r := NewRegistry()

	want := errors.New("store unavailable")
	err := r.Do(context.Background(), "ride:1", func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Do error = %v, want %v", err, want)
	}

	// A failed op must not poison the worker for subsequent ops.
	if err := r.Do(context.Background(), "ride:1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Do after failure returned %v", err)
	}
}

func TestIdleWorkerTearsDown(t *testing.T) {
	r := NewRegistry()

	if err := r.Do(context.Background(), "ride:1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Do returned %v", err)
	}

	waitActive(t, r, 0)

	// The key must be usable again after teardown.
	if err := r.Do(context.Background(), "ride:1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Do after teardown returned %v", err)
	}
	waitActive(t, r, 0)
}

func TestPinKeepsWorkerAlive(t *testing.T) {
	r := NewRegistry()

	r.Pin("conv:a_b")
	if err := r.Do(context.Background(), "conv:a_b", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Do returned %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := r.Active(); got != 1 {
		t.Fatalf("pinned worker torn down: active = %d, want 1", got)
	}

	r.Unpin("conv:a_b")
	waitActive(t, r, 0)
}

func TestUnpinWithoutEntryIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unpin("conv:missing")
	if got := r.Active(); got != 0 {
		t.Fatalf("active = %d, want 0", got)
	}
}

func TestCallerTimeoutDoesNotAbortOperation(t *testing.T) {
	r := NewRegistry()

	started := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := r.Do(ctx, "ride:1", func(opCtx context.Context) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		if opCtx.Err() != nil {
			t.Errorf("operation context cancelled by caller timeout: %v", opCtx.Err())
		}
		close(finished)
		return nil
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do error = %v, want deadline exceeded", err)
	}

	<-started
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not run to completion after caller timed out")
	}
}

func TestDoRejectsExpiredContext(t *testing.T) {
	r := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := r.Do(ctx, "ride:1", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do error = %v, want context canceled", err)
	}
	if ran {
		t.Fatal("operation ran despite expired caller context")
	}
}

func waitActive(t *testing.T, r *Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Active() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("active workers = %d, want %d", r.Active(), want)
}
