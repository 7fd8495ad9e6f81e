// Package actor provides per-key operation serialization. All operations
// submitted for the same key run one at a time on a single worker goroutine;
// operations for different keys run in parallel. Workers are created lazily
// on first use and torn down once they have no queued operations and no pins.
package actor

import (
	"context"
	"sync"
)

const jobQueueSize = 64

type entry struct {
	jobs    chan func()
	quit    chan struct{}
	pending int
	pins    int
}

type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Do runs op on the worker goroutine owning key and waits for its result.
// If ctx expires while waiting, Do returns ctx.Err() but the operation still
// runs to completion; callers that time out must rely on idempotency rather
// than assume failure. The operation itself receives a context detached from
// the caller's cancellation for the same reason.
func (r *Registry) Do(ctx context.Context, key string, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := r.acquire(key)
	opCtx := context.WithoutCancel(ctx)
	done := make(chan error, 1)

	e.jobs <- func() {
		done <- op(opCtx)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pin keeps the worker for key alive while it would otherwise be idle, for
// callers that hold long-lived state on the key (live chat connections).
// Every Pin must be balanced by an Unpin.
func (r *Registry) Pin(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = r.spawn(key)
	}
	e.pins++
}

// Unpin releases a Pin. When the last pin is dropped and no operations are
// queued or running, the worker is removed and stopped.
func (r *Registry) Unpin(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return
	}
	e.pins--
	if e.pending == 0 && e.pins <= 0 {
		delete(r.entries, key)
		close(e.quit)
	}
}

// Active returns the number of keys with a live worker.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// acquire resolves the worker for key, creating it if needed, and reserves a
// pending slot so the worker cannot tear down before the job is delivered.
func (r *Registry) acquire(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = r.spawn(key)
	}
	e.pending++
	return e
}

// spawn must be called with r.mu held.
func (r *Registry) spawn(key string) *entry {
	e := &entry{
		jobs: make(chan func(), jobQueueSize),
		quit: make(chan struct{}),
	}
	r.entries[key] = e
	go r.work(key, e)
	return e
}

func (r *Registry) work(key string, e *entry) {
	for {
		select {
		case job := <-e.jobs:
			job()

			r.mu.Lock()
			e.pending--
			if e.pending == 0 && e.pins <= 0 {
				// Idle and unpinned: deregister under the lock so a
				// concurrent acquire either finds this entry with its
				// pending count raised, or creates a fresh worker after
				// the delete. Creation and teardown never race.
				delete(r.entries, key)
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()

		case <-e.quit:
			// Closed by Unpin after the entry was already deregistered.
			return
		}
	}
}
