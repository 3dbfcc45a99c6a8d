// Package keymutex provides a map of per-key mutexes backed by
// golang.org/x/sync/semaphore, so unrelated keys make concurrent
// progress while operations on the same key serialize. The key here is
// a serialized scope tuple; it is a cheap in-process first line of
// defense ahead of the DB row locks that remain the authoritative
// synchronization mechanism.
package keymutex

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// KeyMutex grants exclusive, per-key access to a critical section. No
// two callers holding the same key run concurrently; a keymutex's Lock
// respects context cancelation.
type KeyMutex interface {
	Lock(ctx context.Context, key string) error
	Unlock(key string)
}

// New returns a map-backed KeyMutex. Per-lock overhead is higher than
// a striped mutex, but every distinct key can make concurrent
// progress, which matters here because unrelated scopes must never
// block on each other.
func New() KeyMutex {
	return &mapKeyMutex{states: make(map[string]*state)}
}

type mapKeyMutex struct {
	mu     sync.Mutex
	states map[string]*state
}

type state struct {
	sema    *semaphore.Weighted
	waiters int
}

func newState() *state {
	return &state{sema: semaphore.NewWeighted(1)}
}

func (m *mapKeyMutex) Lock(ctx context.Context, key string) error {
	m.mu.Lock()
	st, ok := m.states[key]
	if !ok {
		st = newState()
		m.states[key] = st
	}
	st.waiters++
	m.mu.Unlock()

	if err := st.sema.Acquire(ctx, 1); err != nil {
		m.mu.Lock()
		st.waiters--
		if st.waiters == 0 {
			delete(m.states, key)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mapKeyMutex) Unlock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[key]
	if !ok {
		return
	}
	st.sema.Release(1)
	st.waiters--
	if st.waiters == 0 {
		delete(m.states, key)
	}
}
