// ABOUTME: Store contract for durable session state with leases and optimistic versioning
// ABOUTME: Provides the shared per-key lease table used by all implementations

package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store errors
var (
	// ErrNotFound is returned when no session exists for a key
	ErrNotFound = errors.New("session not found")

	// ErrLeaseTimeout is returned when a lease cannot be acquired in time;
	// the provider's redelivery is expected to retry the event
	ErrLeaseTimeout = errors.New("session lease timeout")

	// ErrVersionConflict is returned when a save races a concurrent write;
	// the caller must reload and retry rather than overwrite
	ErrVersionConflict = errors.New("session version conflict")
)

// Store persists conversation sessions. A transition may only be applied
// between Acquire and its release, and Save must carry the version the
// session was loaded with.
//
// Save semantics: expectedVersion 0 creates the session and fails if a row
// already exists; a non-zero expectedVersion replaces the stored session
// (including a fresh session taking over an expired one) iff the stored
// version still matches. On success the session's Version is bumped to
// expectedVersion+1.
type Store interface {
	Load(ctx context.Context, key Key) (*Session, error)

	// Acquire blocks until the key's lease is free or timeout elapses.
	// The returned release function is idempotent and must be called on
	// every exit path.
	Acquire(ctx context.Context, key Key, timeout time.Duration) (release func(), err error)

	Save(ctx context.Context, s *Session, expectedVersion int64) error

	Close() error
}

// leaseTable serializes transitions per key with an in-process lease.
// Each key maps to a one-slot channel acting as a timed mutex: holders for
// different keys never contend. Slots are refcounted by holder plus
// waiters and pruned once nobody references them, so the table only ever
// holds entries for keys with in-flight transitions.
type leaseTable struct {
	mu    sync.Mutex
	slots map[string]*leaseSlot
}

type leaseSlot struct {
	ch   chan struct{}
	refs int
}

func newLeaseTable() *leaseTable {
	return &leaseTable{slots: make(map[string]*leaseSlot)}
}

// checkout returns the slot for a key, creating it on first use and
// counting the caller as a reference
func (l *leaseTable) checkout(key string) *leaseSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = &leaseSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

// checkin drops one reference, deleting the slot once unreferenced.
// Safe: a slot is only deleted when no holder and no waiter can touch
// its channel anymore.
func (l *leaseTable) checkin(key string, slot *leaseSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// acquire blocks until the lease is held, the timeout fires, or ctx is
// cancelled. The release func may be called multiple times safely.
func (l *leaseTable) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	slot := l.checkout(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.checkin(key, slot)
			})
		}, nil
	case <-timer.C:
		l.checkin(key, slot)
		return nil, ErrLeaseTimeout
	case <-ctx.Done():
		l.checkin(key, slot)
		return nil, ctx.Err()
	}
}

// size reports how many keys currently hold lease slots
func (l *leaseTable) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
