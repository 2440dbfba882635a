// ABOUTME: In-memory Store implementation backed by maps
// ABOUTME: Used in tests and single-node development runs

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a goroutine-safe in-memory session store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	leases   *leaseTable
}

// Ensure MemoryStore implements the interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		leases:   newLeaseTable(),
	}
}

func (m *MemoryStore) Load(ctx context.Context, key Key) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Acquire(ctx context.Context, key Key, timeout time.Duration) (func(), error) {
	return m.leases.acquire(ctx, key.String(), timeout)
}

func (m *MemoryStore) Save(ctx context.Context, s *Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.sessions[s.Key.String()]

	if expectedVersion == 0 {
		if exists {
			return ErrVersionConflict
		}
	} else {
		if !exists || stored.Version != expectedVersion {
			return ErrVersionConflict
		}
	}

	s.Version = expectedVersion + 1
	m.sessions[s.Key.String()] = s.Clone()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
