package session

import (
	"context"
	"sync"
	"time"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// MemoryStore keeps activity in process memory.
// It's the default store and suitable for single-server deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	last   map[mongoid.ID]time.Time
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[mongoid.ID]time.Time)}
}

// SetActivity implements Store.
func (m *MemoryStore) SetActivity(_ context.Context, id mongoid.ID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if prev, ok := m.last[id]; ok && !at.After(prev) {
		return nil
	}
	m.last[id] = at
	return nil
}

// GetActivity implements Store.
func (m *MemoryStore) GetActivity(_ context.Context, id mongoid.ID) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return time.Time{}, false, ErrStoreClosed
	}
	at, ok := m.last[id]
	return at, ok, nil
}

// ActiveSince implements Store.
func (m *MemoryStore) ActiveSince(_ context.Context, since time.Time) ([]mongoid.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	var ids []mongoid.ID
	for id, at := range m.last {
		if !at.Before(since) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for id, at := range m.last {
		if at.Before(before) {
			delete(m.last, id)
		}
	}
	return nil
}

// Len returns the number of tracked sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.last)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.last = nil
	return nil
}
