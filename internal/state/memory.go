package state

import (
	"context"
	"sync"

	"device-protect/agent/internal/state/domain"
)

// MemoryStore is an in-memory Store implementation for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	state domain.DeviceState
	set   bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored state, or ErrNotFound if none was saved.
func (m *MemoryStore) Load(ctx context.Context) (domain.DeviceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return domain.DeviceState{}, ErrNotFound
	}
	return m.state, nil
}

// Save replaces the stored state.
func (m *MemoryStore) Save(ctx context.Context, s domain.DeviceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.set = true
	return nil
}

// Clear removes the stored state.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.DeviceState{}
	m.set = false
	return nil
}
