package progress

import (
	"context"
	"sync"
)

// MemoryStore keeps progress in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Load(_ context.Context, jobID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[jobID]
	if !ok {
		return State{}, ErrNotFound
	}
	return state, nil
}

func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.JobID] = state
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, jobID)
	return nil
}

func (m *MemoryStore) List(context.Context) ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]State, 0, len(m.states))
	for _, state := range m.states {
		out = append(out, state)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
