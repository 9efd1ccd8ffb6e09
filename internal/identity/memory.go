package identity

import (
	"context"
	"sync"
)

// MemoryStore - хранилище в памяти для тестов и разработки
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]Identity),
	}
}

func (m *MemoryStore) Save(ctx context.Context, sessionID string, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[sessionID] = *id
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.identities[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &id, nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.identities[sessionID]; !ok {
		return ErrNotFound
	}
	delete(m.identities, sessionID)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
