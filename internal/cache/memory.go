package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore - кэш вкладок в памяти процесса (CLI, тесты, режим без Redis)
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore создает кэш в памяти
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(tabKey(sessionID, key), value)
	return nil
}

func (m *MemoryStore) SetPair(ctx context.Context, sessionID string, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range entries {
		if value == nil {
			delete(m.entries, tabKey(sessionID, key))
			continue
		}
		m.put(tabKey(sessionID, key), value)
	}
	return nil
}

func (m *MemoryStore) put(key string, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = memoryEntry{value: stored, expiresAt: m.now().Add(m.ttl)}
}

func (m *MemoryStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[tabKey(sessionID, key)]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, tabKey(sessionID, key))
		m.mu.Unlock()
		return nil, ErrMiss
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := tabKey(sessionID, "")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// GetStats - статистика для /debug/stats
func (m *MemoryStore) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make(map[string]struct{})
	for key := range m.entries {
		// tab:{sessionID}:{name}
		parts := strings.SplitN(key, ":", 3)
		if len(parts) == 3 {
			sessions[parts[1]] = struct{}{}
		}
	}

	return map[string]interface{}{
		"driver":      string(StoreTypeMemory),
		"keys":        len(m.entries),
		"tab_session": len(sessions),
	}
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
