package kv

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKeyValueAdapter - in-memory реализация KeyValuePort для тестов
// и работы без redis
type MemoryKeyValueAdapter struct {
	mu    sync.RWMutex
	items map[string]memoryItem

	// nowFn подменяется в тестах
	nowFn func() time.Time
}

func NewMemoryKeyValueAdapter() *MemoryKeyValueAdapter {
	return &MemoryKeyValueAdapter{
		items: make(map[string]memoryItem),
		nowFn: time.Now,
	}
}

func (m *MemoryKeyValueAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	item, exists := m.items[key]
	m.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if !item.expiresAt.IsZero() && m.nowFn().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}

	return item.value, true, nil
}

func (m *MemoryKeyValueAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.nowFn().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = memoryItem{value: value, expiresAt: expiresAt}
	m.mu.Unlock()

	return nil
}

func (m *MemoryKeyValueAdapter) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()

	return nil
}
