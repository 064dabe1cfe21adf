package kv

import (
	"context"
	"sync"
)

// MemoryStorage keeps values in-process. Values are lost on restart.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int64
}

// NewMemoryStorage creates an empty area. quota limits the summed size of
// all keys and values in bytes; zero means unlimited.
func NewMemoryStorage(quota int64) *MemoryStorage {
	return &MemoryStorage{
		values: make(map[string]string),
		quota:  quota,
	}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 {
		used := int64(0)
		for k, v := range m.values {
			if k != key {
				used += int64(len(k) + len(v))
			}
		}
		if err := checkQuota(key, value, m.quota-used); err != nil {
			return err
		}
	}
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
