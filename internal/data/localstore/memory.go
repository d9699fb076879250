package localstore

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/yungbote/neurobridge-learnview/internal/pkg/errors"
)

type MemoryKV struct {
	mu       sync.RWMutex
	data     map[string]string
	capacity int
	disabled bool
}

// NewMemoryKV returns an in-process store. capacity > 0 caps the number of
// keys; writes of new keys beyond it fail with ErrStoreFull.
func NewMemoryKV(capacity int) *MemoryKV {
	return &MemoryKV{data: make(map[string]string), capacity: capacity}
}

// Disable makes every call fail, mimicking storage blocked by the browser.
func (m *MemoryKV) Disable() {
	m.mu.Lock()
	m.disabled = true
	m.mu.Unlock()
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return "", false, pkgerrors.ErrStoreDisabled
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return pkgerrors.ErrStoreDisabled
	}
	if _, exists := m.data[key]; !exists && m.capacity > 0 && len(m.data) >= m.capacity {
		return pkgerrors.ErrStoreFull
	}
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return pkgerrors.ErrStoreDisabled
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return nil, pkgerrors.ErrStoreDisabled
	}
	out := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
