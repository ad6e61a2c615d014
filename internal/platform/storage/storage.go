// Package storage provides the flat key/value stores behind the client's
// durable session record and its ephemeral per-tab UI state.
//
// Three backends are available: an in-memory map, a JSON file, and a
// PostgreSQL table. WriteThrough layers an in-memory view over any of them so
// the current process keeps working when the backing medium fails.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Store is a flat string key/value store. Get reports ok=false for keys that
// are not present; that is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// MemoryStore is a Store held entirely in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// WriteThrough keeps an authoritative in-memory view of a backing Store.
// Writes always land in memory first; a backing failure is returned to the
// caller but the in-memory value stays in place.
type WriteThrough struct {
	mu      sync.Mutex
	backing Store
	// nil entries are tombstones for deleted keys.
	mem     map[string]*string
	cleared bool
}

func NewWriteThrough(backing Store) *WriteThrough {
	return &WriteThrough{backing: backing, mem: make(map[string]*string)}
}

func (w *WriteThrough) Get(ctx context.Context, key string) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if v, ok := w.mem[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	if w.cleared {
		return "", false, nil
	}

	v, ok, err := w.backing.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("storage: read %q: %w", key, err)
	}
	if ok {
		w.mem[key] = &v
	}
	return v, ok, nil
}

func (w *WriteThrough) Set(ctx context.Context, key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mem[key] = &value
	if err := w.backing.Set(ctx, key, value); err != nil {
		return fmt.Errorf("storage: %q kept in memory only: %w", key, err)
	}
	return nil
}

func (w *WriteThrough) Delete(ctx context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mem[key] = nil
	if err := w.backing.Delete(ctx, key); err != nil {
		return fmt.Errorf("storage: delete of %q kept in memory only: %w", key, err)
	}
	return nil
}

func (w *WriteThrough) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mem = make(map[string]*string)
	w.cleared = true
	if err := w.backing.Clear(ctx); err != nil {
		return fmt.Errorf("storage: clear kept in memory only: %w", err)
	}
	return nil
}
