// Package storage provides the key-value substrate for persisted client
// state. Each named collection is an opaque blob that callers rewrite in
// full on every change.
package storage

import "sync"

// KV is a store of named blobs.
type KV interface {
	// Get returns the blob for name; ok is false when it was never set.
	Get(name string) (value []byte, ok bool, err error)
	// Set replaces the blob for name.
	Set(name string, value []byte) error
	// Delete removes every named blob as a single change. Missing names are ignored.
	Delete(names ...string) error
	// Update reads the blob for name, passes it to fn and stores the result,
	// with no other writer able to change name in between. old is nil when
	// name was never set. A nil result leaves the blob untouched; an error
	// from fn aborts the update and is returned as is.
	Update(name string, fn func(old []byte) ([]byte, error)) error
}

var (
	_ KV = (*SQLiteStore)(nil)
	_ KV = (*MemoryStore)(nil)
)

// MemoryStore is a process-local KV.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Set(name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		delete(m.data, n)
	}
	return nil
}

func (m *MemoryStore) Update(name string, fn func(old []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var old []byte
	if v, ok := m.data[name]; ok {
		old = append([]byte(nil), v...)
	}
	value, err := fn(old)
	if err != nil || value == nil {
		return err
	}
	m.data[name] = append([]byte(nil), value...)
	return nil
}
