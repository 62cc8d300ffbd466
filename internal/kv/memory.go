package kv

import (
	"context"
	"sync"
	"time"
)

// MemStore is the in-memory Store backend used by tests and the memory
// data backend. A single mutex covers reads and batch application, so a
// batch is observed all-or-nothing just like the sqlite backend.
type MemStore struct {
	mu          sync.RWMutex
	cells       map[string][]byte
	leaseExpiry time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{cells: make(map[string][]byte)}
}

func (m *MemStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.cells[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *MemStore) Has(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.cells[key]
	return ok, nil
}

func (m *MemStore) Apply(ctx context.Context, b *Batch) error {
	if b == nil || len(b.puts) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range b.puts {
		value := make([]byte, len(p.value))
		copy(value, p.value)
		m.cells[p.key] = value
	}
	return nil
}

func (m *MemStore) ExtendLease(ctx context.Context, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaseExpiry = time.Now().Add(ttl)
	return nil
}

func (m *MemStore) Close() error {
	return nil
}

// LeaseExpiry returns the deadline recorded by the last ExtendLease call.
func (m *MemStore) LeaseExpiry() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leaseExpiry
}

// Snapshot returns a deep copy of every cell. Tests use it to assert that
// failed operations left the store byte-for-byte unchanged.
func (m *MemStore) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.cells))
	for k, v := range m.cells {
		value := make([]byte, len(v))
		copy(value, v)
		out[k] = value
	}
	return out
}

var _ Store = (*MemStore)(nil)
