package storage

import "sync"

// MemoryStore keeps the latest snapshot per run in process memory. Suitable
// for single-instance deployments; data is lost on restart. Safe for
// concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

func (m *MemoryStore) Put(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.Run] = s
	return nil
}

func (m *MemoryStore) GetLatest(run string) (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[run]
	return s, ok, nil
}
