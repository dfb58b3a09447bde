// internal/history/memory.go
package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the cold copy in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: Snapshot{}}
}

func (s *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.clone()
	return nil
}

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for owner, entries := range s {
		m := make(map[string]Entry, len(entries))
		for id, e := range entries {
			m[id] = e
		}
		out[owner] = m
	}
	return out
}
