package catalog

import (
	"context"
	"sync"
)

// InMemoryStore holds violation types for unit tests and local development.
type InMemoryStore struct {
	mu    sync.RWMutex
	types []*ViolationType
}

// NewInMemory constructs an empty in-memory catalog store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

// Put adds or replaces a violation type.
func (s *InMemoryStore) Put(vt *ViolationType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.types {
		if existing.ID == vt.ID {
			s.types[i] = vt
			return
		}
	}
	s.types = append(s.types, vt)
}

func (s *InMemoryStore) ListViolationTypes(_ context.Context) ([]*ViolationType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ViolationType, len(s.types))
	copy(out, s.types)
	return out, nil
}
