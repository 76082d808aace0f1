package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps audit entries in memory for unit tests. Seq is
// assigned monotonically like the database identity column.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	nextSeq int64
}

// NewInMemory constructs an empty in-memory audit store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{nextSeq: 1}
}

func (s *InMemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	stored.Seq = s.nextSeq
	s.nextSeq++
	s.entries = append(s.entries, &stored)
	entry.Seq = stored.Seq
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType EntityType, entityID uuid.UUID, afterSeq int64, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, entry := range s.entries {
		if entry.EntityType != entityType || entry.EntityID != entityID || entry.Seq <= afterSeq {
			continue
		}
		copied := *entry
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListAfterSeq(_ context.Context, afterSeq int64, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, entry := range s.entries {
		if entry.Seq <= afterSeq {
			continue
		}
		copied := *entry
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every entry oldest-first. Test helper.
func (s *InMemoryStore) All() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
