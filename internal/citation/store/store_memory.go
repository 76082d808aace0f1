package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"citepay/internal/citation/models"
	id "citepay/pkg/domain"
	"citepay/pkg/platform/sentinel"
)

// InMemoryStore is a mutex-guarded citation store for tests and local runs.
// It enforces the same active-ticket-number uniqueness the PostgreSQL schema
// does, so duplicate handling can be exercised without a database.
type InMemoryStore struct {
	mu        sync.RWMutex
	citations map[id.CitationID]*models.Citation
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{citations: make(map[id.CitationID]*models.Citation)}
}

func (s *InMemoryStore) Create(_ context.Context, citation *models.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticketTaken(citation.TicketNumber, citation.ID) {
		return fmt.Errorf("ticket number %q: %w", citation.TicketNumber, sentinel.ErrDuplicate)
	}
	s.citations[citation.ID] = cloneCitation(citation)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, citation *models.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.citations[citation.ID]
	if !ok || existing.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	if s.ticketTaken(citation.TicketNumber, citation.ID) {
		return fmt.Errorf("ticket number %q: %w", citation.TicketNumber, sentinel.ErrDuplicate)
	}
	updated := cloneCitation(citation)
	updated.Status = existing.Status
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	s.citations[citation.ID] = updated
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, citationID id.CitationID) (*models.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	citation, ok := s.citations[citationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCitation(citation), nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, citationID id.CitationID, status models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	citation, ok := s.citations[citationID]
	if !ok || citation.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	citation.Status = status
	citation.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, citationID id.CitationID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	citation, ok := s.citations[citationID]
	if !ok || citation.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	deletedAt := now
	citation.DeletedAt = &deletedAt
	citation.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) TicketNumberInUse(_ context.Context, ticketNumber string, excluding id.CitationID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticketTaken(ticketNumber, excluding), nil
}

func (s *InMemoryStore) CountPriorOffenses(_ context.Context, licenseNumber string, violationTypeID id.ViolationTypeID, excluding id.CitationID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, citation := range s.citations {
		if citation.ID == excluding || citation.DeletedAt != nil {
			continue
		}
		if !strings.EqualFold(citation.LicenseNumber, licenseNumber) {
			continue
		}
		for _, line := range citation.Lines {
			if line.ViolationTypeID == violationTypeID {
				count++
				break
			}
		}
	}
	return count, nil
}

// ticketTaken assumes the caller holds at least a read lock.
func (s *InMemoryStore) ticketTaken(ticketNumber string, excluding id.CitationID) bool {
	for _, citation := range s.citations {
		if citation.ID == excluding || citation.DeletedAt != nil {
			continue
		}
		if strings.EqualFold(citation.TicketNumber, ticketNumber) {
			return true
		}
	}
	return false
}

func cloneCitation(citation *models.Citation) *models.Citation {
	clone := *citation
	clone.Lines = make([]models.ViolationLine, len(citation.Lines))
	copy(clone.Lines, citation.Lines)
	if citation.DeletedAt != nil {
		deletedAt := *citation.DeletedAt
		clone.DeletedAt = &deletedAt
	}
	return &clone
}
