package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"citepay/internal/citation/models"
	id "citepay/pkg/domain"
	"citepay/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func (s *InMemoryStoreSuite) newCitation(ticket, license string) *models.Citation {
	now := time.Now().UTC()
	citationID := id.NewCitationID()
	line := models.ViolationLine{
		CitationID:      citationID,
		ViolationTypeID: id.NewViolationTypeID(),
		OffenseTier:     1,
		FineAmount:      decimal.NewFromInt(500),
	}
	return &models.Citation{
		ID:            citationID,
		TicketNumber:  ticket,
		DriverName:    "Jordan Reyes",
		LicenseNumber: license,
		PlateNumber:   "ABC-123",
		Lines:         []models.ViolationLine{line},
		TotalFine:     line.FineAmount,
		Status:        models.StatusPending,
		CreatedBy:     "clerk-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	citation := s.newCitation("TKT-001", "D1234567")
	s.Require().NoError(s.store.Create(s.ctx, citation))

	found, err := s.store.FindByID(s.ctx, citation.ID)
	s.Require().NoError(err)
	s.Equal(citation.TicketNumber, found.TicketNumber)
	s.Len(found.Lines, 1)
	s.True(found.TotalFine.Equal(decimal.NewFromInt(500)))
}

func (s *InMemoryStoreSuite) TestCreateDuplicateTicket() {
	first := s.newCitation("TKT-001", "D1234567")
	s.Require().NoError(s.store.Create(s.ctx, first))

	s.Run("same case", func() {
		dup := s.newCitation("TKT-001", "D7654321")
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrDuplicate)
	})

	s.Run("different case", func() {
		dup := s.newCitation("tkt-001", "D7654321")
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrDuplicate)
	})

	s.Run("freed after soft delete", func() {
		s.Require().NoError(s.store.SoftDelete(s.ctx, first.ID, time.Now()))
		reissue := s.newCitation("TKT-001", "D7654321")
		s.NoError(s.store.Create(s.ctx, reissue))
	})
}

func (s *InMemoryStoreSuite) TestUpdate() {
	citation := s.newCitation("TKT-001", "D1234567")
	s.Require().NoError(s.store.Create(s.ctx, citation))

	s.Run("fields change, status and provenance do not", func() {
		updated := cloneCitation(citation)
		updated.DriverName = "Morgan Diaz"
		updated.Status = models.StatusVoid
		updated.CreatedBy = "someone-else"
		s.Require().NoError(s.store.Update(s.ctx, updated))

		found, err := s.store.FindByID(s.ctx, citation.ID)
		s.Require().NoError(err)
		s.Equal("Morgan Diaz", found.DriverName)
		s.Equal(models.StatusPending, found.Status)
		s.Equal("clerk-1", found.CreatedBy)
	})

	s.Run("unknown id", func() {
		ghost := s.newCitation("TKT-002", "D0000000")
		s.ErrorIs(s.store.Update(s.ctx, ghost), sentinel.ErrNotFound)
	})

	s.Run("ticket collision with other citation", func() {
		other := s.newCitation("TKT-003", "D1111111")
		s.Require().NoError(s.store.Create(s.ctx, other))

		updated := cloneCitation(other)
		updated.TicketNumber = "TKT-001"
		s.ErrorIs(s.store.Update(s.ctx, updated), sentinel.ErrDuplicate)
	})

	s.Run("keeping own ticket is not a collision", func() {
		updated := cloneCitation(citation)
		updated.PlateNumber = "XYZ-999"
		s.NoError(s.store.Update(s.ctx, updated))
	})
}

func (s *InMemoryStoreSuite) TestSetStatus() {
	citation := s.newCitation("TKT-001", "D1234567")
	s.Require().NoError(s.store.Create(s.ctx, citation))

	s.Require().NoError(s.store.SetStatus(s.ctx, citation.ID, models.StatusContested, time.Now()))

	found, err := s.store.FindByID(s.ctx, citation.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusContested, found.Status)

	s.ErrorIs(s.store.SetStatus(s.ctx, id.NewCitationID(), models.StatusVoid, time.Now()), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSoftDelete() {
	citation := s.newCitation("TKT-001", "D1234567")
	s.Require().NoError(s.store.Create(s.ctx, citation))

	s.Require().NoError(s.store.SoftDelete(s.ctx, citation.ID, time.Now()))

	// Soft-deleted rows stay readable for audit history.
	found, err := s.store.FindByID(s.ctx, citation.ID)
	s.Require().NoError(err)
	s.True(found.IsDeleted())

	s.Run("double delete", func() {
		s.ErrorIs(s.store.SoftDelete(s.ctx, citation.ID, time.Now()), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestTicketNumberInUse() {
	citation := s.newCitation("TKT-001", "D1234567")
	s.Require().NoError(s.store.Create(s.ctx, citation))

	inUse, err := s.store.TicketNumberInUse(s.ctx, "tkt-001", id.CitationID{})
	s.Require().NoError(err)
	s.True(inUse)

	inUse, err = s.store.TicketNumberInUse(s.ctx, "TKT-001", citation.ID)
	s.Require().NoError(err)
	s.False(inUse, "own citation is excluded")

	inUse, err = s.store.TicketNumberInUse(s.ctx, "TKT-404", id.CitationID{})
	s.Require().NoError(err)
	s.False(inUse)
}

func (s *InMemoryStoreSuite) TestCountPriorOffenses() {
	speeding := id.NewViolationTypeID()
	parking := id.NewViolationTypeID()

	mk := func(ticket, license string, types ...id.ViolationTypeID) *models.Citation {
		citation := s.newCitation(ticket, license)
		citation.Lines = nil
		for _, vt := range types {
			citation.Lines = append(citation.Lines, models.ViolationLine{
				CitationID:      citation.ID,
				ViolationTypeID: vt,
				OffenseTier:     1,
				FineAmount:      decimal.NewFromInt(500),
			})
		}
		citation.TotalFine = models.SumLines(citation.Lines)
		return citation
	}

	first := mk("TKT-001", "D1234567", speeding)
	second := mk("TKT-002", "d1234567", speeding, parking)
	other := mk("TKT-003", "D9999999", speeding)
	deleted := mk("TKT-004", "D1234567", speeding)
	for _, c := range []*models.Citation{first, second, other, deleted} {
		s.Require().NoError(s.store.Create(s.ctx, c))
	}
	s.Require().NoError(s.store.SoftDelete(s.ctx, deleted.ID, time.Now()))

	s.Run("case-insensitive license match", func() {
		count, err := s.store.CountPriorOffenses(s.ctx, "D1234567", speeding, id.CitationID{})
		s.Require().NoError(err)
		s.Equal(2, count, "deleted citations do not count")
	})

	s.Run("excludes the citation being edited", func() {
		count, err := s.store.CountPriorOffenses(s.ctx, "D1234567", speeding, second.ID)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("per violation type", func() {
		count, err := s.store.CountPriorOffenses(s.ctx, "D1234567", parking, id.CitationID{})
		s.Require().NoError(err)
		s.Equal(1, count)
	})
}
