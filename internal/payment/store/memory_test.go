package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"citepay/internal/payment/models"
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

func (s *InMemoryStoreSuite) newPayment(citationID id.CitationID, receipt string, status models.Status) *models.Payment {
	now := time.Now().UTC()
	return &models.Payment{
		ID:            id.NewPaymentID(),
		CitationID:    citationID,
		ReceiptNumber: receipt,
		AmountPaid:    decimal.NewFromInt(500),
		Method:        models.MethodCash,
		Status:        status,
		CollectedBy:   "clerk-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	citationID := id.NewCitationID()
	payment := s.newPayment(citationID, "00012345", models.StatusPendingPrint)
	s.Require().NoError(s.store.Create(s.ctx, payment))

	found, err := s.store.FindByID(s.ctx, payment.ID)
	s.Require().NoError(err)
	s.Equal("00012345", found.ReceiptNumber)

	active, err := s.store.FindActiveByCitation(s.ctx, citationID)
	s.Require().NoError(err)
	s.Equal(payment.ID, active.ID)

	byReceipt, err := s.store.FindByReceiptNumber(s.ctx, "00012345")
	s.Require().NoError(err)
	s.Equal(payment.ID, byReceipt.ID)
}

func (s *InMemoryStoreSuite) TestReceiptUniqueness() {
	first := s.newPayment(id.NewCitationID(), "00012345", models.StatusCompleted)
	s.Require().NoError(s.store.Create(s.ctx, first))

	s.Run("collision on create", func() {
		dup := s.newPayment(id.NewCitationID(), "00012345", models.StatusPendingPrint)
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrDuplicate)
	})

	s.Run("collision on receipt change", func() {
		other := s.newPayment(id.NewCitationID(), "00099999", models.StatusCompleted)
		s.Require().NoError(s.store.Create(s.ctx, other))
		s.ErrorIs(s.store.UpdateReceiptNumber(s.ctx, other.ID, "00012345", time.Now()), sentinel.ErrDuplicate)
	})

	s.Run("freed after delete", func() {
		s.Require().NoError(s.store.Delete(s.ctx, first.ID))
		reuse := s.newPayment(id.NewCitationID(), "00012345", models.StatusPendingPrint)
		s.NoError(s.store.Create(s.ctx, reuse))
	})
}

func (s *InMemoryStoreSuite) TestOneActivePaymentPerCitation() {
	citationID := id.NewCitationID()
	active := s.newPayment(citationID, "00012345", models.StatusPendingPrint)
	s.Require().NoError(s.store.Create(s.ctx, active))

	s.Run("second active payment rejected", func() {
		second := s.newPayment(citationID, "00054321", models.StatusPendingPrint)
		s.ErrorIs(s.store.Create(s.ctx, second), ErrActivePaymentExists)
	})

	s.Run("voided payment does not block", func() {
		s.Require().NoError(s.store.UpdateStatus(s.ctx, active.ID, models.StatusVoided, nil, time.Now()))
		replacement := s.newPayment(citationID, "00054321", models.StatusPendingPrint)
		s.NoError(s.store.Create(s.ctx, replacement))
	})
}

func (s *InMemoryStoreSuite) TestUpdateStatus() {
	payment := s.newPayment(id.NewCitationID(), "00012345", models.StatusPendingPrint)
	s.Require().NoError(s.store.Create(s.ctx, payment))

	paidAt := time.Now().UTC()
	s.Require().NoError(s.store.UpdateStatus(s.ctx, payment.ID, models.StatusCompleted, &paidAt, paidAt))

	found, err := s.store.FindByID(s.ctx, payment.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, found.Status)
	s.Require().NotNil(found.PaymentDate)
	s.True(found.PaymentDate.Equal(paidAt))

	s.ErrorIs(s.store.UpdateStatus(s.ctx, id.NewPaymentID(), models.StatusVoided, nil, time.Now()), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDelete() {
	payment := s.newPayment(id.NewCitationID(), "00012345", models.StatusPendingPrint)
	s.Require().NoError(s.store.Create(s.ctx, payment))

	s.Require().NoError(s.store.Delete(s.ctx, payment.ID))

	_, err := s.store.FindByID(s.ctx, payment.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, payment.ID), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestReceiptNumberInUse() {
	payment := s.newPayment(id.NewCitationID(), "CGVM00012345", models.StatusCompleted)
	s.Require().NoError(s.store.Create(s.ctx, payment))

	inUse, err := s.store.ReceiptNumberInUse(s.ctx, "CGVM00012345", id.PaymentID{})
	s.Require().NoError(err)
	s.True(inUse)

	inUse, err = s.store.ReceiptNumberInUse(s.ctx, "CGVM00012345", payment.ID)
	s.Require().NoError(err)
	s.False(inUse, "own payment is excluded")
}
