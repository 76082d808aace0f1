package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	citationmodels "citepay/internal/citation/models"
	citationstore "citepay/internal/citation/store"
	paymentmodels "citepay/internal/payment/models"
	paymentstore "citepay/internal/payment/store"
	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
)

// mapCache is an in-process Cache for tests.
type mapCache struct {
	views map[string]*View
	gets  int
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{views: make(map[string]*View)}
}

func (c *mapCache) Get(_ context.Context, receiptNumber string) (*View, error) {
	c.gets++
	return c.views[receiptNumber], nil
}

func (c *mapCache) Set(_ context.Context, receiptNumber string, view *View) error {
	c.sets++
	c.views[receiptNumber] = view
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, receiptNumber string) error {
	delete(c.views, receiptNumber)
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	citations *citationstore.InMemoryStore
	payments  *paymentstore.InMemoryStore
	cache     *mapCache
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.citations = citationstore.NewInMemory()
	s.payments = paymentstore.NewInMemory()
	s.cache = newMapCache()
	s.service = New(s.payments, s.citations, WithCache(s.cache))
}

func (s *ServiceSuite) seed(receipt string, status paymentmodels.Status) (*citationmodels.Citation, *paymentmodels.Payment) {
	now := time.Now().UTC()
	citation := &citationmodels.Citation{
		ID:            id.NewCitationID(),
		TicketNumber:  "TKT-001",
		DriverName:    "Jordan Reyes",
		LicenseNumber: "D1234567",
		TotalFine:     decimal.NewFromInt(500),
		Status:        citationmodels.StatusPaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Require().NoError(s.citations.Create(s.ctx, citation))

	payment := &paymentmodels.Payment{
		ID:            id.NewPaymentID(),
		CitationID:    citation.ID,
		ReceiptNumber: receipt,
		AmountPaid:    citation.TotalFine,
		Method:        paymentmodels.MethodCash,
		Status:        status,
		CollectedBy:   "cashier-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Require().NoError(s.payments.Create(s.ctx, payment))
	return citation, payment
}

func (s *ServiceSuite) TestLookup() {
	citation, payment := s.seed("CGVM00012345", paymentmodels.StatusCompleted)

	view, err := s.service.Lookup(s.ctx, " cgvm00012345 ")
	s.Require().NoError(err)
	s.Equal(payment.ID, view.Payment.ID)
	s.Equal(citation.ID, view.Citation.ID)
}

func (s *ServiceSuite) TestLookupCachesCompletedOnly() {
	s.Run("completed payment is cached", func() {
		s.seed("00012345", paymentmodels.StatusCompleted)
		_, err := s.service.Lookup(s.ctx, "00012345")
		s.Require().NoError(err)
		s.Equal(1, s.cache.sets)

		_, err = s.service.Lookup(s.ctx, "00012345")
		s.Require().NoError(err)
		s.Equal(1, s.cache.sets, "second lookup served from cache")
	})

	s.Run("pending payment is not cached", func() {
		s.payments = paymentstore.NewInMemory()
		s.citations = citationstore.NewInMemory()
		s.cache = newMapCache()
		s.service = New(s.payments, s.citations, WithCache(s.cache))

		s.seed("00054321", paymentmodels.StatusPendingPrint)
		_, err := s.service.Lookup(s.ctx, "00054321")
		s.Require().NoError(err)
		s.Zero(s.cache.sets)
	})
}

func (s *ServiceSuite) TestLookupAfterInvalidation() {
	_, payment := s.seed("00012345", paymentmodels.StatusCompleted)

	_, err := s.service.Lookup(s.ctx, "00012345")
	s.Require().NoError(err)

	// A reversal updates the row and drops the cache entry; the next
	// lookup must see the live status.
	s.Require().NoError(s.payments.UpdateStatus(s.ctx, payment.ID, paymentmodels.StatusVoided, nil, time.Now()))
	s.Require().NoError(s.cache.Invalidate(s.ctx, "00012345"))

	view, err := s.service.Lookup(s.ctx, "00012345")
	s.Require().NoError(err)
	s.Equal(paymentmodels.StatusVoided, view.Payment.Status)
}

func (s *ServiceSuite) TestLookupFailures() {
	s.Run("bad format", func() {
		_, err := s.service.Lookup(s.ctx, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown receipt", func() {
		_, err := s.service.Lookup(s.ctx, "00000000")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestLookupWithoutCache() {
	s.service = New(s.payments, s.citations)
	s.seed("00012345", paymentmodels.StatusCompleted)

	view, err := s.service.Lookup(s.ctx, "00012345")
	s.Require().NoError(err)
	s.NotNil(view)
}
