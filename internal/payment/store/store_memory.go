package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"citepay/internal/payment/models"
	id "citepay/pkg/domain"
	"citepay/pkg/platform/sentinel"
)

// InMemoryStore is a mutex-guarded payment store for tests and local
// runs. It mirrors the PostgreSQL constraints: receipt numbers unique
// across all rows, at most one active payment per citation.
type InMemoryStore struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]*models.Payment
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{payments: make(map[id.PaymentID]*models.Payment)}
}

func (s *InMemoryStore) Create(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.Status.Active() {
		for _, existing := range s.payments {
			if existing.CitationID == payment.CitationID && existing.Status.Active() {
				return ErrActivePaymentExists
			}
		}
	}
	if s.receiptTaken(payment.ReceiptNumber, payment.ID) {
		return fmt.Errorf("receipt number %q: %w", payment.ReceiptNumber, sentinel.ErrDuplicate)
	}
	s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePayment(payment), nil
}

func (s *InMemoryStore) FindActiveByCitation(_ context.Context, citationID id.CitationID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payment := range s.payments {
		if payment.CitationID == citationID && payment.Status.Active() {
			return clonePayment(payment), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByReceiptNumber(_ context.Context, receiptNumber string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payment := range s.payments {
		if payment.ReceiptNumber == receiptNumber {
			return clonePayment(payment), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, paymentID id.PaymentID, status models.Status, paymentDate *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	payment.Status = status
	payment.PaymentDate = cloneTime(paymentDate)
	payment.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) UpdateReceiptNumber(_ context.Context, paymentID id.PaymentID, receiptNumber string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if s.receiptTaken(receiptNumber, paymentID) {
		return fmt.Errorf("receipt number %q: %w", receiptNumber, sentinel.ErrDuplicate)
	}
	payment.ReceiptNumber = receiptNumber
	payment.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, paymentID id.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[paymentID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.payments, paymentID)
	return nil
}

func (s *InMemoryStore) ReceiptNumberInUse(_ context.Context, receiptNumber string, excluding id.PaymentID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receiptTaken(receiptNumber, excluding), nil
}

// receiptTaken assumes the caller holds at least a read lock.
func (s *InMemoryStore) receiptTaken(receiptNumber string, excluding id.PaymentID) bool {
	for _, payment := range s.payments {
		if payment.ID != excluding && payment.ReceiptNumber == receiptNumber {
			return true
		}
	}
	return false
}

func clonePayment(payment *models.Payment) *models.Payment {
	clone := *payment
	clone.PaymentDate = cloneTime(payment.PaymentDate)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
