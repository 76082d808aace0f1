package store

import (
	"context"
	"errors"
	"time"

	"citepay/internal/payment/models"
	id "citepay/pkg/domain"
)

// ErrActivePaymentExists reports that a citation already carries a
// pending_print or completed payment. It is distinct from
// sentinel.ErrDuplicate so the engine can tell "receipt number taken"
// apart from "citation already has an active payment" when both are
// surfaced by storage constraints.
var ErrActivePaymentExists = errors.New("active payment already exists for citation")

// Store persists payments.
//
// Error contract: implementations return sentinel.ErrNotFound for missing
// rows, sentinel.ErrDuplicate for receipt-number collisions, and
// ErrActivePaymentExists when the one-active-payment-per-citation
// constraint trips. Uniqueness enforced here is authoritative; service
// pre-checks only improve error messages.
type Store interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindActiveByCitation(ctx context.Context, citationID id.CitationID) (*models.Payment, error)
	FindByReceiptNumber(ctx context.Context, receiptNumber string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, paymentID id.PaymentID, status models.Status, paymentDate *time.Time, now time.Time) error
	UpdateReceiptNumber(ctx context.Context, paymentID id.PaymentID, receiptNumber string, now time.Time) error
	Delete(ctx context.Context, paymentID id.PaymentID) error
	ReceiptNumberInUse(ctx context.Context, receiptNumber string, excluding id.PaymentID) (bool, error)
}
