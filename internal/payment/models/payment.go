package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
)

// Status is the lifecycle state of a payment.
//
// State machine:
//   - pending_print -> completed: finalize (confirms the receipt printed)
//   - pending_print -> (row deleted): cancel; the receipt number is freed
//     immediately and only the audit trail remembers the row
//   - completed -> voided | refunded: admin reversal; the receipt number
//     stays taken because a physical receipt was printed
//
// "cancelled" never survives as a row status; it appears only in audit
// entries describing the deletion.
type Status string

const (
	StatusPendingPrint Status = "pending_print"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
	StatusRefunded     Status = "refunded"
	StatusVoided       Status = "voided"
)

// Valid reports whether s is a known payment status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPrint, StatusCompleted, StatusCancelled, StatusRefunded, StatusVoided:
		return true
	}
	return false
}

// Active reports whether the payment blocks another payment on the same
// citation. Voided and refunded payments are historical.
func (s Status) Active() bool {
	return s == StatusPendingPrint || s == StatusCompleted
}

// Method is how the payment was tendered.
type Method string

const (
	MethodCash   Method = "cash"
	MethodCheck  Method = "check"
	MethodOnline Method = "online"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCheck, MethodOnline:
		return true
	}
	return false
}

// Payment records money collected against exactly one citation.
//
// Invariants:
//   - ReceiptNumber is normalized upper-case and unique among surviving
//     payments (cancelled rows are deleted, so "surviving" = all rows)
//   - AmountPaid equals the citation's total fine exactly; no partials
//   - at most one payment with an Active status per citation
type Payment struct {
	ID            id.PaymentID    `json:"id"`
	CitationID    id.CitationID   `json:"citation_id"`
	ReceiptNumber string          `json:"receipt_number"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Method        Method          `json:"payment_method"`
	Status        Status          `json:"status"`
	CollectedBy   string          `json:"collected_by"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// receiptNumberPattern: 8 digits, optionally prefixed by 4 letters
// (e.g. "00012345" or "CGVM00012345"). Applied after normalization.
var receiptNumberPattern = regexp.MustCompile(`^(?:[A-Z]{4})?[0-9]{8}$`)

// NormalizeReceiptNumber trims and upper-cases a receipt number so
// uniqueness checks compare like with like.
func NormalizeReceiptNumber(receipt string) string {
	return strings.ToUpper(strings.TrimSpace(receipt))
}

// ValidateReceiptNumber checks the normalized receipt number format.
func ValidateReceiptNumber(receipt string) error {
	if !receiptNumberPattern.MatchString(receipt) {
		return dErrors.New(dErrors.CodeValidation,
			"receipt number must be 8 digits, optionally prefixed by 4 letters")
	}
	return nil
}
