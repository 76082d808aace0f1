package handler

import (
	"github.com/shopspring/decimal"

	"citepay/internal/audit"
	"citepay/internal/lifecycle"
	"citepay/internal/payment/models"
	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
)

// RecordRequest is the POST /payments body. The amount is a decimal string
// ("500.00"); floats would lose the exact-equality guarantee.
type RecordRequest struct {
	CitationID    string `json:"citation_id" validate:"required"`
	ReceiptNumber string `json:"receipt_number" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	Method        string `json:"payment_method" validate:"required"`
}

// ToDraft converts the request, parsing the citation ID and amount strictly.
func (r *RecordRequest) ToDraft() (lifecycle.PaymentDraft, error) {
	citationID, err := id.ParseCitationID(r.CitationID)
	if err != nil {
		return lifecycle.PaymentDraft{}, err
	}
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return lifecycle.PaymentDraft{}, err
	}
	return lifecycle.PaymentDraft{
		CitationID:    citationID,
		ReceiptNumber: r.ReceiptNumber,
		Amount:        amount,
		Method:        models.Method(r.Method),
	}, nil
}

// ChangeReceiptRequest is the POST /payments/{id}/receipt-number body.
type ChangeReceiptRequest struct {
	ReceiptNumber string `json:"receipt_number" validate:"required"`
	Reason        string `json:"reason"`
}

// ReverseRequest is the POST /payments/{id}/reverse body.
type ReverseRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=voided refunded"`
	Reason  string `json:"reason" validate:"required"`
}

// ReasonRequest carries the free-text reason for a cancellation.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// HistoryResponse is one page of audit history.
type HistoryResponse struct {
	Entries    []*audit.Entry `json:"entries"`
	NextCursor int64          `json:"next_cursor,omitempty"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "amount must be a decimal string")
	}
	return amount, nil
}
