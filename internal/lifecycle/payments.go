package lifecycle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"citepay/internal/audit"
	citationmodels "citepay/internal/citation/models"
	"citepay/internal/payment/models"
	"citepay/internal/payment/store"
	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
	"citepay/pkg/platform/sentinel"
	"citepay/pkg/requestcontext"
)

// PaymentDraft is the input for recording a payment.
type PaymentDraft struct {
	CitationID    id.CitationID
	ReceiptNumber string
	Amount        decimal.Decimal
	Method        models.Method
}

// RecordPayment records money collected for a pending citation. The payment
// starts in pending_print; the citation's status does not move until the
// receipt is confirmed printed via FinalizePayment. The amount must equal
// the citation's total fine exactly. Receipt uniqueness and the
// one-active-payment rule are decided by the store's constraints inside the
// transaction; of two racing calls exactly one commits.
func (e *Engine) RecordPayment(ctx context.Context, draft PaymentDraft) (payment *models.Payment, err error) {
	ctx, done := e.instrument(ctx, "record_payment")
	defer func() { done(err) }()

	if draft.CitationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "citation id is required")
	}
	receipt := models.NormalizeReceiptNumber(draft.ReceiptNumber)
	if err = models.ValidateReceiptNumber(receipt); err != nil {
		return nil, err
	}
	if !draft.Method.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown payment method: "+string(draft.Method))
	}

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		citation, txErr := e.loadCitation(ctx, draft.CitationID)
		if txErr != nil {
			return txErr
		}
		if citation.Status == citationmodels.StatusPaid {
			return dErrors.New(dErrors.CodeCitationPaid, "citation is already paid")
		}
		if citation.Status != citationmodels.StatusPending {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"payments can only be recorded for pending citations; citation is "+string(citation.Status))
		}

		if _, txErr := e.payments.FindActiveByCitation(ctx, draft.CitationID); txErr == nil {
			return dErrors.New(dErrors.CodeCitationPaid, "citation already has an active payment")
		} else if !errors.Is(txErr, sentinel.ErrNotFound) {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "check active payment")
		}

		if !draft.Amount.Equal(citation.TotalFine) {
			return dErrors.New(dErrors.CodeAmountMismatch,
				"amount must equal the citation's total fine of "+citation.TotalFine.String())
		}

		inUse, txErr := e.payments.ReceiptNumberInUse(ctx, receipt, id.PaymentID{})
		if txErr != nil {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "check receipt number")
		}
		if inUse {
			return dErrors.New(dErrors.CodeDuplicateReceipt, "receipt number already in use")
		}

		payment = &models.Payment{
			ID:            id.NewPaymentID(),
			CitationID:    draft.CitationID,
			ReceiptNumber: receipt,
			AmountPaid:    draft.Amount,
			Method:        draft.Method,
			Status:        models.StatusPendingPrint,
			CollectedBy:   actor,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if txErr := e.payments.Create(ctx, payment); txErr != nil {
			if errors.Is(txErr, store.ErrActivePaymentExists) {
				return dErrors.New(dErrors.CodeCitationPaid, "citation already has an active payment")
			}
			if errors.Is(txErr, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeDuplicateReceipt, "receipt number already in use")
			}
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "create payment")
		}

		return e.trail.Append(ctx, audit.EntityPayment, uuid.UUID(payment.ID),
			actor, audit.ActionRecorded, nil, paymentSnapshot(payment), "")
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.PaymentsRecorded.Inc()
	}
	e.logInfo(ctx, "payment recorded",
		"payment_id", payment.ID,
		"citation_id", payment.CitationID,
		"receipt_number", payment.ReceiptNumber,
		"actor", actor)
	return payment, nil
}

// FinalizePayment confirms the receipt printed: the payment moves to
// completed and the citation to paid, in one commit. This is the only path
// to citation status paid.
func (e *Engine) FinalizePayment(ctx context.Context, paymentID id.PaymentID) (err error) {
	ctx, done := e.instrument(ctx, "finalize_payment")
	defer func() { done(err) }()

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		payment, txErr := e.loadPayment(ctx, paymentID)
		if txErr != nil {
			return txErr
		}
		if payment.Status != models.StatusPendingPrint {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"only a pending_print payment can be finalized; payment is "+string(payment.Status))
		}
		citation, txErr := e.loadCitation(ctx, payment.CitationID)
		if txErr != nil {
			return txErr
		}
		// The citation may have been contested, dismissed or voided while the
		// receipt sat in the printer queue. That change wins: the stale
		// payment has to be cancelled, not finalized.
		if citation.Status != citationmodels.StatusPending {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"citation is "+string(citation.Status)+"; only a pending citation can be marked paid")
		}

		if txErr := e.payments.UpdateStatus(ctx, paymentID, models.StatusCompleted, &now, now); txErr != nil {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "finalize payment")
		}
		if txErr := e.citations.SetStatus(ctx, payment.CitationID, citationmodels.StatusPaid, now); txErr != nil {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "mark citation paid")
		}

		if txErr := e.trail.Append(ctx, audit.EntityPayment, uuid.UUID(paymentID),
			actor, audit.ActionFinalized,
			map[string]any{"status": string(models.StatusPendingPrint)},
			map[string]any{"status": string(models.StatusCompleted), "payment_date": now},
			""); txErr != nil {
			return txErr
		}
		return e.trail.Append(ctx, audit.EntityCitation, uuid.UUID(payment.CitationID),
			actor, audit.ActionStatusChanged,
			map[string]any{"status": string(citation.Status)},
			map[string]any{"status": string(citationmodels.StatusPaid)},
			"payment finalized")
	})
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.PaymentsFinalized.Inc()
	}
	e.logInfo(ctx, "payment finalized", "payment_id", paymentID, "actor", actor)
	return nil
}

// CancelPayment abandons a pending_print payment. The row is deleted, so
// the receipt number is freed immediately; the audit entry is the sole
// remaining record. The citation was never marked paid, so it is untouched.
func (e *Engine) CancelPayment(ctx context.Context, paymentID id.PaymentID, reason string) (err error) {
	ctx, done := e.instrument(ctx, "cancel_payment")
	defer func() { done(err) }()

	actor := requestcontext.Actor(ctx)

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		payment, txErr := e.loadPayment(ctx, paymentID)
		if txErr != nil {
			return txErr
		}
		if payment.Status != models.StatusPendingPrint {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"only a pending_print payment can be cancelled; payment is "+string(payment.Status))
		}

		if txErr := e.payments.Delete(ctx, paymentID); txErr != nil {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "cancel payment")
		}

		return e.trail.Append(ctx, audit.EntityPayment, uuid.UUID(paymentID),
			actor, audit.ActionCancelled, paymentSnapshot(payment),
			map[string]any{"status": string(models.StatusCancelled)}, reason)
	})
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.PaymentsCancelled.Inc()
	}
	e.logInfo(ctx, "payment cancelled", "payment_id", paymentID, "actor", actor, "reason", reason)
	return nil
}

// ChangeReceiptNumber replaces the receipt number on a pending_print
// payment, after a typo or a printer jam consumed a number.
func (e *Engine) ChangeReceiptNumber(ctx context.Context, paymentID id.PaymentID, newReceiptNumber, reason string) (err error) {
	ctx, done := e.instrument(ctx, "change_receipt_number")
	defer func() { done(err) }()

	receipt := models.NormalizeReceiptNumber(newReceiptNumber)
	if err = models.ValidateReceiptNumber(receipt); err != nil {
		return err
	}

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)
	var oldReceipt string

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		payment, txErr := e.loadPayment(ctx, paymentID)
		if txErr != nil {
			return txErr
		}
		if payment.Status != models.StatusPendingPrint {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"receipt numbers can only change while pending print; payment is "+string(payment.Status))
		}
		if payment.ReceiptNumber == receipt {
			return nil
		}
		oldReceipt = payment.ReceiptNumber

		inUse, txErr := e.payments.ReceiptNumberInUse(ctx, receipt, paymentID)
		if txErr != nil {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "check receipt number")
		}
		if inUse {
			return dErrors.New(dErrors.CodeDuplicateReceipt, "receipt number already in use")
		}

		if txErr := e.payments.UpdateReceiptNumber(ctx, paymentID, receipt, now); txErr != nil {
			if errors.Is(txErr, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeDuplicateReceipt, "receipt number already in use")
			}
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "change receipt number")
		}

		return e.trail.Append(ctx, audit.EntityPayment, uuid.UUID(paymentID),
			actor, audit.ActionReceiptChanged,
			map[string]any{"receipt_number": oldReceipt},
			map[string]any{"receipt_number": receipt}, reason)
	})
	if err != nil {
		return err
	}

	if oldReceipt != "" {
		e.invalidateReceipt(ctx, oldReceipt)
		e.logInfo(ctx, "receipt number changed",
			"payment_id", paymentID, "receipt_number", receipt, "actor", actor)
	}
	return nil
}

// VoidOrRefundPayment reverses a completed payment. The payment keeps its
// row and its receipt number (a physical receipt exists), the citation
// reverts to pending, and the reason is mandatory.
func (e *Engine) VoidOrRefundPayment(ctx context.Context, paymentID id.PaymentID, outcome models.Status, reason string) (err error) {
	ctx, done := e.instrument(ctx, "void_or_refund_payment")
	defer func() { done(err) }()

	if outcome != models.StatusVoided && outcome != models.StatusRefunded {
		return dErrors.New(dErrors.CodeValidation, "reversal outcome must be voided or refunded")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "a reason is required to reverse a payment")
	}

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)
	var receipt string

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		payment, txErr := e.loadPayment(ctx, paymentID)
		if txErr != nil {
			return txErr
		}
		if payment.Status != models.StatusCompleted {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"only a completed payment can be voided or refunded; payment is "+string(payment.Status))
		}
		receipt = payment.ReceiptNumber

		citation, txErr := e.loadCitation(ctx, payment.CitationID)
		if txErr != nil {
			return txErr
		}

		if txErr := e.payments.UpdateStatus(ctx, paymentID, outcome, payment.PaymentDate, now); txErr != nil {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "reverse payment")
		}
		if txErr := e.citations.SetStatus(ctx, payment.CitationID, citationmodels.StatusPending, now); txErr != nil {
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "revert citation to pending")
		}

		action := audit.ActionVoided
		if outcome == models.StatusRefunded {
			action = audit.ActionRefunded
		}
		if txErr := e.trail.Append(ctx, audit.EntityPayment, uuid.UUID(paymentID),
			actor, action,
			map[string]any{"status": string(models.StatusCompleted)},
			map[string]any{"status": string(outcome)},
			reason); txErr != nil {
			return txErr
		}
		return e.trail.Append(ctx, audit.EntityCitation, uuid.UUID(payment.CitationID),
			actor, audit.ActionStatusChanged,
			map[string]any{"status": string(citation.Status)},
			map[string]any{"status": string(citationmodels.StatusPending)},
			"payment "+string(outcome))
	})
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.PaymentsReversed.WithLabelValues(string(outcome)).Inc()
	}
	e.invalidateReceipt(ctx, receipt)
	e.logInfo(ctx, "payment reversed",
		"payment_id", paymentID, "outcome", outcome, "actor", actor, "reason", reason)
	return nil
}

// GetPayment returns a payment by id.
func (e *Engine) GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	return e.loadPayment(ctx, paymentID)
}

func (e *Engine) loadPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	payment, err := e.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "find payment")
	}
	return payment, nil
}

// paymentSnapshot captures the audited view of a payment.
func paymentSnapshot(p *models.Payment) map[string]any {
	snapshot := map[string]any{
		"citation_id":    p.CitationID.String(),
		"receipt_number": p.ReceiptNumber,
		"amount_paid":    p.AmountPaid.String(),
		"payment_method": string(p.Method),
		"status":         string(p.Status),
		"collected_by":   p.CollectedBy,
	}
	if p.PaymentDate != nil {
		snapshot["payment_date"] = *p.PaymentDate
	}
	return snapshot
}
