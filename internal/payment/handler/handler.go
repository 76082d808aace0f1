// Package handler exposes the payment workflow over HTTP: record, then
// finalize or cancel, plus admin reversals. All decisions belong to the
// lifecycle engine.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"citepay/internal/audit"
	"citepay/internal/lifecycle"
	"citepay/internal/payment/models"
	id "citepay/pkg/domain"
	"citepay/pkg/platform/httputil"
	"citepay/pkg/requestcontext"
)

// Service is the engine surface the payment endpoints need.
type Service interface {
	RecordPayment(ctx context.Context, draft lifecycle.PaymentDraft) (*models.Payment, error)
	FinalizePayment(ctx context.Context, paymentID id.PaymentID) error
	CancelPayment(ctx context.Context, paymentID id.PaymentID, reason string) error
	ChangeReceiptNumber(ctx context.Context, paymentID id.PaymentID, newReceiptNumber, reason string) error
	VoidOrRefundPayment(ctx context.Context, paymentID id.PaymentID, outcome models.Status, reason string) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	History(ctx context.Context, entityType audit.EntityType, entityID uuid.UUID, cursor int64, limit int) (*audit.Page, error)
}

// Handler wires payment endpoints to the lifecycle engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a payment handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts payment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/payments", h.HandleRecord)
	r.Get("/payments/{paymentID}", h.HandleGet)
	r.Post("/payments/{paymentID}/finalize", h.HandleFinalize)
	r.Post("/payments/{paymentID}/cancel", h.HandleCancel)
	r.Post("/payments/{paymentID}/receipt-number", h.HandleChangeReceiptNumber)
	r.Post("/payments/{paymentID}/reverse", h.HandleReverse)
	r.Get("/payments/{paymentID}/history", h.HandleHistory)
}

// HandleRecord handles POST /payments.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[RecordRequest](w, r)
	if !ok {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payment, err := h.service.RecordPayment(ctx, draft)
	if err != nil {
		h.logger.ErrorContext(ctx, "record payment failed",
			"request_id", requestcontext.RequestID(ctx),
			"citation_id", req.CitationID,
			"receipt_number", req.ReceiptNumber,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, payment)
}

// HandleGet handles GET /payments/{paymentID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

// HandleFinalize handles POST /payments/{paymentID}/finalize.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.FinalizePayment(ctx, paymentID); err != nil {
		h.logger.ErrorContext(ctx, "finalize payment failed",
			"request_id", requestcontext.RequestID(ctx),
			"payment_id", paymentID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCancel handles POST /payments/{paymentID}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ReasonRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.CancelPayment(ctx, paymentID, req.Reason); err != nil {
		h.logger.ErrorContext(ctx, "cancel payment failed",
			"request_id", requestcontext.RequestID(ctx),
			"payment_id", paymentID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeReceiptNumber handles POST /payments/{paymentID}/receipt-number.
func (h *Handler) HandleChangeReceiptNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ChangeReceiptRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.ChangeReceiptNumber(ctx, paymentID, req.ReceiptNumber, req.Reason); err != nil {
		h.logger.ErrorContext(ctx, "change receipt number failed",
			"request_id", requestcontext.RequestID(ctx),
			"payment_id", paymentID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReverse handles POST /payments/{paymentID}/reverse.
func (h *Handler) HandleReverse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ReverseRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.VoidOrRefundPayment(ctx, paymentID, models.Status(req.Outcome), req.Reason); err != nil {
		h.logger.ErrorContext(ctx, "reverse payment failed",
			"request_id", requestcontext.RequestID(ctx),
			"payment_id", paymentID,
			"outcome", req.Outcome,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHistory handles GET /payments/{paymentID}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cursor, _ := strconv.ParseInt(r.URL.Query().Get("cursor"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.service.History(r.Context(), audit.EntityPayment, uuid.UUID(paymentID), cursor, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{
		Entries:    page.Entries,
		NextCursor: page.NextCursor,
	})
}
