// Package handler exposes the read-only receipt lookup used by receipt
// renderers.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"citepay/internal/receipt"
	"citepay/pkg/platform/httputil"
)

// Service is the lookup surface the endpoint needs.
type Service interface {
	Lookup(ctx context.Context, receiptNumber string) (*receipt.View, error)
}

// Handler wires the receipt endpoint to the lookup service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a receipt handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the receipt endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/receipts/{receiptNumber}", h.HandleLookup)
}

// HandleLookup handles GET /receipts/{receiptNumber}.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Lookup(r.Context(), chi.URLParam(r, "receiptNumber"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}
