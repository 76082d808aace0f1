// Package handler exposes citation authoring and status management over
// HTTP. It delegates every decision to the lifecycle engine; no business
// logic lives here.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"citepay/internal/audit"
	"citepay/internal/citation/models"
	id "citepay/pkg/domain"
	"citepay/pkg/platform/httputil"
	"citepay/pkg/requestcontext"
)

// Service is the engine surface the citation endpoints need.
type Service interface {
	CreateCitation(ctx context.Context, draft models.Draft) (*models.Citation, error)
	UpdateCitation(ctx context.Context, citationID id.CitationID, patch models.Patch) (*models.Citation, error)
	ChangeCitationStatus(ctx context.Context, citationID id.CitationID, target models.Status, reason string) error
	DeleteCitation(ctx context.Context, citationID id.CitationID, reason string) error
	GetCitation(ctx context.Context, citationID id.CitationID) (*models.Citation, error)
	CheckTicketDuplicate(ctx context.Context, ticketNumber string) (bool, error)
	History(ctx context.Context, entityType audit.EntityType, entityID uuid.UUID, cursor int64, limit int) (*audit.Page, error)
}

// Handler wires citation endpoints to the lifecycle engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a citation handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts citation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/citations/ticket-check", h.HandleTicketCheck)
	r.Post("/citations", h.HandleCreate)
	r.Get("/citations/{citationID}", h.HandleGet)
	r.Patch("/citations/{citationID}", h.HandleUpdate)
	r.Delete("/citations/{citationID}", h.HandleDelete)
	r.Post("/citations/{citationID}/status", h.HandleChangeStatus)
	r.Get("/citations/{citationID}/history", h.HandleHistory)
}

// HandleCreate handles POST /citations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CreateRequest](w, r)
	if !ok {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	citation, err := h.service.CreateCitation(ctx, draft)
	if err != nil {
		h.logger.ErrorContext(ctx, "create citation failed",
			"request_id", requestcontext.RequestID(ctx),
			"ticket_number", req.TicketNumber,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, citation)
}

// HandleGet handles GET /citations/{citationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	citationID, err := id.ParseCitationID(chi.URLParam(r, "citationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	citation, err := h.service.GetCitation(r.Context(), citationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, citation)
}

// HandleUpdate handles PATCH /citations/{citationID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	citationID, err := id.ParseCitationID(chi.URLParam(r, "citationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[UpdateRequest](w, r)
	if !ok {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	citation, err := h.service.UpdateCitation(ctx, citationID, patch)
	if err != nil {
		h.logger.ErrorContext(ctx, "update citation failed",
			"request_id", requestcontext.RequestID(ctx),
			"citation_id", citationID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, citation)
}

// HandleDelete handles DELETE /citations/{citationID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	citationID, err := id.ParseCitationID(chi.URLParam(r, "citationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ReasonRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCitation(ctx, citationID, req.Reason); err != nil {
		h.logger.ErrorContext(ctx, "delete citation failed",
			"request_id", requestcontext.RequestID(ctx),
			"citation_id", citationID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeStatus handles POST /citations/{citationID}/status.
func (h *Handler) HandleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	citationID, err := id.ParseCitationID(chi.URLParam(r, "citationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ChangeStatusRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.ChangeCitationStatus(ctx, citationID, models.Status(req.Status), req.Reason); err != nil {
		h.logger.ErrorContext(ctx, "change citation status failed",
			"request_id", requestcontext.RequestID(ctx),
			"citation_id", citationID,
			"status", req.Status,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTicketCheck handles GET /citations/ticket-check?ticket_number=...
// for live duplicate validation in authoring UIs.
func (h *Handler) HandleTicketCheck(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket_number")

	inUse, err := h.service.CheckTicketDuplicate(r.Context(), ticket)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"in_use": inUse})
}

// HandleHistory handles GET /citations/{citationID}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	citationID, err := id.ParseCitationID(chi.URLParam(r, "citationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cursor, limit := historyParams(r)

	page, err := h.service.History(r.Context(), audit.EntityCitation, uuid.UUID(citationID), cursor, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{
		Entries:    page.Entries,
		NextCursor: page.NextCursor,
	})
}

// historyParams reads cursor/limit query parameters; the trail applies its
// own bounds.
func historyParams(r *http.Request) (int64, int) {
	cursor, _ := strconv.ParseInt(r.URL.Query().Get("cursor"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return cursor, limit
}
