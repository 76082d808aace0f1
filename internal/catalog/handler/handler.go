// Package handler exposes the violation catalog: listing for authoring UIs
// and the explicit admin reload that swaps in a fresh snapshot.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"citepay/internal/catalog"
	"citepay/pkg/platform/httputil"
	"citepay/pkg/requestcontext"
)

// Handler wires catalog endpoints to the snapshot catalog.
type Handler struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New constructs a catalog handler.
func New(cat *catalog.Catalog, logger *slog.Logger) *Handler {
	return &Handler{catalog: cat, logger: logger}
}

// Register mounts catalog endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/violation-types", h.HandleList)
	r.Post("/violation-types/reload", h.HandleReload)
}

// HandleList handles GET /violation-types.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"violation_types": snap.Types(),
		"loaded_at":       snap.LoadedAt(),
	})
}

// HandleReload handles POST /violation-types/reload.
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.catalog.Reload(ctx); err != nil {
		h.logger.ErrorContext(ctx, "catalog reload failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	snap := h.catalog.Snapshot()
	h.logger.InfoContext(ctx, "catalog reloaded",
		"actor", requestcontext.Actor(ctx),
		"types", len(snap.Types()))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"violation_types": len(snap.Types()),
		"loaded_at":       snap.LoadedAt(),
	})
}
