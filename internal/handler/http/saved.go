package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/pkg/httputil"
	"github.com/chautari/chautari/pkg/middleware"
	"github.com/chautari/chautari/pkg/pagination"
)

// SavedHandler handles HTTP requests for saved-listing endpoints.
type SavedHandler struct {
	service *service.SavedService
	logger  *slog.Logger
}

// NewSavedHandler creates a new saved-listing HTTP handler.
func NewSavedHandler(svc *service.SavedService, logger *slog.Logger) *SavedHandler {
	return &SavedHandler{
		service: svc,
		logger:  logger,
	}
}

// Toggle handles POST /api/listings/{id}/save
func (h *SavedHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	listingID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	saved, err := h.service.Toggle(r.Context(), userID, listingID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

// List handles GET /api/saved
func (h *SavedHandler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	userID := middleware.UserIDFromContext(r.Context())

	saved, total, err := h.service.List(r.Context(), userID, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(saved, total, params))
}
