package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/pkg/httputil"
	"github.com/chautari/chautari/pkg/middleware"
	"github.com/chautari/chautari/pkg/pagination"
	"github.com/chautari/chautari/pkg/validator"
)

// CommentHandler handles HTTP requests for listing-comment endpoints.
type CommentHandler struct {
	service *service.CommentService
	logger  *slog.Logger
}

// NewCommentHandler creates a new comment HTTP handler.
func NewCommentHandler(svc *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateCommentRequest is the JSON request body for commenting on a listing.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// Create handles POST /api/listings/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	listingID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteErrorEnvelope(w, http.StatusBadRequest, &httputil.ErrorResponse{
			Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error(),
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	authorID := middleware.UserIDFromContext(r.Context())
	comment, err := h.service.AddComment(r.Context(), listingID.String(), authorID, req.Content)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// List handles GET /api/listings/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	listingID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	viewerID := middleware.UserIDFromContext(r.Context())
	params := pagination.FromRequest(r)
	comments, total, err := h.service.ListComments(r.Context(), listingID.String(), viewerID, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(comments, total, params))
}
