package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/pkg/httputil"
	"github.com/chautari/chautari/pkg/middleware"
	"github.com/chautari/chautari/pkg/validator"
)

// ProfileHandler handles HTTP requests for profile endpoints.
type ProfileHandler struct {
	service *service.ProfileService
	logger  *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: svc,
		logger:  logger,
	}
}

// UpdateProfileRequest is the JSON request body for a partial profile update.
// Absent fields are left unchanged.
type UpdateProfileRequest struct {
	Bio            *string `json:"bio" validate:"omitempty,max=1000"`
	AvatarURL      *string `json:"avatar_url" validate:"omitempty,url"`
	College        *string `json:"college" validate:"omitempty,max=200"`
	GraduationYear *int    `json:"graduation_year" validate:"omitempty,gte=1950,lte=2100"`
	ShowPhone      *bool   `json:"show_phone"`
}

// GetPublic handles GET /api/users/{id}
func (h *ProfileHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	viewerID := middleware.UserIDFromContext(r.Context())
	profile, err := h.service.GetPublicProfile(r.Context(), userID.String(), viewerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateOwn handles PATCH /api/profiles/me
func (h *ProfileHandler) UpdateOwn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateProfileRequest
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

	userID := middleware.UserIDFromContext(r.Context())
	profile, err := h.service.UpdateProfile(r.Context(), userID, service.UpdateProfileInput{
		Bio:            req.Bio,
		AvatarURL:      req.AvatarURL,
		College:        req.College,
		GraduationYear: req.GraduationYear,
		ShowPhone:      req.ShowPhone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}
