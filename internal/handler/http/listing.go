package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chautari/chautari/internal/repository"
	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/pkg/httputil"
	"github.com/chautari/chautari/pkg/middleware"
	"github.com/chautari/chautari/pkg/pagination"
	"github.com/chautari/chautari/pkg/validator"
)

// ListingHandler handles HTTP requests for listing endpoints.
type ListingHandler struct {
	service *service.ListingService
	logger  *slog.Logger
}

// NewListingHandler creates a new listing HTTP handler.
func NewListingHandler(svc *service.ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateListingRequest is the JSON request body for creating a listing.
type CreateListingRequest struct {
	CategoryID  string   `json:"category_id" validate:"required,uuid"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required,max=5000"`
	Price       float64  `json:"price" validate:"gte=0"`
	Condition   string   `json:"condition" validate:"required,oneof=new like_new good fair poor"`
	ImageURLs   []string `json:"image_urls" validate:"omitempty,max=5,dive,url"`
}

// UpdateListingRequest is the JSON request body for a partial listing update.
// Absent fields are left unchanged.
type UpdateListingRequest struct {
	CategoryID  *string  `json:"category_id" validate:"omitempty,uuid"`
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Condition   *string  `json:"condition" validate:"omitempty,oneof=new like_new good fair poor"`
	ImageURLs   []string `json:"image_urls" validate:"omitempty,max=5,dive,url"`
}

// --- Handlers ---

// Create handles POST /api/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateListingRequest
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

	listing, err := h.service.CreateListing(r.Context(), service.CreateListingInput{
		SellerID:    middleware.UserIDFromContext(r.Context()),
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Condition:   req.Condition,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, listing)
}

// Get handles GET /api/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	viewerID := middleware.UserIDFromContext(r.Context())
	listing, err := h.service.GetListing(r.Context(), id.String(), viewerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

// List handles GET /api/listings
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := listingFilterFromRequest(w, r)
	if !ok {
		return
	}

	listings, total, err := h.service.ListListings(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	params := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(listings, total, params))
}

// ListByCategory handles GET /api/categories/{slug}/listings
func (h *ListingHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	filter, ok := listingFilterFromRequest(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	filter.CategorySlug = &slug

	listings, total, err := h.service.ListListings(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	params := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(listings, total, params))
}

// Mine handles GET /api/listings/mine
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	sellerID := middleware.UserIDFromContext(r.Context())

	listings, total, err := h.service.ListOwnListings(r.Context(), sellerID, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(listings, total, params))
}

// Update handles PATCH /api/listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateListingRequest
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

	actorID := middleware.UserIDFromContext(r.Context())
	listing, err := h.service.UpdateListing(r.Context(), id.String(), actorID, service.UpdateListingInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Condition:   req.Condition,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

// MarkSold handles POST /api/listings/{id}/sold
func (h *ListingHandler) MarkSold(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	actorID := middleware.UserIDFromContext(r.Context())
	listing, err := h.service.MarkSold(r.Context(), id.String(), actorID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

// Activate handles POST /api/listings/{id}/activate
func (h *ListingHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /api/listings/{id}/deactivate
func (h *ListingHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *ListingHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	actorID := middleware.UserIDFromContext(r.Context())
	listing, err := h.service.UpdateListing(r.Context(), id.String(), actorID, service.UpdateListingInput{
		IsActive: &active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

// Delete handles DELETE /api/listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	actorID := middleware.UserIDFromContext(r.Context())
	if err := h.service.DeleteListing(r.Context(), id.String(), actorID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/listings/stats
func (h *ListingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// listingFilterFromRequest extracts pagination, filter and sort parameters
// from the query string. It writes a 400 and returns false on bad values.
func listingFilterFromRequest(w http.ResponseWriter, r *http.Request) (repository.ListingFilter, bool) {
	params := pagination.FromRequest(r)
	filter := repository.ListingFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
		Sort:    repository.SortNewest,
	}

	q := r.URL.Query()
	if v := q.Get("category"); v != "" {
		filter.CategorySlug = &v
	}
	if v := q.Get("condition"); v != "" {
		switch v {
		case "new", "like_new", "good", "fair", "poor":
			filter.Condition = &v
		default:
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, &httputil.ErrorResponse{
				Code: "INVALID_PARAMETER", Message: "condition must be one of new, like_new, good, fair, poor",
			})
			return filter, false
		}
	}
	if v := q.Get("min_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, &httputil.ErrorResponse{
				Code: "INVALID_PARAMETER", Message: "min_price must be a non-negative number",
			})
			return filter, false
		}
		filter.MinPrice = &f
	}
	if v := q.Get("max_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, &httputil.ErrorResponse{
				Code: "INVALID_PARAMETER", Message: "max_price must be a non-negative number",
			})
			return filter, false
		}
		filter.MaxPrice = &f
	}
	if v := q.Get("q"); v != "" {
		filter.Search = &v
	}
	if v := q.Get("sort"); v != "" {
		switch v {
		case repository.SortNewest, repository.SortPriceAsc, repository.SortPriceDesc:
			filter.Sort = v
		default:
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, &httputil.ErrorResponse{
				Code: "INVALID_PARAMETER", Message: "sort must be one of newest, price_asc, price_desc",
			})
			return filter, false
		}
	}

	return filter, true
}
