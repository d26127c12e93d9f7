package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/repository"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// SavedService implements the business logic for saved listings.
type SavedService struct {
	saved    repository.SavedListingRepository
	listings repository.ListingRepository
	logger   *slog.Logger
}

// NewSavedService creates a new saved-listing service.
func NewSavedService(saved repository.SavedListingRepository, listings repository.ListingRepository, logger *slog.Logger) *SavedService {
	return &SavedService{
		saved:    saved,
		listings: listings,
		logger:   logger,
	}
}

// Toggle saves or unsaves a listing for the user and reports the resulting
// state. Only visible listings can be saved; existing saves on listings that
// have since gone inactive can still be removed.
func (s *SavedService) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, apperrors.NotFound("listing", listingID)
		}
		return false, fmt.Errorf("get listing: %w", err)
	}

	if !listing.Visible() {
		alreadySaved, err := s.saved.Exists(ctx, userID, listingID)
		if err != nil {
			return false, fmt.Errorf("check saved state: %w", err)
		}
		if !alreadySaved {
			return false, apperrors.NotFound("listing", listingID)
		}
	}

	nowSaved, err := s.saved.Toggle(ctx, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("toggle saved listing: %w", err)
	}

	return nowSaved, nil
}

// List returns the user's saved listings, newest save first.
func (s *SavedService) List(ctx context.Context, userID string, page, perPage int) ([]domain.SavedListing, int, error) {
	saved, total, err := s.saved.ListByUser(ctx, userID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list saved listings: %w", err)
	}
	return saved, total, nil
}
