package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/event"
	"github.com/chautari/chautari/internal/repository"
	apperrors "github.com/chautari/chautari/pkg/errors"
	"github.com/chautari/chautari/pkg/slug"
)

// ListingService implements the business logic for listings.
type ListingService struct {
	listings   repository.ListingRepository
	categories repository.CategoryRepository
	saved      repository.SavedListingRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewListingService creates a new listing service.
func NewListingService(
	listings repository.ListingRepository,
	categories repository.CategoryRepository,
	saved repository.SavedListingRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		listings:   listings,
		categories: categories,
		saved:      saved,
		producer:   producer,
		logger:     logger,
	}
}

// CreateListingInput holds the parameters for creating a listing.
type CreateListingInput struct {
	SellerID    string
	CategoryID  string
	Title       string
	Description string
	Price       float64
	Condition   string
	ImageURLs   []string
}

// CreateListing creates a new active listing with its images. The slug is
// derived from the title; collisions get a random suffix.
func (s *ListingService) CreateListing(ctx context.Context, input CreateListingInput) (*domain.Listing, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.InvalidInput("title is required").WithField("title", "must not be empty")
	}
	if input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative").WithField("price", "must be zero or positive")
	}
	if !domain.IsValidCondition(input.Condition) {
		return nil, apperrors.InvalidInput("unknown condition").WithField("condition", "must be one of: new, like_new, good, fair, poor")
	}
	if len(input.ImageURLs) > domain.MaxListingImages {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d images are allowed", domain.MaxListingImages)).
			WithField("images", "too many images")
	}

	if _, err := s.categories.GetByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidInput("unknown category").WithField("category_id", "category does not exist")
		}
		return nil, fmt.Errorf("look up category: %w", err)
	}

	listingSlug, err := s.uniqueSlug(ctx, input.Title)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:          uuid.New().String(),
		SellerID:    input.SellerID,
		CategoryID:  input.CategoryID,
		Title:       strings.TrimSpace(input.Title),
		Slug:        listingSlug,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Condition:   input.Condition,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	listing.Images = buildImages(listing.ID, input.ImageURLs, 0, now)

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	if err := s.producer.PublishListingCreated(ctx, listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing.created event",
			slog.String("listing_id", listing.ID),
			slog.String("error", err.Error()),
		)
	}

	return listing, nil
}

func (s *ListingService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slug.Generate(title)

	exists, err := s.listings.SlugExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("check slug: %w", err)
	}
	if !exists {
		return base, nil
	}

	return slug.WithSuffix(base, uuid.New().String()[:8]), nil
}

// buildImages builds image rows starting at the given position. The first
// image of the listing is the primary one.
func buildImages(listingID string, urls []string, startPos int, now time.Time) []domain.ListingImage {
	images := make([]domain.ListingImage, 0, len(urls))
	for i, url := range urls {
		images = append(images, domain.ListingImage{
			ID:        uuid.New().String(),
			ListingID: listingID,
			URL:       url,
			IsPrimary: startPos == 0 && i == 0,
			Position:  startPos + i,
			CreatedAt: now,
		})
	}
	return images
}

// GetListing retrieves a listing for a viewer. Inactive listings are visible
// only to their owner. Views by non-owners bump the view counter. When the
// viewer is authenticated the saved flag is attached.
func (s *ListingService) GetListing(ctx context.Context, id, viewerID string) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("listing", id)
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	isOwner := viewerID != "" && viewerID == listing.SellerID
	if !listing.Visible() && !isOwner {
		return nil, apperrors.NotFound("listing", id)
	}

	if !isOwner {
		if err := s.listings.IncrementViewCount(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "failed to increment view count",
				slog.String("listing_id", id),
				slog.String("error", err.Error()),
			)
		} else {
			listing.ViewCount++
		}
	}

	if viewerID != "" {
		savedFlag, err := s.saved.Exists(ctx, viewerID, id)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to check saved state",
				slog.String("listing_id", id),
				slog.String("error", err.Error()),
			)
		} else {
			listing.Saved = &savedFlag
		}
	}

	return listing, nil
}

// ListListings returns active listings matching the filter.
func (s *ListingService) ListListings(ctx context.Context, filter repository.ListingFilter) ([]domain.Listing, int, error) {
	if filter.Condition != nil && !domain.IsValidCondition(*filter.Condition) {
		return nil, 0, apperrors.InvalidInput("unknown condition").WithField("condition", "must be one of: new, like_new, good, fair, poor")
	}

	filter.ActiveOnly = true
	listings, total, err := s.listings.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	return listings, total, nil
}

// ListOwnListings returns all of a seller's listings including inactive and
// sold ones.
func (s *ListingService) ListOwnListings(ctx context.Context, sellerID string, page, perPage int) ([]domain.Listing, int, error) {
	listings, total, err := s.listings.ListBySeller(ctx, sellerID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list own listings: %w", err)
	}
	return listings, total, nil
}

// UpdateListingInput holds the mutable fields of a listing. Nil fields are
// left unchanged.
type UpdateListingInput struct {
	CategoryID  *string
	Title       *string
	Description *string
	Price       *float64
	Condition   *string
	IsActive    *bool
	ImageURLs   []string
}

// UpdateListing applies a partial update to a listing owned by actorID.
// The sold flag does not restrict edits; active and sold are independent
// axes, so a sold listing can still be deactivated or reworded. The slug
// never changes after creation.
func (s *ListingService) UpdateListing(ctx context.Context, id, actorID string, input UpdateListingInput) (*domain.Listing, error) {
	listing, err := s.ownedListing(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	if input.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.InvalidInput("unknown category").WithField("category_id", "category does not exist")
			}
			return nil, fmt.Errorf("look up category: %w", err)
		}
		listing.CategoryID = *input.CategoryID
	}
	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, apperrors.InvalidInput("title is required").WithField("title", "must not be empty")
		}
		listing.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		listing.Description = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, apperrors.InvalidInput("price must not be negative").WithField("price", "must be zero or positive")
		}
		listing.Price = *input.Price
	}
	if input.Condition != nil {
		if !domain.IsValidCondition(*input.Condition) {
			return nil, apperrors.InvalidInput("unknown condition").WithField("condition", "must be one of: new, like_new, good, fair, poor")
		}
		listing.Condition = *input.Condition
	}
	if input.IsActive != nil {
		listing.IsActive = *input.IsActive
	}

	// Supplied images are appended after the existing ones; updates never
	// remove or replace images.
	now := time.Now().UTC()
	existing := len(listing.Images)
	if len(input.ImageURLs) > 0 {
		if existing+len(input.ImageURLs) > domain.MaxListingImages {
			return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d images are allowed", domain.MaxListingImages)).
				WithField("images", "too many images")
		}
		listing.Images = buildImages(listing.ID, input.ImageURLs, existing, now)
	} else {
		listing.Images = nil
	}

	listing.UpdatedAt = now
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}

	return s.GetListing(ctx, id, actorID)
}

// MarkSold marks a listing sold. The transition is irreversible.
func (s *ListingService) MarkSold(ctx context.Context, id, actorID string) (*domain.Listing, error) {
	listing, err := s.ownedListing(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	if listing.IsSold {
		return nil, apperrors.Conflict("listing is already sold")
	}

	listing.IsSold = true
	listing.Images = nil // no new images to attach
	listing.UpdatedAt = time.Now().UTC()
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("mark listing sold: %w", err)
	}

	if err := s.producer.PublishListingSold(ctx, listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing.sold event",
			slog.String("listing_id", listing.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.GetListing(ctx, id, actorID)
}

// DeleteListing removes a listing owned by actorID. Sold listings may still
// be deleted.
func (s *ListingService) DeleteListing(ctx context.Context, id, actorID string) error {
	if _, err := s.ownedListing(ctx, id, actorID); err != nil {
		return err
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}

	return nil
}

func (s *ListingService) ownedListing(ctx context.Context, id, actorID string) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("listing", id)
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	if listing.SellerID != actorID {
		return nil, apperrors.Forbidden("only the seller can modify this listing")
	}

	return listing, nil
}

// Stats returns marketplace-wide listing counts.
func (s *ListingService) Stats(ctx context.Context) (*domain.ListingStats, error) {
	stats, err := s.listings.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	return stats, nil
}
