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
	"github.com/chautari/chautari/internal/repository"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// CommentService implements the business logic for listing comments.
type CommentService struct {
	comments repository.CommentRepository
	listings repository.ListingRepository
	logger   *slog.Logger
}

// NewCommentService creates a new comment service.
func NewCommentService(
	comments repository.CommentRepository,
	listings repository.ListingRepository,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments: comments,
		listings: listings,
		logger:   logger,
	}
}

// AddComment posts a comment on a listing. The listing must be visible to
// the author. Sellers may comment on their own listings, for example to
// answer questions.
func (s *CommentService) AddComment(ctx context.Context, listingID, authorID, content string) (*domain.ListingComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidInput("content is required").WithField("content", "must not be empty")
	}
	if len(content) > domain.MaxCommentLength {
		return nil, apperrors.InvalidInput("comment is too long").
			WithField("content", fmt.Sprintf("must be at most %d characters", domain.MaxCommentLength))
	}

	if err := s.visibleListing(ctx, listingID, authorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment := &domain.ListingComment{
		ID:        uuid.New().String(),
		ListingID: listingID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
		CanEdit:   true,
		CanDelete: true,
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create listing comment: %w", err)
	}

	return comment, nil
}

// ListComments returns a listing's comments, oldest first. The edit and
// delete flags are set per viewer: true only on the viewer's own comments.
func (s *CommentService) ListComments(ctx context.Context, listingID, viewerID string, page, perPage int) ([]domain.ListingComment, int, error) {
	if err := s.visibleListing(ctx, listingID, viewerID); err != nil {
		return nil, 0, err
	}

	comments, total, err := s.comments.ListByListing(ctx, listingID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list listing comments: %w", err)
	}

	for i := range comments {
		own := viewerID != "" && comments[i].AuthorID == viewerID
		comments[i].CanEdit = own
		comments[i].CanDelete = own
	}

	return comments, total, nil
}

func (s *CommentService) visibleListing(ctx context.Context, listingID, viewerID string) error {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("listing", listingID)
		}
		return fmt.Errorf("get listing: %w", err)
	}

	isOwner := viewerID != "" && viewerID == listing.SellerID
	if !listing.Visible() && !isOwner {
		return apperrors.NotFound("listing", listingID)
	}

	return nil
}
