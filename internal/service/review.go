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

// ReviewService implements the business logic for user reviews.
type ReviewService struct {
	reviews repository.ReviewRepository
	users   repository.UserRepository
	logger  *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(reviews repository.ReviewRepository, users repository.UserRepository, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		users:   users,
		logger:  logger,
	}
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	ReviewerID string
	ReviewedID string
	Rating     int
	Comment    string
}

// CreateReview records a rating of one user by another. Self-reviews are
// rejected and a reviewer can review a given user only once.
func (s *ReviewService) CreateReview(ctx context.Context, input CreateReviewInput) (*domain.Review, error) {
	if input.ReviewerID == input.ReviewedID {
		return nil, apperrors.InvalidInput("you cannot review yourself").
			WithField("reviewed_id", "must be a different user")
	}
	if input.Rating < domain.MinRating || input.Rating > domain.MaxRating {
		return nil, apperrors.InvalidInput("rating out of range").
			WithField("rating", fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > domain.MaxReviewCommentLength {
		return nil, apperrors.InvalidInput("comment is too long").
			WithField("comment", fmt.Sprintf("must be at most %d characters", domain.MaxReviewCommentLength))
	}

	if _, err := s.users.GetByID(ctx, input.ReviewedID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", input.ReviewedID)
		}
		return nil, fmt.Errorf("look up reviewed user: %w", err)
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:         uuid.New().String(),
		ReviewerID: input.ReviewerID,
		ReviewedID: input.ReviewedID,
		Rating:     input.Rating,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	return review, nil
}

// UpdateReviewInput holds the mutable fields of a review. Nil fields are
// left unchanged.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
}

// UpdateReview modifies a review written by actorID.
func (s *ReviewService) UpdateReview(ctx context.Context, id, actorID string, input UpdateReviewInput) (*domain.Review, error) {
	review, err := s.ownedReview(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	if input.Rating != nil {
		if *input.Rating < domain.MinRating || *input.Rating > domain.MaxRating {
			return nil, apperrors.InvalidInput("rating out of range").
				WithField("rating", fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating))
		}
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		comment := strings.TrimSpace(*input.Comment)
		if len(comment) > domain.MaxReviewCommentLength {
			return nil, apperrors.InvalidInput("comment is too long").
				WithField("comment", fmt.Sprintf("must be at most %d characters", domain.MaxReviewCommentLength))
		}
		review.Comment = comment
	}

	review.UpdatedAt = time.Now().UTC()
	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	return review, nil
}

// DeleteReview removes a review. The author may delete their own review;
// staff may delete any.
func (s *ReviewService) DeleteReview(ctx context.Context, id, actorID string, actorIsStaff bool) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("review", id)
		}
		return fmt.Errorf("get review: %w", err)
	}

	if review.ReviewerID != actorID && !actorIsStaff {
		return apperrors.Forbidden("only the author can modify this review")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	return nil
}

func (s *ReviewService) ownedReview(ctx context.Context, id, actorID string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	if review.ReviewerID != actorID {
		return nil, apperrors.Forbidden("only the author can modify this review")
	}

	return review, nil
}

// Summary returns the aggregate rating for a user. Users with no reviews
// get a zero summary rather than an error.
func (s *ReviewService) Summary(ctx context.Context, userID string) (*domain.ReviewSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	summary, err := s.reviews.Summary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("review summary: %w", err)
	}
	return summary, nil
}

// ListForUser returns reviews received by a user along with their summary.
func (s *ReviewService) ListForUser(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, *domain.ReviewSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, 0, nil, apperrors.NotFound("user", userID)
		}
		return nil, 0, nil, fmt.Errorf("look up user: %w", err)
	}

	reviews, total, err := s.reviews.ListForUser(ctx, userID, page, perPage)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("list reviews: %w", err)
	}

	summary, err := s.reviews.Summary(ctx, userID)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("review summary: %w", err)
	}

	return reviews, total, summary, nil
}
