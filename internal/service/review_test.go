package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chautari/chautari/internal/domain"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

func newReviewService(reviews *mockReviewRepository, users *mockUserRepository) *ReviewService {
	return NewReviewService(reviews, users, newTestLogger())
}

// ---------------------------------------------------------------------------
// CreateReview
// ---------------------------------------------------------------------------

func TestCreateReview_Success(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)
	ctx := context.Background()

	users.On("GetByID", ctx, "user-002").Return(&domain.User{ID: "user-002"}, nil)
	reviews.On("Create", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)

	review, err := svc.CreateReview(ctx, CreateReviewInput{
		ReviewerID: "user-001",
		ReviewedID: "user-002",
		Rating:     5,
		Comment:    "  Smooth trade.  ",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)
	assert.Equal(t, "Smooth trade.", review.Comment)
	reviews.AssertExpectations(t)
}

func TestCreateReview_SelfReviewRejected(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)

	_, err := svc.CreateReview(context.Background(), CreateReviewInput{
		ReviewerID: "user-001",
		ReviewedID: "user-001",
		Rating:     5,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReview_RatingOutOfRange(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.CreateReview(context.Background(), CreateReviewInput{
			ReviewerID: "user-001",
			ReviewedID: "user-002",
			Rating:     rating,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "rating %d", rating)
	}
}

func TestCreateReview_CommentTooLong(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)

	_, err := svc.CreateReview(context.Background(), CreateReviewInput{
		ReviewerID: "user-001",
		ReviewedID: "user-002",
		Rating:     4,
		Comment:    strings.Repeat("x", domain.MaxReviewCommentLength+1),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateReview_ReviewedUserMissing(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)
	ctx := context.Background()

	users.On("GetByID", ctx, "user-gone").Return(nil, apperrors.ErrNotFound)

	_, err := svc.CreateReview(ctx, CreateReviewInput{
		ReviewerID: "user-001",
		ReviewedID: "user-gone",
		Rating:     4,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// UpdateReview / DeleteReview
// ---------------------------------------------------------------------------

func existingReview() *domain.Review {
	now := time.Now().UTC()
	return &domain.Review{
		ID:         "rev-001",
		ReviewerID: "user-001",
		ReviewedID: "user-002",
		Rating:     3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestUpdateReview_OnlyAuthor(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)
	ctx := context.Background()

	reviews.On("GetByID", ctx, "rev-001").Return(existingReview(), nil)

	_, err := svc.UpdateReview(ctx, "rev-001", "user-999", UpdateReviewInput{Rating: intPtr(1)})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	reviews.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateReview_Success(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)
	ctx := context.Background()

	reviews.On("GetByID", ctx, "rev-001").Return(existingReview(), nil)
	reviews.On("Update", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)

	updated, err := svc.UpdateReview(ctx, "rev-001", "user-001", UpdateReviewInput{
		Rating:  intPtr(5),
		Comment: strPtr("Changed my mind, great seller."),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, "Changed my mind, great seller.", updated.Comment)
}

func TestDeleteReview_OnlyAuthor(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)
	ctx := context.Background()

	reviews.On("GetByID", ctx, "rev-001").Return(existingReview(), nil)

	err := svc.DeleteReview(ctx, "rev-001", "user-999", false)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	reviews.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteReview_StaffMayDeleteAny(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)
	ctx := context.Background()

	reviews.On("GetByID", ctx, "rev-001").Return(existingReview(), nil)
	reviews.On("Delete", ctx, "rev-001").Return(nil)

	err := svc.DeleteReview(ctx, "rev-001", "user-999", true)
	assert.NoError(t, err)
	reviews.AssertExpectations(t)
}

// ---------------------------------------------------------------------------
// ListForUser
// ---------------------------------------------------------------------------

func TestListForUser_ReturnsSummary(t *testing.T) {
	reviews := new(mockReviewRepository)
	users := new(mockUserRepository)
	svc := newReviewService(reviews, users)
	ctx := context.Background()

	users.On("GetByID", ctx, "user-002").Return(&domain.User{ID: "user-002"}, nil)
	reviews.On("ListForUser", ctx, "user-002", 1, 20).Return([]domain.Review{*existingReview()}, 1, nil)
	reviews.On("Summary", ctx, "user-002").Return(&domain.ReviewSummary{Count: 1, AverageRating: 3.0}, nil)

	list, total, summary, err := svc.ListForUser(ctx, "user-002", 1, 20)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, 3.0, summary.AverageRating)
}
