package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/pkg/database"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review. The (reviewer, reviewed) pair is unique.
func (r *ReviewRepository) Create(ctx context.Context, rev *domain.Review) error {
	query := `
		INSERT INTO reviews (id, reviewer_id, reviewed_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		rev.ID,
		rev.ReviewerID,
		rev.ReviewedID,
		rev.Rating,
		rev.Comment,
		rev.CreatedAt,
		rev.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("you have already reviewed this user")
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT id, reviewer_id, reviewed_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1`

	var rev domain.Review
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rev.ID,
		&rev.ReviewerID,
		&rev.ReviewedID,
		&rev.Rating,
		&rev.Comment,
		&rev.CreatedAt,
		&rev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}

	return &rev, nil
}

// Update modifies an existing review's rating and comment.
func (r *ReviewRepository) Update(ctx context.Context, rev *domain.Review) error {
	query := `
		UPDATE reviews
		SET rating = $2, comment = $3, updated_at = $4
		WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, rev.ID, rev.Rating, rev.Comment, rev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", rev.ID)
	}

	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}

	return nil
}

// ListForUser returns reviews received by a user, newest first, with
// reviewer summaries attached.
func (r *ReviewRepository) ListForUser(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error) {
	query := `
		SELECT rv.id, rv.reviewer_id, rv.reviewed_id, rv.rating, rv.comment, rv.created_at, rv.updated_at,
			   u.first_name, u.last_name,
			   COALESCE(p.avatar_url, ''),
			   count(*) OVER() AS total_count
		FROM reviews rv
		JOIN users u ON u.id = rv.reviewer_id
		LEFT JOIN profiles p ON p.user_id = rv.reviewer_id
		WHERE rv.reviewed_id = $1
		ORDER BY rv.created_at DESC
		LIMIT $2 OFFSET $3`

	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var totalCount int
	reviews := make([]domain.Review, 0)

	for rows.Next() {
		var (
			rev      domain.Review
			reviewer domain.UserSummary
		)

		if err := rows.Scan(
			&rev.ID,
			&rev.ReviewerID,
			&rev.ReviewedID,
			&rev.Rating,
			&rev.Comment,
			&rev.CreatedAt,
			&rev.UpdatedAt,
			&reviewer.FirstName,
			&reviewer.LastName,
			&reviewer.AvatarURL,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}

		reviewer.ID = rev.ReviewerID
		rev.Reviewer = &reviewer

		reviews = append(reviews, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, totalCount, nil
}

// Summary returns the count and average rating of reviews received by a
// user. The average is rounded to one decimal place in SQL and is zero when
// the user has no reviews.
func (r *ReviewRepository) Summary(ctx context.Context, userID string) (*domain.ReviewSummary, error) {
	query := `
		SELECT count(*), COALESCE(ROUND(AVG(rating)::numeric, 1), 0)
		FROM reviews
		WHERE reviewed_id = $1`

	var s domain.ReviewSummary
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&s.Count, &s.AverageRating); err != nil {
		return nil, fmt.Errorf("scan review summary: %w", err)
	}

	return &s, nil
}
