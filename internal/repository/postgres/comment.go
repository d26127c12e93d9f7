package postgres

import (
	"context"
	"fmt"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/pkg/database"
)

// CommentRepository implements repository.CommentRepository using PostgreSQL.
type CommentRepository struct {
	pool database.DBTX
}

// NewCommentRepository creates a new PostgreSQL-backed comment repository.
func NewCommentRepository(pool database.DBTX) *CommentRepository {
	return &CommentRepository{pool: pool}
}

// Create inserts a new listing comment.
func (r *CommentRepository) Create(ctx context.Context, c *domain.ListingComment) error {
	query := `
		INSERT INTO listing_comments (id, listing_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.ListingID,
		c.AuthorID,
		c.Content,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing comment: %w", err)
	}

	return nil
}

// ListByListing returns a listing's comments, oldest first, with author
// summaries attached.
func (r *CommentRepository) ListByListing(ctx context.Context, listingID string, page, perPage int) ([]domain.ListingComment, int, error) {
	query := `
		SELECT lc.id, lc.listing_id, lc.author_id, lc.content, lc.created_at, lc.updated_at,
			   u.first_name, u.last_name,
			   COALESCE(p.avatar_url, ''),
			   count(*) OVER() AS total_count
		FROM listing_comments lc
		JOIN users u ON u.id = lc.author_id
		LEFT JOIN profiles p ON p.user_id = lc.author_id
		WHERE lc.listing_id = $1
		ORDER BY lc.created_at ASC
		LIMIT $2 OFFSET $3`

	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	rows, err := r.pool.Query(ctx, query, listingID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list listing comments: %w", err)
	}
	defer rows.Close()

	var totalCount int
	comments := make([]domain.ListingComment, 0)

	for rows.Next() {
		var (
			c      domain.ListingComment
			author domain.UserSummary
		)

		if err := rows.Scan(
			&c.ID,
			&c.ListingID,
			&c.AuthorID,
			&c.Content,
			&c.CreatedAt,
			&c.UpdatedAt,
			&author.FirstName,
			&author.LastName,
			&author.AvatarURL,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan listing comment row: %w", err)
		}

		author.ID = c.AuthorID
		c.Author = &author

		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listing comment rows: %w", err)
	}

	return comments, totalCount, nil
}
