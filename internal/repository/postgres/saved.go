package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/pkg/database"
)

// SavedListingRepository implements repository.SavedListingRepository using PostgreSQL.
type SavedListingRepository struct {
	pool database.DBTX
}

// NewSavedListingRepository creates a new PostgreSQL-backed saved-listing repository.
func NewSavedListingRepository(pool database.DBTX) *SavedListingRepository {
	return &SavedListingRepository{pool: pool}
}

// Toggle saves the listing for the user, or removes the existing save. The
// insert is attempted first with ON CONFLICT DO NOTHING; zero rows affected
// means the row already existed, so it is deleted instead. Reports the
// resulting state: true when the listing is now saved.
func (r *SavedListingRepository) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	insertQuery := `
		INSERT INTO saved_listings (user_id, listing_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, listing_id) DO NOTHING`

	ct, err := r.pool.Exec(ctx, insertQuery, userID, listingID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("save listing: %w", err)
	}

	if ct.RowsAffected() > 0 {
		return true, nil
	}

	deleteQuery := `DELETE FROM saved_listings WHERE user_id = $1 AND listing_id = $2`
	if _, err := r.pool.Exec(ctx, deleteQuery, userID, listingID); err != nil {
		return false, fmt.Errorf("unsave listing: %w", err)
	}

	return false, nil
}

// Exists reports whether the user has saved the listing.
func (r *SavedListingRepository) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM saved_listings WHERE user_id = $1 AND listing_id = $2)`,
		userID, listingID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check saved listing: %w", err)
	}
	return exists, nil
}

// ListByUser returns the user's saved listings newest first, with each
// listing's current state attached so stale saves remain visible.
func (r *SavedListingRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.SavedListing, int, error) {
	query := `
		SELECT s.user_id, s.listing_id, s.created_at,
			   l.id, l.seller_id, l.category_id, l.title, l.slug, l.description,
			   l.price, l.condition, l.is_active, l.is_sold, l.view_count,
			   l.created_at, l.updated_at,
			   c.name, c.slug,
			   COALESCE((SELECT li.url FROM listing_images li WHERE li.listing_id = l.id AND li.is_primary = TRUE LIMIT 1), ''),
			   count(*) OVER() AS total_count
		FROM saved_listings s
		JOIN listings l ON l.id = s.listing_id
		JOIN categories c ON c.id = l.category_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC
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
		return nil, 0, fmt.Errorf("list saved listings: %w", err)
	}
	defer rows.Close()

	var totalCount int
	saved := make([]domain.SavedListing, 0)

	for rows.Next() {
		var (
			s          domain.SavedListing
			l          domain.Listing
			category   domain.Category
			primaryURL string
		)

		if err := rows.Scan(
			&s.UserID,
			&s.ListingID,
			&s.CreatedAt,
			&l.ID,
			&l.SellerID,
			&l.CategoryID,
			&l.Title,
			&l.Slug,
			&l.Description,
			&l.Price,
			&l.Condition,
			&l.IsActive,
			&l.IsSold,
			&l.ViewCount,
			&l.CreatedAt,
			&l.UpdatedAt,
			&category.Name,
			&category.Slug,
			&primaryURL,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan saved listing row: %w", err)
		}

		category.ID = l.CategoryID
		l.Category = &category
		if primaryURL != "" {
			l.Images = []domain.ListingImage{{ListingID: l.ID, URL: primaryURL, IsPrimary: true}}
		}
		s.Listing = &l

		saved = append(saved, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate saved listing rows: %w", err)
	}

	return saved, totalCount, nil
}
