package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/repository"
	"github.com/chautari/chautari/pkg/database"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// ListingRepository implements repository.ListingRepository using PostgreSQL.
type ListingRepository struct {
	pool database.DBTX
}

// NewListingRepository creates a new PostgreSQL-backed listing repository.
func NewListingRepository(pool database.DBTX) *ListingRepository {
	return &ListingRepository{pool: pool}
}

// Create inserts a listing and its images atomically within a transaction.
func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	listingQuery := `
		INSERT INTO listings (id, seller_id, category_id, title, slug, description, price, condition, is_active, is_sold, view_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, listingQuery,
		l.ID,
		l.SellerID,
		l.CategoryID,
		l.Title,
		l.Slug,
		l.Description,
		l.Price,
		l.Condition,
		l.IsActive,
		l.IsSold,
		l.ViewCount,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("listing", "slug", l.Slug)
		}
		return fmt.Errorf("insert listing: %w", err)
	}

	imageQuery := `
		INSERT INTO listing_images (id, listing_id, url, is_primary, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, img := range l.Images {
		_, err = tx.Exec(ctx, imageQuery,
			img.ID,
			img.ListingID,
			img.URL,
			img.IsPrimary,
			img.Position,
			img.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert listing image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a listing with its images, category and seller summary.
// Images are aggregated in the same query to avoid a second round trip.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	query := `
		SELECT
			l.id, l.seller_id, l.category_id, l.title, l.slug, l.description,
			l.price, l.condition, l.is_active, l.is_sold, l.view_count,
			l.created_at, l.updated_at,
			c.name, c.slug, c.description, c.created_at,
			u.first_name, u.last_name,
			COALESCE(p.avatar_url, ''),
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', li.id,
						'listing_id', li.listing_id,
						'url', li.url,
						'is_primary', li.is_primary,
						'position', li.position
					) ORDER BY li.position
				) FILTER (WHERE li.id IS NOT NULL),
				'[]'::jsonb
			) AS images
		FROM listings l
		JOIN categories c ON c.id = l.category_id
		JOIN users u ON u.id = l.seller_id
		LEFT JOIN profiles p ON p.user_id = l.seller_id
		LEFT JOIN listing_images li ON li.listing_id = l.id
		WHERE l.id = $1
		GROUP BY l.id, l.seller_id, l.category_id, l.title, l.slug, l.description,
			l.price, l.condition, l.is_active, l.is_sold, l.view_count,
			l.created_at, l.updated_at,
			c.name, c.slug, c.description, c.created_at,
			u.first_name, u.last_name, p.avatar_url`

	var (
		l          domain.Listing
		category   domain.Category
		seller     domain.UserSummary
		imagesJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
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
		&category.Description,
		&category.CreatedAt,
		&seller.FirstName,
		&seller.LastName,
		&seller.AvatarURL,
		&imagesJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}

	category.ID = l.CategoryID
	seller.ID = l.SellerID
	l.Category = &category
	l.Seller = &seller

	if len(imagesJSON) > 0 && string(imagesJSON) != "null" && string(imagesJSON) != "[]" {
		if err := json.Unmarshal(imagesJSON, &l.Images); err != nil {
			return nil, fmt.Errorf("unmarshal listing images: %w", err)
		}
	} else {
		l.Images = []domain.ListingImage{}
	}

	return &l, nil
}

// SlugExists reports whether a listing with the given slug exists.
func (r *ListingRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM listings WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check listing slug: %w", err)
	}
	return exists, nil
}

// List returns listings matching the filter with the total count.
func (r *ListingRepository) List(ctx context.Context, filter repository.ListingFilter) ([]domain.Listing, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   int = 1
	)

	if filter.ActiveOnly {
		conditions = append(conditions, "l.is_active = TRUE")
	}

	if filter.CategorySlug != nil {
		conditions = append(conditions, fmt.Sprintf("c.slug = $%d", argIndex))
		args = append(args, *filter.CategorySlug)
		argIndex++
	}

	if filter.Condition != nil {
		conditions = append(conditions, fmt.Sprintf("l.condition = $%d", argIndex))
		args = append(args, *filter.Condition)
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("l.price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("l.price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(l.title ILIKE $%d OR l.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderClause := "ORDER BY l.created_at DESC"
	switch filter.Sort {
	case repository.SortPriceAsc:
		orderClause = "ORDER BY l.price ASC, l.created_at DESC"
	case repository.SortPriceDesc:
		orderClause = "ORDER BY l.price DESC, l.created_at DESC"
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT l.id, l.seller_id, l.category_id, l.title, l.slug, l.description,
			   l.price, l.condition, l.is_active, l.is_sold, l.view_count,
			   l.created_at, l.updated_at,
			   c.name, c.slug,
			   u.first_name, u.last_name,
			   COALESCE((SELECT li.url FROM listing_images li WHERE li.listing_id = l.id AND li.is_primary = TRUE LIMIT 1), ''),
			   count(*) OVER() AS total_count
		FROM listings l
		JOIN categories c ON c.id = l.category_id
		JOIN users u ON u.id = l.seller_id
		%s
		%s
		LIMIT $%d OFFSET $%d`,
		whereClause, orderClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	return r.queryListingRows(ctx, query, args...)
}

// ListBySeller returns a seller's listings regardless of status.
func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID string, page, perPage int) ([]domain.Listing, int, error) {
	query := `
		SELECT l.id, l.seller_id, l.category_id, l.title, l.slug, l.description,
			   l.price, l.condition, l.is_active, l.is_sold, l.view_count,
			   l.created_at, l.updated_at,
			   c.name, c.slug,
			   u.first_name, u.last_name,
			   COALESCE((SELECT li.url FROM listing_images li WHERE li.listing_id = l.id AND li.is_primary = TRUE LIMIT 1), ''),
			   count(*) OVER() AS total_count
		FROM listings l
		JOIN categories c ON c.id = l.category_id
		JOIN users u ON u.id = l.seller_id
		WHERE l.seller_id = $1
		ORDER BY l.created_at DESC
		LIMIT $2 OFFSET $3`

	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	return r.queryListingRows(ctx, query, sellerID, limit, offset)
}

// queryListingRows runs a listing list query whose column layout matches the
// shared row shape: listing columns, category name and slug, seller names,
// primary image URL and the window total count.
func (r *ListingRepository) queryListingRows(ctx context.Context, query string, args ...any) ([]domain.Listing, int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var totalCount int
	listings := make([]domain.Listing, 0)

	for rows.Next() {
		var (
			l          domain.Listing
			category   domain.Category
			seller     domain.UserSummary
			primaryURL string
		)

		if err := rows.Scan(
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
			&seller.FirstName,
			&seller.LastName,
			&primaryURL,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan listing row: %w", err)
		}

		category.ID = l.CategoryID
		seller.ID = l.SellerID
		l.Category = &category
		l.Seller = &seller

		if primaryURL != "" {
			l.Images = []domain.ListingImage{{ListingID: l.ID, URL: primaryURL, IsPrimary: true}}
		}

		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listing rows: %w", err)
	}

	return listings, totalCount, nil
}

// Update modifies an existing listing. Any images on the struct are
// appended; existing image rows are never touched.
func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE listings
		SET category_id = $2, title = $3, description = $4, price = $5, condition = $6,
			is_active = $7, is_sold = $8, updated_at = $9
		WHERE id = $1`

	ct, err := tx.Exec(ctx, query,
		l.ID,
		l.CategoryID,
		l.Title,
		l.Description,
		l.Price,
		l.Condition,
		l.IsActive,
		l.IsSold,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", l.ID)
	}

	imageQuery := `
		INSERT INTO listing_images (id, listing_id, url, is_primary, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, img := range l.Images {
		_, err = tx.Exec(ctx, imageQuery,
			img.ID,
			img.ListingID,
			img.URL,
			img.IsPrimary,
			img.Position,
			img.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert listing image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// IncrementViewCount bumps the view counter for a listing.
func (r *ListingRepository) IncrementViewCount(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE listings SET view_count = view_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// Delete removes a listing. Images and saved rows cascade.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", id)
	}

	return nil
}

// CountActiveBySeller returns the number of active listings a seller has.
func (r *ListingRepository) CountActiveBySeller(ctx context.Context, sellerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM listings WHERE seller_id = $1 AND is_active = TRUE AND is_sold = FALSE`,
		sellerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count seller listings: %w", err)
	}
	return count, nil
}

// Stats returns marketplace-wide listing counts.
func (r *ListingRepository) Stats(ctx context.Context) (*domain.ListingStats, error) {
	var stats domain.ListingStats

	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE is_active = TRUE AND is_sold = FALSE),
			count(*) FILTER (WHERE is_sold = TRUE)
		FROM listings`,
	).Scan(&stats.TotalActive, &stats.TotalSold)
	if err != nil {
		return nil, fmt.Errorf("scan listing totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.slug,
			   count(l.id) FILTER (WHERE l.is_active = TRUE AND l.is_sold = FALSE)
		FROM categories c
		LEFT JOIN listings l ON l.category_id = c.id
		GROUP BY c.id, c.name, c.slug
		ORDER BY c.name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list category stats: %w", err)
	}
	defer rows.Close()

	stats.ByCategory = make([]domain.CategoryStatsItem, 0)
	for rows.Next() {
		var item domain.CategoryStatsItem
		if err := rows.Scan(&item.CategoryID, &item.CategoryName, &item.Slug, &item.ActiveCount); err != nil {
			return nil, fmt.Errorf("scan category stats row: %w", err)
		}
		stats.ByCategory = append(stats.ByCategory, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category stats rows: %w", err)
	}

	return &stats, nil
}
