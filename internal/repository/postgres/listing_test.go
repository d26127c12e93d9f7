package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/repository"
	"github.com/chautari/chautari/pkg/database"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupListingRepo(t *testing.T) (*ListingRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewListingRepository(mock)
	return repo, mock
}

func sampleListing() *domain.Listing {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Listing{
		ID:          "lst-001",
		SellerID:    "user-001",
		CategoryID:  "cat-001",
		Title:       "Calculus Early Transcendentals 8th Ed",
		Slug:        "calculus-early-transcendentals-8th-ed",
		Description: "Barely used, no highlights.",
		Price:       1200,
		Condition:   domain.ConditionLikeNew,
		IsActive:    true,
		IsSold:      false,
		ViewCount:   0,
		CreatedAt:   now,
		UpdatedAt:   now,
		Images: []domain.ListingImage{
			{
				ID:        "img-001",
				ListingID: "lst-001",
				URL:       "https://cdn.chautari.app/listings/lst-001/cover.jpg",
				IsPrimary: true,
				Position:  0,
				CreatedAt: now,
			},
		},
	}
}

func listingListColumns() []string {
	return []string{
		"id", "seller_id", "category_id", "title", "slug", "description",
		"price", "condition", "is_active", "is_sold", "view_count",
		"created_at", "updated_at",
		"category_name", "category_slug",
		"first_name", "last_name",
		"primary_url", "total_count",
	}
}

func listingListRow(l *domain.Listing, totalCount int) *pgxmock.Rows {
	return pgxmock.NewRows(listingListColumns()).
		AddRow(
			l.ID, l.SellerID, l.CategoryID, l.Title, l.Slug, l.Description,
			l.Price, l.Condition, l.IsActive, l.IsSold, l.ViewCount,
			l.CreatedAt, l.UpdatedAt,
			"Textbooks", "textbooks",
			"Anisha", "Shrestha",
			l.Images[0].URL, totalCount,
		)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestListingRepository_Create_Success(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()
	img := l.Images[0]

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listings").
		WithArgs(
			l.ID, l.SellerID, l.CategoryID, l.Title, l.Slug, l.Description,
			l.Price, l.Condition, l.IsActive, l.IsSold, l.ViewCount,
			l.CreatedAt, l.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO listing_images").
		WithArgs(img.ID, img.ListingID, img.URL, img.IsPrimary, img.Position, img.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), l)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_Create_DuplicateSlug(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listings").
		WithArgs(
			l.ID, l.SellerID, l.CategoryID, l.Title, l.Slug, l.Description,
			l.Price, l.Condition, l.IsActive, l.IsSold, l.ViewCount,
			l.CreatedAt, l.UpdatedAt,
		).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), l)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT").
		WithArgs("nonexistent-id").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), "nonexistent-id")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestListingRepository_List_ActiveOnly(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()

	mock.ExpectQuery("SELECT .+ FROM listings").
		WithArgs(20, 0).
		WillReturnRows(listingListRow(l, 1))

	results, total, err := repo.List(context.Background(), repository.ListingFilter{
		ActiveOnly: true,
		Page:       1,
		PerPage:    20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)

	assert.Equal(t, l.ID, results[0].ID)
	require.NotNil(t, results[0].Category)
	assert.Equal(t, "textbooks", results[0].Category.Slug)
	require.NotNil(t, results[0].Seller)
	assert.Equal(t, "Anisha", results[0].Seller.FirstName)
	require.Len(t, results[0].Images, 1)
	assert.True(t, results[0].Images[0].IsPrimary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_List_WithFilters(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()
	categorySlug := "textbooks"
	condition := domain.ConditionLikeNew
	minPrice := 500.0
	maxPrice := 2000.0
	search := "calculus"

	mock.ExpectQuery("SELECT .+ FROM listings").
		WithArgs(categorySlug, condition, minPrice, maxPrice, "%calculus%", 10, 0).
		WillReturnRows(listingListRow(l, 1))

	results, total, err := repo.List(context.Background(), repository.ListingFilter{
		CategorySlug: &categorySlug,
		Condition:    &condition,
		MinPrice:     &minPrice,
		MaxPrice:     &maxPrice,
		Search:       &search,
		ActiveOnly:   true,
		Sort:         repository.SortPriceAsc,
		Page:         1,
		PerPage:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, results, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_List_Empty(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM listings").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(listingListColumns()))

	results, total, err := repo.List(context.Background(), repository.ListingFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// ListBySeller
// ---------------------------------------------------------------------------

func TestListingRepository_ListBySeller(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()
	l.IsActive = false

	mock.ExpectQuery("SELECT .+ FROM listings").
		WithArgs(l.SellerID, 20, 0).
		WillReturnRows(listingListRow(l, 1))

	results, total, err := repo.ListBySeller(context.Background(), l.SellerID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.False(t, results[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestListingRepository_Update_AppendsImages(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()
	img := l.Images[0]

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE listings").
		WithArgs(
			l.ID, l.CategoryID, l.Title, l.Description, l.Price, l.Condition,
			l.IsActive, l.IsSold, l.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO listing_images").
		WithArgs(img.ID, img.ListingID, img.URL, img.IsPrimary, img.Position, img.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), l)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_Update_KeepsImagesWhenNil(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()
	l.Images = nil

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE listings").
		WithArgs(
			l.ID, l.CategoryID, l.Title, l.Description, l.Price, l.Condition,
			l.IsActive, l.IsSold, l.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), l)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_Update_NotFound(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	l := sampleListing()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE listings").
		WithArgs(
			l.ID, l.CategoryID, l.Title, l.Description, l.Price, l.Condition,
			l.IsActive, l.IsSold, l.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), l)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// SlugExists / IncrementViewCount / CountActiveBySeller
// ---------------------------------------------------------------------------

func TestListingRepository_SlugExists(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("calculus-early-transcendentals-8th-ed").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.SlugExists(context.Background(), "calculus-early-transcendentals-8th-ed")
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_IncrementViewCount(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE listings SET view_count").
		WithArgs("lst-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.IncrementViewCount(context.Background(), "lst-001")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_CountActiveBySeller(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT count").
		WithArgs("user-001").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountActiveBySeller(context.Background(), "user-001")
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func TestListingRepository_Stats(t *testing.T) {
	repo, mock := setupListingRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM listings").
		WillReturnRows(pgxmock.NewRows([]string{"active", "sold"}).AddRow(12, 5))
	mock.ExpectQuery("SELECT .+ FROM categories").
		WillReturnRows(
			pgxmock.NewRows([]string{"id", "name", "slug", "count"}).
				AddRow("cat-001", "Textbooks", "textbooks", 8).
				AddRow("cat-002", "Electronics", "electronics", 4),
		)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalActive)
	assert.Equal(t, 5, stats.TotalSold)
	require.Len(t, stats.ByCategory, 2)
	assert.Equal(t, "textbooks", stats.ByCategory[0].Slug)
	assert.Equal(t, 8, stats.ByCategory[0].ActiveCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
