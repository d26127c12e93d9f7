package repository

import (
	"context"
	"time"

	"github.com/chautari/chautari/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// CreateWithProfile inserts a new user and their profile in one
	// transaction. Every user has exactly one profile.
	CreateWithProfile(ctx context.Context, user *domain.User, profile *domain.Profile) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalized email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user from the store by their identifier.
	Delete(ctx context.Context, id string) error
}

// ProfileRepository defines the interface for profile persistence operations.
type ProfileRepository interface {
	// GetByUserID retrieves the profile belonging to the given user.
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)

	// Update modifies an existing profile in the store.
	Update(ctx context.Context, profile *domain.Profile) error
}

// TokenRepository defines the interface for verification token persistence.
type TokenRepository interface {
	// Create stores a new verification token after marking any
	// outstanding unused tokens of the same type for the user as used,
	// so only the most recently issued token is redeemable.
	Create(ctx context.Context, token *domain.VerificationToken) error

	// GetByUserAndToken retrieves a token of the given type scoped to
	// one user. Used for email verification codes.
	GetByUserAndToken(ctx context.Context, userID, token, tokenType string) (*domain.VerificationToken, error)

	// GetByToken retrieves a token of the given type by its globally
	// unique string. Used for password reset tokens, which are not
	// user-scoped.
	GetByToken(ctx context.Context, token, tokenType string) (*domain.VerificationToken, error)

	// ConsumeForEmailVerification marks the token used and flips the
	// user's email_verified flag in one transaction.
	ConsumeForEmailVerification(ctx context.Context, tokenID, userID string) error

	// ConsumeForPasswordReset marks the token used, replaces the user's
	// password hash, and revokes all their refresh tokens in one
	// transaction.
	ConsumeForPasswordReset(ctx context.Context, tokenID, userID, passwordHash string) error

	// DeleteExpired removes all tokens whose expiry predates the given
	// instant, used or not. Returns the number of rows deleted.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RefreshTokenRepository defines the interface for refresh token persistence.
type RefreshTokenRepository interface {
	// Create stores a new refresh token hash.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// GetByHash retrieves a refresh token record by its hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke revokes a specific refresh token by its hash.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeByUserID revokes all refresh tokens for the given user.
	RevokeByUserID(ctx context.Context, userID string) error
}

// CategoryRepository defines the interface for category persistence operations.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)

	// Delete removes a category. It fails with a conflict while any
	// listing still references the category.
	Delete(ctx context.Context, id string) error
}

// Listing sort orders accepted by ListingFilter.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// ListingFilter holds the filter and pagination options for listing queries.
// Only active, unsold-or-sold listings are matched; visibility filtering is
// the caller's responsibility via ActiveOnly.
type ListingFilter struct {
	CategorySlug *string
	Condition    *string
	Search       *string
	MinPrice     *float64
	MaxPrice     *float64
	ActiveOnly   bool
	Sort         string
	Page         int
	PerPage      int
}

// ListingRepository defines the interface for listing persistence operations.
type ListingRepository interface {
	// Create inserts a listing and its images in one transaction.
	Create(ctx context.Context, listing *domain.Listing) error

	// GetByID retrieves a listing with its images and category.
	GetByID(ctx context.Context, id string) (*domain.Listing, error)

	// SlugExists reports whether a listing with the given slug exists.
	SlugExists(ctx context.Context, slug string) (bool, error)

	// List returns listings matching the filter with the total count.
	List(ctx context.Context, filter ListingFilter) ([]domain.Listing, int, error)

	// ListBySeller returns a seller's listings regardless of status.
	ListBySeller(ctx context.Context, sellerID string, page, perPage int) ([]domain.Listing, int, error)

	// Update modifies an existing listing in the store.
	Update(ctx context.Context, listing *domain.Listing) error

	// IncrementViewCount bumps the view counter for a listing.
	IncrementViewCount(ctx context.Context, id string) error

	// Delete removes a listing; images and saved rows cascade.
	Delete(ctx context.Context, id string) error

	// CountActiveBySeller returns the number of active listings a seller has.
	CountActiveBySeller(ctx context.Context, sellerID string) (int, error)

	// Stats returns marketplace-wide listing counts.
	Stats(ctx context.Context) (*domain.ListingStats, error)
}

// SavedListingRepository defines the interface for saved-listing persistence.
type SavedListingRepository interface {
	// Toggle saves the listing for the user, or removes the existing
	// save if one is present. It reports the resulting state: true when
	// the listing is now saved.
	Toggle(ctx context.Context, userID, listingID string) (bool, error)

	// Exists reports whether the user has saved the listing.
	Exists(ctx context.Context, userID, listingID string) (bool, error)

	// ListByUser returns the user's saved listings, newest first, with
	// each listing's current state attached.
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.SavedListing, int, error)
}

// CommentRepository defines the interface for listing-comment persistence.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.ListingComment) error

	// ListByListing returns a listing's comments, oldest first, with
	// author summaries attached.
	ListByListing(ctx context.Context, listingID string, page, perPage int) ([]domain.ListingComment, int, error)
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	Update(ctx context.Context, review *domain.Review) error
	Delete(ctx context.Context, id string) error

	// ListForUser returns reviews received by a user, newest first,
	// with reviewer summaries attached.
	ListForUser(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error)

	// Summary returns the count and average rating of reviews received
	// by a user. The average is rounded to one decimal place.
	Summary(ctx context.Context, userID string) (*domain.ReviewSummary, error)
}
