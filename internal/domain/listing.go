package domain

import "time"

// Listing condition values.
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like_new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionPoor    = "poor"
)

// IsValidCondition reports whether c is a known listing condition.
func IsValidCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// MaxListingImages is the maximum number of images per listing.
const MaxListingImages = 5

// Listing is an item offered for sale by a student. Listings are visible to
// other users only while active; marking a listing sold is irreversible.
type Listing struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	CategoryID  string    `json:"category_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Condition   string    `json:"condition"`
	IsActive    bool      `json:"is_active"`
	IsSold      bool      `json:"is_sold"`
	ViewCount   int       `json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Populated by detail and list queries.
	Images   []ListingImage `json:"images,omitempty"`
	Category *Category      `json:"category,omitempty"`
	Seller   *UserSummary   `json:"seller,omitempty"`
	Saved    *bool          `json:"saved,omitempty"`
}

// Visible reports whether the listing is shown to non-owners.
func (l *Listing) Visible() bool {
	return l.IsActive
}

// ListingImage is an image URL attached to a listing. Exactly one image per
// listing is primary.
type ListingImage struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	URL       string    `json:"url"`
	IsPrimary bool      `json:"is_primary"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingStats aggregates marketplace-wide listing counts.
type ListingStats struct {
	TotalActive int                 `json:"total_active"`
	TotalSold   int                 `json:"total_sold"`
	ByCategory  []CategoryStatsItem `json:"by_category"`
}

// CategoryStatsItem is the per-category slice of ListingStats.
type CategoryStatsItem struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Slug         string `json:"slug"`
	ActiveCount  int    `json:"active_count"`
}
