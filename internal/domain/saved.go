package domain

import "time"

// SavedListing is a bookmark a user places on a listing. At most one row
// exists per (user, listing) pair.
type SavedListing struct {
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`

	// Populated by list queries so saved items whose listing has since
	// gone inactive or sold can still be shown with their state.
	Listing *Listing `json:"listing,omitempty"`
}
