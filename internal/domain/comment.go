package domain

import "time"

// MaxCommentLength caps a listing comment's content.
const MaxCommentLength = 1000

// ListingComment is a public question or remark left on a listing by another
// student, typically to haggle or ask about pickup.
type ListingComment struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated by list queries.
	Author *UserSummary `json:"author,omitempty"`

	// Set per viewer: only the author may edit or delete their comment.
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}
