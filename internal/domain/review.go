package domain

import "time"

// Review rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// MaxReviewCommentLength caps the optional comment.
const MaxReviewCommentLength = 1000

// Review is a rating one user leaves for another after a trade. A user may
// review another user at most once and never themselves.
type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	ReviewedID string    `json:"reviewed_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Populated by list queries.
	Reviewer *UserSummary `json:"reviewer,omitempty"`
}

// ReviewSummary aggregates the reviews received by a user. AverageRating is
// rounded to one decimal place and zero when there are no reviews.
type ReviewSummary struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}
