package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/repository"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// PublicProfile is the public view of a user: their profile, display name,
// review summary and active listing count. The phone number appears only
// when the user opted in or is viewing their own profile.
type PublicProfile struct {
	UserID         string                `json:"user_id"`
	FirstName      string                `json:"first_name"`
	LastName       string                `json:"last_name"`
	Phone          string                `json:"phone,omitempty"`
	Bio            string                `json:"bio,omitempty"`
	AvatarURL      string                `json:"avatar_url,omitempty"`
	College        string                `json:"college,omitempty"`
	GraduationYear *int                  `json:"graduation_year,omitempty"`
	MemberSince    time.Time             `json:"member_since"`
	ActiveListings int                   `json:"active_listings"`
	Reviews        *domain.ReviewSummary `json:"reviews"`
}

// ProfileService implements the business logic for user profiles.
type ProfileService struct {
	profiles repository.ProfileRepository
	users    repository.UserRepository
	listings repository.ListingRepository
	reviews  repository.ReviewRepository
	logger   *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(
	profiles repository.ProfileRepository,
	users repository.UserRepository,
	listings repository.ListingRepository,
	reviews repository.ReviewRepository,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		users:    users,
		listings: listings,
		reviews:  reviews,
		logger:   logger,
	}
}

// GetPublicProfile assembles the public view of a user. viewerID is the
// authenticated caller, or empty for anonymous requests.
func (s *ProfileService) GetPublicProfile(ctx context.Context, userID, viewerID string) (*PublicProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.NotFound("user", userID)
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	activeCount, err := s.listings.CountActiveBySeller(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count active listings: %w", err)
	}

	summary, err := s.reviews.Summary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("review summary: %w", err)
	}

	result := &PublicProfile{
		UserID:         user.ID,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Bio:            profile.Bio,
		AvatarURL:      profile.AvatarURL,
		College:        profile.College,
		GraduationYear: profile.GraduationYear,
		MemberSince:    user.CreatedAt,
		ActiveListings: activeCount,
		Reviews:        summary,
	}
	if profile.ShowPhone || viewerID == userID {
		result.Phone = user.Phone
	}

	return result, nil
}

// GetOwnProfile returns the raw profile record for the authenticated user.
func (s *ProfileService) GetOwnProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfileInput holds the mutable profile fields. Nil fields are left
// unchanged.
type UpdateProfileInput struct {
	Bio            *string
	AvatarURL      *string
	College        *string
	GraduationYear *int
	ShowPhone      *bool
}

// UpdateProfile applies a partial update to the user's own profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.Profile, error) {
	profile, err := s.GetOwnProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Bio != nil {
		profile.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.AvatarURL != nil {
		profile.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}
	if input.College != nil {
		profile.College = strings.TrimSpace(*input.College)
	}
	if input.GraduationYear != nil {
		year := *input.GraduationYear
		if year < 1950 || year > time.Now().Year()+10 {
			return nil, apperrors.InvalidInput("graduation year out of range").
				WithField("graduation_year", "must be a plausible year")
		}
		profile.GraduationYear = &year
	}
	if input.ShowPhone != nil {
		profile.ShowPhone = *input.ShowPhone
	}

	profile.UpdatedAt = time.Now().UTC()
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return profile, nil
}
