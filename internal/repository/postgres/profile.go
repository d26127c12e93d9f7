package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/pkg/database"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	pool database.DBTX
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
func NewProfileRepository(pool database.DBTX) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetByUserID retrieves the profile belonging to the given user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT user_id, bio, avatar_url, college, graduation_year, show_phone, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`

	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Bio,
		&p.AvatarURL,
		&p.College,
		&p.GraduationYear,
		&p.ShowPhone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	return &p, nil
}

// Update modifies an existing profile.
func (r *ProfileRepository) Update(ctx context.Context, p *domain.Profile) error {
	query := `
		UPDATE profiles
		SET bio = $2, avatar_url = $3, college = $4, graduation_year = $5, show_phone = $6, updated_at = $7
		WHERE user_id = $1`

	ct, err := r.pool.Exec(ctx, query,
		p.UserID,
		p.Bio,
		p.AvatarURL,
		p.College,
		p.GraduationYear,
		p.ShowPhone,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("profile", p.UserID)
	}

	return nil
}
