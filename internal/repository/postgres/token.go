package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/pkg/database"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// TokenRepository implements repository.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool database.DBTX
}

// NewTokenRepository creates a new PostgreSQL-backed verification token repository.
func NewTokenRepository(pool database.DBTX) *TokenRepository {
	return &TokenRepository{pool: pool}
}

const tokenColumns = `id, user_id, token, token_type, expires_at, is_used, used_at, created_at`

// Create stores a new token after invalidating the user's outstanding unused
// tokens of the same type, so only the freshest token can be redeemed.
func (r *TokenRepository) Create(ctx context.Context, t *domain.VerificationToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	invalidateQuery := `
		UPDATE verification_tokens
		SET is_used = TRUE, used_at = $3
		WHERE user_id = $1 AND token_type = $2 AND is_used = FALSE`

	_, err = tx.Exec(ctx, invalidateQuery, t.UserID, t.Type, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("invalidate outstanding tokens: %w", err)
	}

	insertQuery := `
		INSERT INTO verification_tokens (id, user_id, token, token_type, expires_at, is_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, insertQuery,
		t.ID,
		t.UserID,
		t.Token,
		t.Type,
		t.ExpiresAt,
		t.IsUsed,
		t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("verification token", "token", t.Token)
		}
		return fmt.Errorf("insert verification token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByUserAndToken retrieves a token of the given type scoped to one user.
// An unused row wins over spent rows sharing the same value.
func (r *TokenRepository) GetByUserAndToken(ctx context.Context, userID, token, tokenType string) (*domain.VerificationToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM verification_tokens
		WHERE user_id = $1 AND token = $2 AND token_type = $3
		ORDER BY is_used ASC, created_at DESC
		LIMIT 1`
	return r.scanToken(r.pool.QueryRow(ctx, query, userID, token, tokenType))
}

// GetByToken retrieves a token of the given type by its value. Uniqueness is
// only enforced among unused rows, so an unused row wins over spent rows
// sharing the same value.
func (r *TokenRepository) GetByToken(ctx context.Context, token, tokenType string) (*domain.VerificationToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM verification_tokens
		WHERE token = $1 AND token_type = $2
		ORDER BY is_used ASC, created_at DESC
		LIMIT 1`
	return r.scanToken(r.pool.QueryRow(ctx, query, token, tokenType))
}

func (r *TokenRepository) scanToken(row pgx.Row) (*domain.VerificationToken, error) {
	var t domain.VerificationToken
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Token,
		&t.Type,
		&t.ExpiresAt,
		&t.IsUsed,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification token: %w", err)
	}
	return &t, nil
}

// ConsumeForEmailVerification marks the token used and flips the user's
// email_verified flag in one transaction.
func (r *TokenRepository) ConsumeForEmailVerification(ctx context.Context, tokenID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	if err := markTokenUsed(ctx, tx, tokenID, now); err != nil {
		return err
	}

	userQuery := `UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1`
	ct, err := tx.Exec(ctx, userQuery, userID, now)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ConsumeForPasswordReset marks the token used, replaces the user's password
// hash and revokes all their refresh tokens in one transaction.
func (r *TokenRepository) ConsumeForPasswordReset(ctx context.Context, tokenID, userID, passwordHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	if err := markTokenUsed(ctx, tx, tokenID, now); err != nil {
		return err
	}

	userQuery := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	ct, err := tx.Exec(ctx, userQuery, userID, passwordHash, now)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	revokeQuery := `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := tx.Exec(ctx, revokeQuery, userID, now); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func markTokenUsed(ctx context.Context, tx pgx.Tx, tokenID string, now time.Time) error {
	query := `UPDATE verification_tokens SET is_used = TRUE, used_at = $2 WHERE id = $1 AND is_used = FALSE`

	ct, err := tx.Exec(ctx, query, tokenID, now)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("verification token has already been used")
	}

	return nil
}

// DeleteExpired removes all tokens expired at or before the given instant,
// used or not.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}
