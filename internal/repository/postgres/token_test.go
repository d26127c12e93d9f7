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
	"github.com/chautari/chautari/pkg/database"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupTokenRepo(t *testing.T) (*TokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewTokenRepository(mock)
	return repo, mock
}

func sampleToken() *domain.VerificationToken {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.VerificationToken{
		ID:        "tok-001",
		UserID:    "user-001",
		Token:     "482916",
		Type:      domain.TokenTypeEmailVerification,
		ExpiresAt: now.Add(24 * time.Hour),
		IsUsed:    false,
		CreatedAt: now,
	}
}

func tokenColumnNames() []string {
	return []string{"id", "user_id", "token", "token_type", "expires_at", "is_used", "used_at", "created_at"}
}

func tokenRow(tok *domain.VerificationToken) *pgxmock.Rows {
	return pgxmock.NewRows(tokenColumnNames()).
		AddRow(tok.ID, tok.UserID, tok.Token, tok.Type, tok.ExpiresAt, tok.IsUsed, tok.UsedAt, tok.CreatedAt)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestTokenRepository_Create_InvalidatesOutstanding(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	tok := sampleToken()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_tokens").
		WithArgs(tok.UserID, tok.Type, tok.CreatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("INSERT INTO verification_tokens").
		WithArgs(tok.ID, tok.UserID, tok.Token, tok.Type, tok.ExpiresAt, tok.IsUsed, tok.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), tok)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Create_UniqueViolation(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	tok := sampleToken()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_tokens").
		WithArgs(tok.UserID, tok.Type, tok.CreatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO verification_tokens").
		WithArgs(tok.ID, tok.UserID, tok.Token, tok.Type, tok.ExpiresAt, tok.IsUsed, tok.CreatedAt).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), tok)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByUserAndToken / GetByToken
// ---------------------------------------------------------------------------

func TestTokenRepository_GetByUserAndToken_Success(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	tok := sampleToken()

	mock.ExpectQuery("SELECT .+ FROM verification_tokens WHERE user_id").
		WithArgs(tok.UserID, tok.Token, tok.Type).
		WillReturnRows(tokenRow(tok))

	result, err := repo.GetByUserAndToken(context.Background(), tok.UserID, tok.Token, tok.Type)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, tok.ID, result.ID)
	assert.Equal(t, tok.Token, result.Token)
	assert.Equal(t, tok.Type, result.Type)
	assert.False(t, result.IsUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByUserAndToken_NotFound(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM verification_tokens WHERE user_id").
		WithArgs("user-001", "000000", domain.TokenTypeEmailVerification).
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByUserAndToken(context.Background(), "user-001", "000000", domain.TokenTypeEmailVerification)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByToken_Success(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	tok := sampleToken()
	tok.Token = "a1b2c3d4e5f6"
	tok.Type = domain.TokenTypePasswordReset

	mock.ExpectQuery("SELECT .+ FROM verification_tokens WHERE token").
		WithArgs(tok.Token, tok.Type).
		WillReturnRows(tokenRow(tok))

	result, err := repo.GetByToken(context.Background(), tok.Token, tok.Type)
	require.NoError(t, err)
	assert.Equal(t, tok.UserID, result.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The unique index covers unused rows only, so a spent token may share its
// value with a live one. The lookup must then pick the live row.
func TestTokenRepository_GetByToken_PrefersUnusedRow(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	tok := sampleToken()
	tok.Token = "a1b2c3d4e5f6"
	tok.Type = domain.TokenTypePasswordReset

	mock.ExpectQuery(`SELECT .+ FROM verification_tokens\s+WHERE token .+ ORDER BY is_used ASC, created_at DESC\s+LIMIT 1`).
		WithArgs(tok.Token, tok.Type).
		WillReturnRows(tokenRow(tok))

	result, err := repo.GetByToken(context.Background(), tok.Token, tok.Type)
	require.NoError(t, err)
	assert.False(t, result.IsUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// ConsumeForEmailVerification
// ---------------------------------------------------------------------------

func TestTokenRepository_ConsumeForEmailVerification_Success(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_tokens SET is_used").
		WithArgs("tok-001", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET email_verified").
		WithArgs("user-001", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.ConsumeForEmailVerification(context.Background(), "tok-001", "user-001")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_ConsumeForEmailVerification_AlreadyUsed(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_tokens SET is_used").
		WithArgs("tok-001", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.ConsumeForEmailVerification(context.Background(), "tok-001", "user-001")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// ConsumeForPasswordReset
// ---------------------------------------------------------------------------

func TestTokenRepository_ConsumeForPasswordReset_Success(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_tokens SET is_used").
		WithArgs("tok-002", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("user-001", "new-hash", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs("user-001", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectCommit()

	err := repo.ConsumeForPasswordReset(context.Background(), "tok-002", "user-001", "new-hash")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_ConsumeForPasswordReset_UserMissing(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_tokens SET is_used").
		WithArgs("tok-002", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("user-gone", "new-hash", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.ConsumeForPasswordReset(context.Background(), "tok-002", "user-gone", "new-hash")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// DeleteExpired
// ---------------------------------------------------------------------------

func TestTokenRepository_DeleteExpired(t *testing.T) {
	repo, mock := setupTokenRepo(t)
	defer mock.Close()

	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Tokens expiring exactly at the cutoff are swept too.
	mock.ExpectExec(`DELETE FROM verification_tokens WHERE expires_at <= \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := repo.DeleteExpired(context.Background(), cutoff)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
