package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chautari/chautari/internal/domain"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

func validEmailToken() *domain.VerificationToken {
	now := time.Now().UTC()
	return &domain.VerificationToken{
		ID:        "tok-001",
		UserID:    "user-001",
		Token:     "482916",
		Type:      domain.TokenTypeEmailVerification,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
}

func unverifiedUser() *domain.User {
	return &domain.User{ID: "user-001", Email: "anisha@swsc.edu.np", IsActive: true}
}

// ---------------------------------------------------------------------------
// VerifyEmail
// ---------------------------------------------------------------------------

func TestVerifyEmail_Success(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	tok := validEmailToken()
	users.On("GetByID", ctx, "user-001").Return(unverifiedUser(), nil)
	tokens.On("GetByUserAndToken", ctx, "user-001", "482916", domain.TokenTypeEmailVerification).Return(tok, nil)
	tokens.On("ConsumeForEmailVerification", ctx, "tok-001", "user-001").Return(nil)

	err := svc.VerifyEmail(ctx, "user-001", "482916")
	assert.NoError(t, err)
	tokens.AssertExpectations(t)
}

func TestVerifyEmail_UnknownUser(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	users.On("GetByID", ctx, "user-gone").Return(nil, apperrors.ErrNotFound)

	err := svc.VerifyEmail(ctx, "user-gone", "482916")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	tokens.AssertNotCalled(t, "GetByUserAndToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmail_AlreadyVerified(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	u := unverifiedUser()
	u.EmailVerified = true
	users.On("GetByID", ctx, "user-001").Return(u, nil)

	err := svc.VerifyEmail(ctx, "user-001", "482916")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "already verified")
}

// The code lookup is scoped to the caller, so a code issued for another
// account reports as invalid.
func TestVerifyEmail_CodeScopedToCaller(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	users.On("GetByID", ctx, "user-001").Return(unverifiedUser(), nil)
	tokens.On("GetByUserAndToken", ctx, "user-001", "000000", domain.TokenTypeEmailVerification).Return(nil, apperrors.ErrNotFound)

	err := svc.VerifyEmail(ctx, "user-001", "000000")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	tokens.AssertNotCalled(t, "ConsumeForEmailVerification", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	tok := validEmailToken()
	tok.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	users.On("GetByID", ctx, "user-001").Return(unverifiedUser(), nil)
	tokens.On("GetByUserAndToken", ctx, "user-001", "482916", domain.TokenTypeEmailVerification).Return(tok, nil)

	err := svc.VerifyEmail(ctx, "user-001", "482916")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyEmail_UsedCode(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	tok := validEmailToken()
	tok.IsUsed = true
	users.On("GetByID", ctx, "user-001").Return(unverifiedUser(), nil)
	tokens.On("GetByUserAndToken", ctx, "user-001", "482916", domain.TokenTypeEmailVerification).Return(tok, nil)

	err := svc.VerifyEmail(ctx, "user-001", "482916")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// A code that is both expired and used reports as expired.
func TestVerifyEmail_ExpiredAndUsedReportsExpired(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	tok := validEmailToken()
	tok.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	tok.IsUsed = true
	users.On("GetByID", ctx, "user-001").Return(unverifiedUser(), nil)
	tokens.On("GetByUserAndToken", ctx, "user-001", "482916", domain.TokenTypeEmailVerification).Return(tok, nil)

	err := svc.VerifyEmail(ctx, "user-001", "482916")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "expired")
}

// ---------------------------------------------------------------------------
// ResendVerification
// ---------------------------------------------------------------------------

func TestResendVerification_AlreadyVerified(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	u := unverifiedUser()
	u.EmailVerified = true
	users.On("GetByID", ctx, "user-001").Return(u, nil)

	err := svc.ResendVerification(ctx, "user-001")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestResendVerification_UnknownUser(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	users.On("GetByID", ctx, "user-gone").Return(nil, apperrors.ErrNotFound)

	err := svc.ResendVerification(ctx, "user-gone")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestResendVerification_IssuesFreshCode(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	users.On("GetByID", ctx, "user-001").Return(unverifiedUser(), nil)
	tokens.On("Create", ctx, mock.AnythingOfType("*domain.VerificationToken")).Return(nil)

	err := svc.ResendVerification(ctx, "user-001")
	require.NoError(t, err)

	issued := tokens.Calls[0].Arguments.Get(1).(*domain.VerificationToken)
	assert.Regexp(t, `^\d{6}$`, issued.Token)
	tokens.AssertExpectations(t)
}

// ---------------------------------------------------------------------------
// RequestPasswordReset
// ---------------------------------------------------------------------------

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	users.On("GetByEmail", ctx, "nobody@swsc.edu.np").Return(nil, apperrors.ErrNotFound)

	err := svc.RequestPasswordReset(ctx, "nobody@swsc.edu.np")
	assert.NoError(t, err)
	tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRequestPasswordReset_IssuesAlphanumericToken(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	// Normalization lowercases the domain only; the local part is preserved.
	users.On("GetByEmail", ctx, "Anisha@swsc.edu.np").Return(&domain.User{ID: "user-001", Email: "Anisha@swsc.edu.np"}, nil)
	tokens.On("Create", ctx, mock.AnythingOfType("*domain.VerificationToken")).Return(nil)

	err := svc.RequestPasswordReset(ctx, "Anisha@SWSC.edu.np")
	require.NoError(t, err)

	issued := tokens.Calls[0].Arguments.Get(1).(*domain.VerificationToken)
	assert.Equal(t, domain.TokenTypePasswordReset, issued.Type)
	assert.Len(t, issued.Token, 12)
	assert.Regexp(t, `^[A-Za-z0-9]{12}$`, issued.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), issued.ExpiresAt, time.Minute)
}

// ---------------------------------------------------------------------------
// ConfirmPasswordReset
// ---------------------------------------------------------------------------

func TestConfirmPasswordReset_Success(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	now := time.Now().UTC()
	tok := &domain.VerificationToken{
		ID:        "tok-002",
		UserID:    "user-001",
		Token:     "a1B2c3D4e5F6",
		Type:      domain.TokenTypePasswordReset,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	tokens.On("GetByToken", ctx, "a1B2c3D4e5F6", domain.TokenTypePasswordReset).Return(tok, nil)
	tokens.On("ConsumeForPasswordReset", ctx, "tok-002", "user-001", mock.AnythingOfType("string")).Return(nil)

	err := svc.ConfirmPasswordReset(ctx, "a1B2c3D4e5F6", "brand-new-password")
	require.NoError(t, err)

	newHash := tokens.Calls[1].Arguments.String(3)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("brand-new-password")))
	tokens.AssertExpectations(t)
}

func TestConfirmPasswordReset_UsedToken(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	now := time.Now().UTC()
	tok := &domain.VerificationToken{
		ID:        "tok-002",
		UserID:    "user-001",
		Token:     "a1B2c3D4e5F6",
		Type:      domain.TokenTypePasswordReset,
		ExpiresAt: now.Add(time.Hour),
		IsUsed:    true,
		CreatedAt: now,
	}
	tokens.On("GetByToken", ctx, "a1B2c3D4e5F6", domain.TokenTypePasswordReset).Return(tok, nil)

	err := svc.ConfirmPasswordReset(ctx, "a1B2c3D4e5F6", "brand-new-password")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	tokens.AssertNotCalled(t, "ConsumeForPasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// SweepExpiredTokens
// ---------------------------------------------------------------------------

func TestSweepExpiredTokens(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockTokenRepository)
	refresh := new(mockRefreshTokenRepository)
	svc := newAccountService(users, tokens, refresh)
	ctx := context.Background()

	tokens.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(4), nil)

	n, err := svc.SweepExpiredTokens(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
