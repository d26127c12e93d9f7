package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/chautari/chautari/internal/domain"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

// VerifyEmail consumes a verification code for the authenticated user and
// marks their email verified. The code lookup is scoped to that user, so a
// code issued for someone else never matches. Failures are reported in a
// fixed order: an unknown code first, then expiry, then reuse, so an expired
// code that was also consumed reports as expired.
func (s *AccountService) VerifyEmail(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if user.EmailVerified {
		return apperrors.InvalidInput("email is already verified")
	}

	token, err := s.tokens.GetByUserAndToken(ctx, user.ID, code, domain.TokenTypeEmailVerification)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput("invalid verification code")
		}
		return fmt.Errorf("look up verification code: %w", err)
	}

	now := time.Now().UTC()
	if token.Expired(now) {
		return apperrors.InvalidInput("verification code has expired")
	}
	if token.IsUsed {
		return apperrors.Conflict("verification code has already been used")
	}

	if err := s.tokens.ConsumeForEmailVerification(ctx, token.ID, user.ID); err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}

	user.EmailVerified = true
	if err := s.producer.PublishEmailVerified(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.email_verified event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// ResendVerification issues a fresh verification code for the authenticated
// user. The previous code stops working as soon as the new one is created.
func (s *AccountService) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if user.EmailVerified {
		return apperrors.InvalidInput("email is already verified")
	}

	code, err := s.issueToken(ctx, user.ID, domain.TokenTypeEmailVerification)
	if err != nil {
		return fmt.Errorf("issue verification code: %w", err)
	}

	if err := s.producer.PublishVerificationRequested(ctx, user, code); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.verification_requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// RequestPasswordReset issues a reset token for the account behind the
// address. Unknown addresses are not reported to the caller, so the response
// never reveals whether an account exists.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}

	token, err := s.issueToken(ctx, user.ID, domain.TokenTypePasswordReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.producer.PublishPasswordResetRequested(ctx, user, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset_requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// ConfirmPasswordReset consumes a reset token and replaces the user's
// password. Reset tokens are globally unique, so the lookup is not scoped to
// a user. All of the user's refresh tokens are revoked in the same
// transaction.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, tokenValue, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.InvalidInput("password is too short").
			WithField("new_password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	token, err := s.tokens.GetByToken(ctx, tokenValue, domain.TokenTypePasswordReset)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput("invalid reset token")
		}
		return fmt.Errorf("look up reset token: %w", err)
	}

	now := time.Now().UTC()
	if token.Expired(now) {
		return apperrors.InvalidInput("reset token has expired")
	}
	if token.IsUsed {
		return apperrors.Conflict("reset token has already been used")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.tokens.ConsumeForPasswordReset(ctx, token.ID, token.UserID, string(hash)); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	return nil
}

// SweepExpiredTokens deletes verification tokens past their expiry. The
// worker runs it periodically.
func (s *AccountService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "swept expired verification tokens", slog.Int64("deleted", n))
	}
	return n, nil
}
