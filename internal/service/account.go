package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chautari/chautari/internal/auth"
	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/event"
	"github.com/chautari/chautari/internal/repository"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8

	emailCodeLength     = 6
	defaultEmailCodeTTL = 10 * time.Minute
	resetTokenLength    = 12
	resetTokenTTL       = time.Hour
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// AccountService implements the business logic for user accounts, sessions
// and the verification token lifecycle.
type AccountService struct {
	users          repository.UserRepository
	tokens         repository.TokenRepository
	refreshTokens  repository.RefreshTokenRepository
	jwt            *auth.JWTManager
	producer       *event.Producer
	logger         *slog.Logger
	allowedDomains []string
	codeTTL        time.Duration
}

// NewAccountService creates a new account service. allowedDomains is the
// college email domain allow-list; registration is refused for any address
// outside it. codeTTL controls how long email verification codes stay valid;
// zero selects the default.
func NewAccountService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	refreshTokens repository.RefreshTokenRepository,
	jwt *auth.JWTManager,
	producer *event.Producer,
	logger *slog.Logger,
	allowedDomains []string,
	codeTTL time.Duration,
) *AccountService {
	if codeTTL <= 0 {
		codeTTL = defaultEmailCodeTTL
	}
	return &AccountService{
		users:          users,
		tokens:         tokens,
		refreshTokens:  refreshTokens,
		jwt:            jwt,
		producer:       producer,
		logger:         logger,
		allowedDomains: allowedDomains,
		codeTTL:        codeTTL,
	}
}

// NormalizeEmail trims whitespace and lowercases the domain part of the
// address. The local part is preserved as typed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + strings.ToLower(email[at:])
}

func (s *AccountService) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	emailDomain := email[at+1:]
	for _, d := range s.allowedDomains {
		if strings.EqualFold(emailDomain, d) {
			return true
		}
	}
	return false
}

// RegisterInput holds the parameters for creating an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register creates a new account with its profile, issues an email
// verification code and announces the registration.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := NormalizeEmail(input.Email)

	if !s.domainAllowed(email) {
		return nil, apperrors.InvalidInput("registration is restricted to college email addresses").
			WithField("email", "email domain is not allowed")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput("password is too short").
			WithField("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return nil, apperrors.InvalidInput("first name is required").
			WithField("first_name", "must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        strings.TrimSpace(input.Phone),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &domain.Profile{
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	code, err := s.issueToken(ctx, user.ID, domain.TokenTypeEmailVerification)
	if err != nil {
		return nil, fmt.Errorf("issue verification code: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.producer.PublishVerificationRequested(ctx, user, code); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.verification_requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// issueToken creates a fresh verification token of the given type. Creation
// invalidates the user's outstanding tokens of the same type.
func (s *AccountService) issueToken(ctx context.Context, userID, tokenType string) (string, error) {
	var (
		value string
		ttl   time.Duration
		err   error
	)

	switch tokenType {
	case domain.TokenTypeEmailVerification:
		value, err = randomNumericCode(emailCodeLength)
		ttl = s.codeTTL
	case domain.TokenTypePasswordReset:
		value, err = randomAlphanumeric(resetTokenLength)
		ttl = resetTokenTTL
	default:
		return "", fmt.Errorf("unsupported token type %q", tokenType)
	}
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	now := time.Now().UTC()
	token := &domain.VerificationToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     value,
		Type:      tokenType,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return "", err
	}

	return value, nil
}

func randomNumericCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func randomAlphanumeric(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphanumeric[n.Int64()])
	}
	return b.String(), nil
}

// Login authenticates a user and issues a token pair. The refresh token is
// persisted as a SHA-256 hash only.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	// Deactivated accounts get the same generic response as a bad password.
	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

func (s *AccountService) issueTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role())
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.jwt.RefreshExpiry())
	if err := s.refreshTokens.Create(ctx, user.ID, hashToken(refreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.AccessExpiry().Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Refresh validates a refresh token and rotates it: the presented token is
// revoked and a fresh pair is issued.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	userID := claims.UserID

	hash := hashToken(refreshToken)
	record, err := s.refreshTokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("look up refresh token: %w", err)
	}

	now := time.Now().UTC()
	if record.RevokedAt != nil || now.After(record.ExpiresAt) || record.UserID != userID {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("account is deactivated")
	}

	if err := s.refreshTokens.Revoke(ctx, hash); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.issueTokenPair(ctx, user)
}

// Logout revokes the presented refresh token. Unknown tokens are ignored so
// logout is idempotent.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	err := s.refreshTokens.Revoke(ctx, hashToken(refreshToken))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateUserInput holds the self-service account fields. Nil fields are left
// unchanged.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// UpdateUser applies a partial update to the caller's own account fields.
// Email and the privilege flags are never touched here.
func (s *AccountService) UpdateUser(ctx context.Context, userID string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if input.FirstName != nil {
		if strings.TrimSpace(*input.FirstName) == "" {
			return nil, apperrors.InvalidInput("first name is required").WithField("first_name", "must not be empty")
		}
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}

	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one, then revokes all their refresh tokens.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.InvalidInput("password is too short").
			WithField("new_password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if err := s.refreshTokens.RevokeByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	return nil
}

// CreateSuperuser creates a verified staff account with full privileges.
// Used by the seed command. The email domain allow-list does not apply.
func (s *AccountService) CreateSuperuser(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	if len(password) < minPasswordLength {
		return nil, apperrors.InvalidInput("password is too short").
			WithField("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:            uuid.New().String(),
		Email:         NormalizeEmail(email),
		PasswordHash:  string(hash),
		FirstName:     firstName,
		LastName:      lastName,
		IsActive:      true,
		IsStaff:       true,
		IsSuperuser:   true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	profile := &domain.Profile{
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("create superuser: %w", err)
	}

	return user, nil
}
