package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chautari/chautari/internal/auth"
	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/event"
	"github.com/chautari/chautari/internal/repository"
	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/pkg/health"
	"github.com/chautari/chautari/pkg/httputil"
	pkgkafka "github.com/chautari/chautari/pkg/kafka"
	"github.com/chautari/chautari/pkg/middleware"
)

// ---------------------------------------------------------------------------
// mock repositories
// ---------------------------------------------------------------------------

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) CreateWithProfile(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	args := m.Called(ctx, user, profile)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *mockProfileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) GetByUserAndToken(ctx context.Context, userID, token, tokenType string) (*domain.VerificationToken, error) {
	args := m.Called(ctx, userID, token, tokenType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationToken), args.Error(1)
}

func (m *mockTokenRepository) GetByToken(ctx context.Context, token, tokenType string) (*domain.VerificationToken, error) {
	args := m.Called(ctx, token, tokenType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationToken), args.Error(1)
}

func (m *mockTokenRepository) ConsumeForEmailVerification(ctx context.Context, tokenID, userID string) error {
	args := m.Called(ctx, tokenID, userID)
	return args.Error(0)
}

func (m *mockTokenRepository) ConsumeForPasswordReset(ctx context.Context, tokenID, userID, passwordHash string) error {
	args := m.Called(ctx, tokenID, userID, passwordHash)
	return args.Error(0)
}

func (m *mockTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *mockCategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockListingRepository struct {
	mock.Mock
}

func (m *mockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *mockListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *mockListingRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *mockListingRepository) List(ctx context.Context, filter repository.ListingFilter) ([]domain.Listing, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Listing), args.Int(1), args.Error(2)
}

func (m *mockListingRepository) ListBySeller(ctx context.Context, sellerID string, page, perPage int) ([]domain.Listing, int, error) {
	args := m.Called(ctx, sellerID, page, perPage)
	return args.Get(0).([]domain.Listing), args.Int(1), args.Error(2)
}

func (m *mockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *mockListingRepository) IncrementViewCount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockListingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockListingRepository) CountActiveBySeller(ctx context.Context, sellerID string) (int, error) {
	args := m.Called(ctx, sellerID)
	return args.Int(0), args.Error(1)
}

func (m *mockListingRepository) Stats(ctx context.Context) (*domain.ListingStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ListingStats), args.Error(1)
}

type mockSavedListingRepository struct {
	mock.Mock
}

func (m *mockSavedListingRepository) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSavedListingRepository) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSavedListingRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.SavedListing, int, error) {
	args := m.Called(ctx, userID, page, perPage)
	return args.Get(0).([]domain.SavedListing), args.Int(1), args.Error(2)
}

type mockCommentRepository struct {
	mock.Mock
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *domain.ListingComment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *mockCommentRepository) ListByListing(ctx context.Context, listingID string, page, perPage int) ([]domain.ListingComment, int, error) {
	args := m.Called(ctx, listingID, page, perPage)
	return args.Get(0).([]domain.ListingComment), args.Int(1), args.Error(2)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReviewRepository) ListForUser(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, userID, page, perPage)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) Summary(ctx context.Context, userID string) (*domain.ReviewSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewSummary), args.Error(1)
}

// ---------------------------------------------------------------------------
// test helpers
// ---------------------------------------------------------------------------

// testRepos bundles all mock repositories backing a test server.
type testRepos struct {
	users      *mockUserRepository
	profiles   *mockProfileRepository
	tokens     *mockTokenRepository
	refresh    *mockRefreshTokenRepository
	categories *mockCategoryRepository
	listings   *mockListingRepository
	saved      *mockSavedListingRepository
	comments   *mockCommentRepository
	reviews    *mockReviewRepository
}

func newTestRepos() *testRepos {
	return &testRepos{
		users:      new(mockUserRepository),
		profiles:   new(mockProfileRepository),
		tokens:     new(mockTokenRepository),
		refresh:    new(mockRefreshTokenRepository),
		categories: new(mockCategoryRepository),
		listings:   new(mockListingRepository),
		saved:      new(mockSavedListingRepository),
		comments:   new(mockCommentRepository),
		reviews:    new(mockReviewRepository),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEventProducer points at an unreachable broker; event publishing is
// fire-and-forget so failures are logged and swallowed.
func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

// hashForTest uses the minimum bcrypt cost to keep tests fast.
func hashForTest(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func testJWT() *auth.JWTManager {
	return auth.NewJWTManager("test-secret", 15*time.Minute, 30*24*time.Hour)
}

// setupServer builds the full production router over mock repositories.
func setupServer(repos *testRepos) http.Handler {
	logger := testLogger()
	producer := testEventProducer()
	jwtManager := testJWT()

	svcs := Services{
		Accounts: service.NewAccountService(
			repos.users, repos.tokens, repos.refresh,
			jwtManager, producer, logger, []string{"swsc.edu.np"}, 0,
		),
		Listings:   service.NewListingService(repos.listings, repos.categories, repos.saved, producer, logger),
		Categories: service.NewCategoryService(repos.categories, logger),
		Saved:      service.NewSavedService(repos.saved, repos.listings, logger),
		Comments:   service.NewCommentService(repos.comments, repos.listings, logger),
		Reviews:    service.NewReviewService(repos.reviews, repos.users, logger),
		Profiles:   service.NewProfileService(repos.profiles, repos.users, repos.listings, repos.reviews, logger),
	}

	return NewRouter(svcs, jwtManager, health.NewHandler(), logger, middleware.DefaultCORSConfig())
}

// bearerFor issues a real access token for the given user.
func bearerFor(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := testJWT().GenerateAccessToken(userID, userID+"@swsc.edu.np", role)
	require.NoError(t, err)
	return "Bearer " + token
}

// decodeEnvelope reads the response body into the standard envelope.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Envelope {
	t.Helper()
	var env httputil.Envelope
	err := json.NewDecoder(rec.Body).Decode(&env)
	require.NoError(t, err)
	return env
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func verifiedUser(id string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:            id,
		Email:         "anisha@swsc.edu.np",
		FirstName:     "Anisha",
		LastName:      "Shrestha",
		IsActive:      true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func activeListing(id, sellerID string) *domain.Listing {
	now := time.Now().UTC()
	return &domain.Listing{
		ID:          id,
		SellerID:    sellerID,
		CategoryID:  "720e8400-e29b-41d4-a716-446655440002",
		Title:       "Calculus Textbook",
		Slug:        "calculus-textbook",
		Description: "Stewart 8th edition, lightly used.",
		Price:       1200,
		Condition:   "good",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
