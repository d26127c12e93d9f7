package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chautari/chautari/internal/auth"
	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/pkg/health"
	"github.com/chautari/chautari/pkg/middleware"
)

// Services bundles the service layer consumed by the router.
type Services struct {
	Accounts   *service.AccountService
	Listings   *service.ListingService
	Categories *service.CategoryService
	Saved      *service.SavedService
	Comments   *service.CommentService
	Reviews    *service.ReviewService
	Profiles   *service.ProfileService
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(
	svcs Services,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsCfg middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("chautari"))
	r.Use(middleware.Tracing("chautari"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	validate := accessTokenValidator(jwtManager)
	requireAuth := middleware.Auth(validate)
	optionalAuth := middleware.OptionalAuth(validate)
	requireVerified := RequireVerifiedEmail(svcs.Accounts)
	requireStaff := middleware.RequireRole(middleware.RoleStaff)

	authHandler := NewAuthHandler(svcs.Accounts, svcs.Profiles, logger)
	listingHandler := NewListingHandler(svcs.Listings, logger)
	categoryHandler := NewCategoryHandler(svcs.Categories, logger)
	savedHandler := NewSavedHandler(svcs.Saved, logger)
	commentHandler := NewCommentHandler(svcs.Comments, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)
	profileHandler := NewProfileHandler(svcs.Profiles, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/password/reset", authHandler.RequestPasswordReset)
			r.Post("/password/reset/confirm", authHandler.ConfirmPasswordReset)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.Logout)
				r.Post("/verify-email", authHandler.VerifyEmail)
				r.Post("/verify-email/resend", authHandler.ResendVerification)
				r.Get("/me", authHandler.Me)
				r.Patch("/me", authHandler.UpdateMe)
				r.Get("/me/profile", authHandler.GetContact)
				r.Patch("/me/profile", authHandler.UpdateContact)
				r.Post("/password/change", authHandler.ChangePassword)
			})
		})

		r.Route("/listings", func(r chi.Router) {
			r.With(optionalAuth).Get("/", listingHandler.List)
			r.Get("/stats", listingHandler.Stats)
			r.With(requireAuth).Get("/mine", listingHandler.Mine)
			r.With(requireAuth, requireVerified).Post("/", listingHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.With(optionalAuth).Get("/", listingHandler.Get)
				r.With(requireAuth).Post("/save", savedHandler.Toggle)
				r.With(optionalAuth).Get("/comments", commentHandler.List)
				r.With(requireAuth, requireVerified).Post("/comments", commentHandler.Create)

				r.Group(func(r chi.Router) {
					r.Use(requireAuth, requireVerified)
					r.Patch("/", listingHandler.Update)
					r.Delete("/", listingHandler.Delete)
					r.Post("/sold", listingHandler.MarkSold)
					r.Post("/activate", listingHandler.Activate)
					r.Post("/deactivate", listingHandler.Deactivate)
				})
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Get("/{slug}/listings", listingHandler.ListByCategory)
			r.With(requireAuth, requireStaff).Post("/", categoryHandler.Create)
			r.With(requireAuth, requireStaff).Delete("/{id}", categoryHandler.Delete)
		})

		r.With(requireAuth).Get("/saved", savedHandler.List)

		r.Route("/users/{id}", func(r chi.Router) {
			r.With(optionalAuth).Get("/", profileHandler.GetPublic)
			r.Get("/reviews", reviewHandler.ListForUser)
			r.Get("/reviews/summary", reviewHandler.Summary)
			r.With(requireAuth, requireVerified).Post("/reviews", reviewHandler.Create)
		})

		r.Route("/reviews/{id}", func(r chi.Router) {
			r.Use(requireAuth)
			r.Patch("/", reviewHandler.Update)
			r.Delete("/", reviewHandler.Delete)
		})

		r.With(requireAuth).Patch("/profiles/me", profileHandler.UpdateOwn)
	})

	return r
}

// accessTokenValidator adapts the JWT manager to the auth middleware.
func accessTokenValidator(m *auth.JWTManager) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		claims, err := m.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}
}
