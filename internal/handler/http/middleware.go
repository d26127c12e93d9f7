package http

import (
	"net/http"
	"strings"

	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/pkg/httputil"
	"github.com/chautari/chautari/pkg/middleware"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteErrorEnvelope(w, http.StatusUnsupportedMediaType, &httputil.ErrorResponse{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireVerifiedEmail gates write endpoints behind a verified email address.
// The check reads the current user record rather than trusting a claim baked
// into an access token issued before verification. Mount after Auth.
func RequireVerifiedEmail(accounts *service.AccountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := middleware.UserIDFromContext(r.Context())
			if userID == "" {
				httputil.WriteErrorEnvelope(w, http.StatusUnauthorized, &httputil.ErrorResponse{
					Code:    "UNAUTHORIZED",
					Message: "authentication required",
				})
				return
			}

			user, err := accounts.GetUser(r.Context(), userID)
			if err != nil {
				httputil.WriteError(w, r, err, nil)
				return
			}
			if !user.EmailVerified {
				httputil.WriteErrorEnvelope(w, http.StatusForbidden, &httputil.ErrorResponse{
					Code:    "EMAIL_NOT_VERIFIED",
					Message: "verify your email address to perform this action",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
