package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AnshRaj112/trailhub-backend/internal/auth"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

// Authenticate rejects requests without a valid bearer token and stores the
// caller's user id in the request context.
func Authenticate(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := verifier.Verify(r.Context(), auth.ExtractToken(r))
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					utils.Error(w, http.StatusUnauthorized, "authentication required")
				case errors.Is(err, auth.ErrInvalidToken):
					utils.Error(w, http.StatusUnauthorized, "invalid or expired token")
				default:
					slog.Error("token verification failed", "error", err)
					utils.Error(w, http.StatusUnauthorized, "could not verify credentials")
				}
				return
			}
			recordUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}
