package middleware

import (
	"net/http"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
)

// RequireRole lets the request through only when the caller has one of roles.
// Must run after AuthMiddleware.Authenticate.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "user not authenticated")
				return
			}
			if !identity.Is(roles...) {
				respondWithError(w, http.StatusForbidden, apperr.CodeForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
