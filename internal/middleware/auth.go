package middleware

import (
	"context"
	"net/http"
	"strings"

	"sintonia/internal/apperr"
	"sintonia/internal/auth"
	"sintonia/internal/models"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	claimsKey   contextKey = "claims"
)

// Authenticator resolves an access token to the caller identity
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, *auth.JWTClaims, error)
}

// AuthMiddleware validates bearer tokens against live sessions
type AuthMiddleware struct {
	authenticator Authenticator
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Authenticate validates the JWT token and adds the identity to the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "missing or malformed authorization header")
			return
		}

		identity, claims, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			respondWithAppError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity, claims)))
	})
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// WithIdentity stores the authenticated caller in ctx
func WithIdentity(ctx context.Context, identity models.Identity, claims *auth.JWTClaims) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey, claims)
	}
	return ctx
}

// GetIdentity retrieves the authenticated caller from the request context
func GetIdentity(r *http.Request) (models.Identity, bool) {
	identity, ok := r.Context().Value(identityKey).(models.Identity)
	return identity, ok
}

// GetClaims retrieves the token claims from the request context
func GetClaims(r *http.Request) (*auth.JWTClaims, bool) {
	claims, ok := r.Context().Value(claimsKey).(*auth.JWTClaims)
	return claims, ok
}
