package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"sintonia/internal/auth"
	"sintonia/internal/config"
	"sintonia/internal/models"
)

// SessionCreator is the part of the session store the auth helper needs
type SessionCreator interface {
	Create(ctx context.Context, session *models.Session) error
}

// NewAuthService returns a token service with a throwaway signing key
func NewAuthService() *auth.Service {
	return auth.NewService(&config.JWTConfig{
		Secret:            "test-secret",
		Expiration:        time.Hour,
		RefreshExpiration: 24 * time.Hour,
	})
}

// AuthHelper issues access tokens backed by real session rows
type AuthHelper struct {
	Auth     *auth.Service
	Sessions SessionCreator
}

// NewAuthHelper creates a new auth helper
func NewAuthHelper(authSvc *auth.Service, sessions SessionCreator) *AuthHelper {
	return &AuthHelper{Auth: authSvc, Sessions: sessions}
}

// GenerateToken issues an access token for user and records its session
func (h *AuthHelper) GenerateToken(t *testing.T, user *models.User) string {
	t.Helper()

	sessionID := uuid.NewString()
	issued, err := h.Auth.GenerateToken(user, sessionID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	now := time.Now()
	err = h.Sessions.Create(context.Background(), &models.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		SessionID:      sessionID,
		JTI:            issued.JTI,
		TokenType:      auth.TokenTypeAccess,
		ExpiresAt:      issued.ExpiresAt,
		LastActivityAt: now,
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return issued.Token
}

// AddAuthHeader adds an authorization header to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, req *http.Request, user *models.User) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+h.GenerateToken(t, user))
}

// CreateAuthenticatedRequest creates a request with auth header
func (h *AuthHelper) CreateAuthenticatedRequest(t *testing.T, method, url string, body io.Reader, user *models.User) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	h.AddAuthHeader(t, req, user)
	return req
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}

// Decode unmarshals the JSON body into v
func (r *TestResponse) Decode(t *testing.T, v any) {
	t.Helper()

	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", r.Body.String(), err)
	}
}

// ErrorCode returns the "code" field of an error body
func (r *TestResponse) ErrorCode(t *testing.T) string {
	t.Helper()

	var body struct {
		Code string `json:"code"`
	}
	r.Decode(t, &body)
	return body.Code
}
