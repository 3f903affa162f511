package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sintonia/internal/apperr"
	"sintonia/internal/auth"
	"sintonia/internal/config"
	"sintonia/internal/models"
	"sintonia/internal/service"
)

type fakeAuthenticator struct {
	tokens map[string]models.Identity
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (models.Identity, *auth.JWTClaims, error) {
	identity, ok := f.tokens[token]
	if !ok {
		return models.Identity{}, nil, apperr.Unauthorized("invalid token")
	}
	return identity, &auth.JWTClaims{UserID: identity.UserID, Role: identity.Role}, nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body["code"]
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	authMw := NewAuthMiddleware(&fakeAuthenticator{tokens: map[string]models.Identity{
		"psy-token":     {UserID: 2, Role: models.RolePsychologist},
		"patient-token": {UserID: 4, Role: models.RolePatient},
	}})

	var seen models.Identity
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetIdentity(r)
		w.WriteHeader(http.StatusNoContent)
	})
	handler := authMw.Authenticate(RequireRole(models.RolePsychologist, models.RoleAdmin)(final))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"no header", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "unauthorized"},
		{"wrong role", "Bearer patient-token", http.StatusForbidden, "forbidden"},
		{"allowed", "bearer psy-token", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, code)
				}
			}
		})
	}

	if seen.UserID != 2 || seen.Role != models.RolePsychologist {
		t.Errorf("expected psychologist identity in context, got %+v", seen)
	}
}

func TestRequireRoleWithoutAuthentication(t *testing.T) {
	handler := RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	cors := NewCORSMiddleware(&config.CORSConfig{
		AllowedOrigins:   []string{"https://app.example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := cors.Handler(next)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/questionnaires", nil)
	preflight.Header.Set("Origin", "https://app.example.com")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, preflight)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("unexpected allow origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("expected credentials allowed, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("expected max age 600, got %q", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/questionnaires", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers for unknown origin, got %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, Requests: 2, Duration: time.Minute})
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("10.0.0.1") != http.StatusOK || do("10.0.0.1") != http.StatusOK {
		t.Fatal("expected first two requests to pass")
	}
	if code := do("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}
	if code := do("10.0.0.2"); code != http.StatusOK {
		t.Errorf("expected other client to pass, got %d", code)
	}

	now = now.Add(time.Minute)
	if code := do("10.0.0.1"); code != http.StatusOK {
		t.Errorf("expected a new window to pass, got %d", code)
	}
}

func TestLoggingMiddlewareRequestContext(t *testing.T) {
	var (
		requestID string
		meta      service.RequestMeta
	)
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestID(r.Context())
		meta, _ = service.RequestMetaFrom(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "probe")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if requestID == "" || rec.Header().Get(RequestIDHeader) != requestID {
		t.Errorf("expected request id echoed in header, got %q and %q", requestID, rec.Header().Get(RequestIDHeader))
	}
	if meta.IPAddress != "203.0.113.7" || meta.UserAgent != "probe" {
		t.Errorf("unexpected request meta %+v", meta)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status passed through, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/questionnaires", nil))
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected API responses to be uncacheable")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options DENY")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("expected docs to stay cacheable")
	}
}
