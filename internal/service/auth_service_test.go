package service_test

import (
	"context"
	"testing"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/service"
	"sintonia/internal/testutil"
)

func TestLoginAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.auth.Login(ctx, "  PSY@test.com ", testutil.FixturePassword, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.SessionID == "" {
		t.Fatalf("expected a full token pair, got %+v", pair)
	}

	identity, _, err := env.auth.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if identity != env.psychologist() {
		t.Errorf("expected identity %+v, got %+v", env.psychologist(), identity)
	}

	// A refresh token is not an access token
	_, _, err = env.auth.Authenticate(ctx, pair.RefreshToken)
	assertCode(t, err, apperr.CodeUnauthorized)

	_, err = env.auth.Login(ctx, env.fx.Psychologist.Email, "wrong", "", "")
	assertCode(t, err, apperr.CodeUnauthorized)
	_, err = env.auth.Login(ctx, "nobody@test.com", testutil.FixturePassword, "", "")
	assertCode(t, err, apperr.CodeUnauthorized)
}

func TestRefreshRotatesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.Login(ctx, env.fx.Patient.Email, testutil.FixturePassword, "", "")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	second, err := env.auth.Refresh(ctx, first.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Error("expected a new session id after refresh")
	}

	// The old refresh token and its access token are gone
	_, err = env.auth.Refresh(ctx, first.RefreshToken, "", "")
	assertCode(t, err, apperr.CodeUnauthorized)
	_, _, err = env.auth.Authenticate(ctx, first.AccessToken)
	assertCode(t, err, apperr.CodeUnauthorized)

	if _, _, err := env.auth.Authenticate(ctx, second.AccessToken); err != nil {
		t.Errorf("expected the new access token to work: %v", err)
	}
}

func TestLogoutAndSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, _ := env.auth.Login(ctx, env.fx.Admin.Email, testutil.FixturePassword, "", "")
	b, _ := env.auth.Login(ctx, env.fx.Admin.Email, testutil.FixturePassword, "", "")

	sessions, err := env.auth.ListSessions(ctx, env.admin())
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if err := env.auth.Logout(ctx, a.AccessToken); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	// Logging out twice is harmless
	if err := env.auth.Logout(ctx, a.AccessToken); err != nil {
		t.Fatalf("second Logout returned error: %v", err)
	}
	_, _, err = env.auth.Authenticate(ctx, a.AccessToken)
	assertCode(t, err, apperr.CodeUnauthorized)

	if err := env.auth.RevokeSession(ctx, env.admin(), b.SessionID); err != nil {
		t.Fatalf("RevokeSession returned error: %v", err)
	}
	err = env.auth.RevokeSession(ctx, env.admin(), b.SessionID)
	assertCode(t, err, apperr.CodeNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Fixtures already contain an admin
	created, err := env.auth.EnsureAdmin(ctx, "root@test.com", "bootstrap-password")
	if err != nil || created != nil {
		t.Fatalf("expected no bootstrap with an existing admin, got %v, %v", created, err)
	}

	store := testutil.NewMemStore()
	fresh := service.NewAuthService(store.Users(), store.Sessions(), testutil.NewAuthService(), service.NewAuditService(store.Audit()))

	created, err = fresh.EnsureAdmin(ctx, "", "")
	if err != nil || created != nil {
		t.Fatalf("expected no bootstrap without configuration, got %v, %v", created, err)
	}

	created, err = fresh.EnsureAdmin(ctx, " Root@Test.com ", "bootstrap-password")
	if err != nil {
		t.Fatalf("EnsureAdmin returned error: %v", err)
	}
	if created == nil || created.Role != models.RoleAdmin || created.Email != "root@test.com" {
		t.Fatalf("unexpected bootstrap admin %+v", created)
	}

	// Second start is a no-op
	again, err := fresh.EnsureAdmin(ctx, "root@test.com", "bootstrap-password")
	if err != nil || again != nil {
		t.Fatalf("expected no second bootstrap, got %v, %v", again, err)
	}
	if _, err := fresh.Login(ctx, "root@test.com", "bootstrap-password", "", ""); err != nil {
		t.Errorf("expected bootstrap admin to log in: %v", err)
	}
}
