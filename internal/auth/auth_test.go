package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"sintonia/internal/config"
	"sintonia/internal/models"
)

func newTestService(expiration time.Duration) *Service {
	return NewService(&config.JWTConfig{
		Secret:            "test-secret",
		Expiration:        expiration,
		RefreshExpiration: 168 * time.Hour,
	})
}

func testUser() *models.User {
	return &models.User{ID: 7, Email: "psy@example.com", Role: models.RolePsychologist}
}

func TestHashPassword(t *testing.T) {
	svc := newTestService(time.Hour)

	password := "testpassword123"
	hash, err := svc.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if hash == "" {
		t.Error("Hash should not be empty")
	}
	if hash == password {
		t.Error("Hash should not equal the original password")
	}

	if err := svc.VerifyPassword(hash, password); err != nil {
		t.Errorf("Should verify correct password, got error: %v", err)
	}
	if err := svc.VerifyPassword(hash, "wrongpassword"); err == nil {
		t.Error("Should not verify incorrect password")
	}
}

func TestValidateToken(t *testing.T) {
	svc := newTestService(time.Hour)
	user := testUser()

	issued, err := svc.GenerateToken(user, "session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if issued.Token == "" || issued.JTI == "" {
		t.Fatal("Token and JTI should not be empty")
	}

	claims, err := svc.ValidateToken(issued.Token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.UserID != user.ID {
		t.Errorf("Expected user ID %d, got %d", user.ID, claims.UserID)
	}
	if claims.Role != models.RolePsychologist {
		t.Errorf("Expected role psychologist, got %s", claims.Role)
	}
	if claims.SessionID != "session-1" || claims.TokenType != TokenTypeAccess {
		t.Errorf("Unexpected session claims: %+v", claims)
	}
	if claims.ID != issued.JTI {
		t.Errorf("Expected JTI %s, got %s", issued.JTI, claims.ID)
	}

	identity := claims.Identity()
	if identity.UserID != user.ID || !identity.IsPsychologist() {
		t.Errorf("Unexpected identity %+v", identity)
	}
}

func TestRefreshTokenType(t *testing.T) {
	svc := newTestService(time.Hour)

	issued, err := svc.GenerateRefreshToken(testUser(), "session-1")
	if err != nil {
		t.Fatalf("Failed to generate refresh token: %v", err)
	}

	claims, err := svc.ValidateToken(issued.Token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Errorf("Expected refresh token type, got %s", claims.TokenType)
	}
	if !issued.ExpiresAt.After(time.Now().Add(100 * time.Hour)) {
		t.Errorf("Refresh token expires too early: %v", issued.ExpiresAt)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := newTestService(-1 * time.Hour)

	issued, err := svc.GenerateToken(testUser(), "session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, err = svc.ValidateToken(issued.Token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}

	// Logout still needs the JTI of an expired token
	jti, err := svc.ExtractJTI(issued.Token)
	if err != nil {
		t.Fatalf("Failed to extract JTI: %v", err)
	}
	if jti != issued.JTI {
		t.Errorf("Expected JTI %s, got %s", issued.JTI, jti)
	}
}

func TestValidateTokenFromOtherKey(t *testing.T) {
	issuer := newTestService(time.Hour)
	verifier := newTestService(time.Hour)

	issued, err := issuer.GenerateToken(testUser(), "session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := verifier.ValidateToken(issued.Token); err == nil {
		t.Error("Should reject token signed with a different key")
	}
}

func TestPEMSecretIsStable(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	secret, err := EncodePrivateKey(key)
	if err != nil {
		t.Fatalf("Failed to encode key: %v", err)
	}

	cfg := &config.JWTConfig{Secret: secret, Expiration: time.Hour, RefreshExpiration: time.Hour}
	issued, err := NewService(cfg).GenerateToken(testUser(), "s")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	// A second service built from the same PEM accepts the token
	if _, err := NewService(cfg).ValidateToken(issued.Token); err != nil {
		t.Errorf("Expected token to validate with same key, got %v", err)
	}
}

func TestGenerateRandomToken(t *testing.T) {
	token1, err := GenerateRandomToken(32)
	if err != nil {
		t.Fatalf("Failed to generate random token: %v", err)
	}
	if token1 == "" {
		t.Error("Token should not be empty")
	}

	token2, err := GenerateRandomToken(32)
	if err != nil {
		t.Fatalf("Failed to generate second random token: %v", err)
	}
	if token1 == token2 {
		t.Error("Random tokens should be different")
	}
}
