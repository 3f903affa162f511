package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sintonia/internal/apperr"
	"sintonia/internal/auth"
	"sintonia/internal/models"
	"sintonia/internal/repository"
	"sintonia/pkg/validator"
)

// TokenPair is the result of a login or refresh
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             *models.User
}

// AuthService handles authentication and session bookkeeping
type AuthService struct {
	users    UserStore
	sessions SessionStore
	authSvc  *auth.Service
	audit    *AuditService
}

// NewAuthService creates a new authentication service
func NewAuthService(users UserStore, sessions SessionStore, authSvc *auth.Service, audit *AuditService) *AuthService {
	return &AuthService{users: users, sessions: sessions, authSvc: authSvc, audit: audit}
}

// Login authenticates a user and opens a new session with an access and a refresh token
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, validator.SanitizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if !user.IsActive() {
		return nil, apperr.Unauthorized("user account is inactive")
	}

	pair, err := s.openSession(ctx, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("Failed to update last login", "user_id", user.ID, "error", err)
	}
	s.audit.Log(ctx, user.ID, AuditLogin, "session", fmt.Sprintf("session_id=%s", pair.SessionID))
	return pair, nil
}

// Refresh exchanges a refresh token for a new token pair.
// The old login session is deleted (rotation), so a refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*TokenPair, error) {
	claims, err := s.authSvc.ValidateToken(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	if claims.TokenType != auth.TokenTypeRefresh || claims.ID == "" {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	session, err := s.sessions.GetByJTI(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("session not found or revoked")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != claims.UserID || session.TokenType != auth.TokenTypeRefresh {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive() {
		return nil, apperr.Unauthorized("user account is inactive")
	}

	// A concurrent refresh with the same token loses here
	if err := s.sessions.DeleteBySessionID(ctx, user.ID, session.SessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("session not found or revoked")
		}
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	return s.openSession(ctx, user, ipAddress, userAgent)
}

// Logout ends the login session the token belongs to. Expired tokens are accepted.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	jti, err := s.authSvc.ExtractJTI(token)
	if err != nil || jti == "" {
		return apperr.Unauthorized("invalid token")
	}

	session, err := s.sessions.GetByJTI(ctx, jti)
	if errors.Is(err, repository.ErrNotFound) {
		// Already logged out
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.sessions.DeleteBySessionID(ctx, session.UserID, session.SessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.audit.Log(ctx, session.UserID, AuditLogout, "session", fmt.Sprintf("session_id=%s", session.SessionID))
	return nil
}

// ListSessions returns the refresh-token entries of the actor, one per login
func (s *AuthService) ListSessions(ctx context.Context, actor models.Identity) ([]models.Session, error) {
	all, err := s.sessions.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions := make([]models.Session, 0, len(all))
	for _, session := range all {
		if session.TokenType == auth.TokenTypeRefresh {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// RevokeSession ends one login session of the actor
func (s *AuthService) RevokeSession(ctx context.Context, actor models.Identity, sessionID string) error {
	err := s.sessions.DeleteBySessionID(ctx, actor.UserID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("session %s not found", sessionID)
	}
	return err
}

// RevokeAllSessions ends every login session of the actor
func (s *AuthService) RevokeAllSessions(ctx context.Context, actor models.Identity) error {
	return s.sessions.DeleteAllUserSessions(ctx, actor.UserID)
}

// Authenticate validates an access token and returns the caller identity.
// The session must still exist and the user must be active.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Identity, *auth.JWTClaims, error) {
	claims, err := s.authSvc.ValidateToken(token)
	if errors.Is(err, auth.ErrExpiredToken) {
		return models.Identity{}, nil, apperr.Unauthorized("token has expired")
	}
	if err != nil {
		return models.Identity{}, nil, apperr.Unauthorized("invalid token")
	}
	if claims.TokenType != auth.TokenTypeAccess {
		return models.Identity{}, nil, apperr.Unauthorized("invalid token type")
	}

	session, err := s.sessions.GetByJTI(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Identity{}, nil, apperr.Unauthorized("session has been revoked")
	}
	if err != nil {
		return models.Identity{}, nil, fmt.Errorf("failed to load session: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Identity{}, nil, apperr.Unauthorized("user not found")
	}
	if err != nil {
		return models.Identity{}, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive() {
		return models.Identity{}, nil, apperr.Unauthorized("user account is inactive")
	}

	if err := s.sessions.UpdateLastActivity(ctx, session.ID); err != nil {
		slog.Warn("Failed to update session activity", "session_id", session.SessionID, "error", err)
	}

	// The role comes from the user row so role changes apply without re-login
	return models.Identity{UserID: user.ID, Role: user.Role}, claims, nil
}

// EnsureAdmin creates the bootstrap admin when no admin account exists yet
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	count, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}
	if email == "" || password == "" {
		slog.Warn("No admin account exists and no bootstrap admin is configured")
		return nil, nil
	}

	email = validator.SanitizeEmail(email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if err := validator.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	hash, err := s.authSvc.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		Role:         models.RoleAdmin,
		Status:       models.UserStatusActive,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	slog.Info("Bootstrap admin created", "user_id", admin.ID, "email", admin.Email)
	return admin, nil
}

// CleanupExpiredSessions removes expired token entries
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx)
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, ipAddress, userAgent string) (*TokenPair, error) {
	sessionID := uuid.NewString()

	access, err := s.authSvc.GenerateToken(user, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.authSvc.GenerateRefreshToken(user, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	for _, t := range []struct {
		issued    *auth.IssuedToken
		tokenType string
	}{
		{refresh, auth.TokenTypeRefresh},
		{access, auth.TokenTypeAccess},
	} {
		now := time.Now()
		session := &models.Session{
			ID:             uuid.NewString(),
			UserID:         user.ID,
			SessionID:      sessionID,
			JTI:            t.issued.JTI,
			TokenType:      t.tokenType,
			ExpiresAt:      t.issued.ExpiresAt,
			LastActivityAt: now,
			CreatedAt:      now,
			IPAddress:      ipAddress,
			UserAgent:      userAgent,
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create %s session: %w", t.tokenType, err)
		}
	}

	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		SessionID:        sessionID,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             user,
	}, nil
}
