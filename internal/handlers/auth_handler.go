package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"sintonia/internal/apperr"
	"sintonia/internal/config"
	"sintonia/internal/middleware"
	"sintonia/internal/models"
	"sintonia/internal/service"
	"sintonia/pkg/validator"
)

// AuthHandler handles login, token refresh and logout
type AuthHandler struct {
	authService *service.AuthService
	config      *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		config:      cfg,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest carries the refresh token for clients that cannot use the cookie
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh. The refresh token travels in an HTTP-only cookie.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	SessionID   string       `json:"session_id"`
	User        *models.User `json:"user"`
}

// Login handles user login
// @Summary Login
// @Description Authenticate with email and password. Sets the refresh token cookie.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse "Malformed body"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	ip, userAgent := clientMeta(r)
	pair, err := h.authService.Login(r.Context(), req.Email, req.Password, ip, userAgent)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	respondWithJSON(w, http.StatusOK, tokenResponse(pair))
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh tokens
// @Description Rotate the login session. Reads the refresh token cookie, or the body as a fallback.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest false "Refresh token when no cookie is sent"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse "Invalid or reused refresh token"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		respondWithError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, ErrMsgMissingRefresh)
		return
	}

	ip, userAgent := clientMeta(r)
	pair, err := h.authService.Refresh(r.Context(), token, ip, userAgent)
	if err != nil {
		h.clearRefreshCookie(w)
		respondWithAppError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	respondWithJSON(w, http.StatusOK, tokenResponse(pair))
}

// Logout ends the current login session
// @Summary Logout
// @Description End the session of the bearer token, or of the refresh token cookie
// @Tags Authentication
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} ErrorResponse "Token is not one of ours"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		token = refreshTokenFrom(r)
	}
	h.clearRefreshCookie(w)

	if token != "" {
		if err := h.authService.Logout(r.Context(), token); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func tokenResponse(pair *service.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   pair.AccessExpiresAt,
		SessionID:   pair.SessionID,
		User:        pair.User,
	}
}

// refreshTokenFrom reads the cookie first, then a JSON body
func refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	var req RefreshTokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}
