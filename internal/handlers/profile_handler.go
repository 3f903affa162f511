package handlers

import (
	"net/http"

	"sintonia/internal/models"
	"sintonia/internal/service"
)

// ProfileHandler serves the caller's own account and login sessions
type ProfileHandler struct {
	profileService *service.ProfileService
	authService    *service.AuthService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *service.ProfileService, authService *service.AuthService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		authService:    authService,
	}
}

// GetProfile returns the caller's account
// @Summary Get own profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /users/me [get]
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	user, err := h.profileService.Get(r.Context(), identity)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// UpdateProfile edits the caller's name, email and phone
// @Summary Update own profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Email already in use"
// @Failure 422 {object} ErrorResponse
// @Router /users/me [put]
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	var req service.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.profileService.Update(r.Context(), identity, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the caller's password and ends their other sessions
// @Summary Change own password
// @Tags Profile
// @Accept json
// @Security BearerAuth
// @Param request body service.ChangePasswordRequest true "Current and new password"
// @Success 204
// @Failure 401 {object} ErrorResponse "Wrong current password"
// @Failure 422 {object} ErrorResponse
// @Router /users/me/password [put]
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	var req service.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.profileService.ChangePassword(r.Context(), identity, req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions returns the caller's active logins
// @Summary List own sessions
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Session
// @Router /users/me/sessions [get]
func (h *ProfileHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	sessions, err := h.authService.ListSessions(r.Context(), identity)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	respondWithJSON(w, http.StatusOK, sessions)
}

// RevokeSession ends one of the caller's logins
// @Summary Revoke a session
// @Tags Sessions
// @Security BearerAuth
// @Param sessionID path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /users/me/sessions/{sessionID} [delete]
func (h *ProfileHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.authService.RevokeSession(r.Context(), identity, r.PathValue("sessionID")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAllSessions ends every login of the caller, including the current one
// @Summary Revoke all sessions
// @Tags Sessions
// @Security BearerAuth
// @Success 204
// @Router /users/me/sessions [delete]
func (h *ProfileHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.authService.RevokeAllSessions(r.Context(), identity); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
