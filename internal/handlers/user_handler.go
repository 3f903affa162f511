package handlers

import (
	"net/http"
	"strings"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/service"
)

// UserHandler serves roster management for admins and psychologists
type UserHandler struct {
	rosterService *service.RosterService
}

// NewUserHandler creates a new user handler
func NewUserHandler(rosterService *service.RosterService) *UserHandler {
	return &UserHandler{rosterService: rosterService}
}

// UpdateStatusRequest represents an account status change
type UpdateStatusRequest struct {
	Status models.UserStatus `json:"status"`
}

// AssignPsychologistRequest assigns a patient to a psychologist; null unassigns
type AssignPsychologistRequest struct {
	PsychologistID *uint `json:"psychologist_id"`
}

// CreateUser creates a patient or psychologist account
// @Summary Create a user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateUserRequest true "Account"
// @Success 201 {object} models.User
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Email or tax code in use"
// @Failure 422 {object} ErrorResponse
// @Router /admin/users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	var req service.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.rosterService.CreateUser(r.Context(), identity, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// ListUsers returns accounts of any role
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "patient, psychologist or admin"
// @Param status query string false "active or inactive"
// @Param search query string false "Name or email"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} ListResponse[models.User]
// @Failure 422 {object} ErrorResponse
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	filter := service.UserListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   pagination.Parse(r, "created_at", "desc"),
	}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			respondWithAppError(w, r, apperr.ValidationFields("invalid role", map[string]string{"role": err.Error()}))
			return
		}
		filter.Role = role
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Status = models.UserStatus(strings.ToLower(strings.TrimSpace(raw)))
		if !filter.Status.Valid() {
			respondWithAppError(w, r, apperr.ValidationFields("invalid status", map[string]string{"status": "must be active or inactive"}))
			return
		}
	}

	result, err := h.rosterService.ListUsers(r.Context(), identity, filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newListResponse(result, filter.Page))
}

// GetUser returns one account
// @Summary Get a user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.rosterService.GetUser(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// UpdateStatus activates or deactivates an account. Deactivation ends its sessions.
// @Summary Set user status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /admin/users/{id}/status [put]
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.rosterService.SetStatus(r.Context(), identity, id, req.Status)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// AssignPsychologist sets or clears the psychologist of a patient
// @Summary Assign a psychologist
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Patient ID"
// @Param request body AssignPsychologistRequest true "Psychologist, null to unassign"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /admin/users/{id}/psychologist [put]
func (h *UserHandler) AssignPsychologist(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AssignPsychologistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.rosterService.AssignPsychologist(r.Context(), identity, id, req.PsychologistID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// ListMyPatients returns the patients assigned to the calling psychologist
// @Summary List own patients
// @Tags Psychologist
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} ListResponse[models.User]
// @Router /psychologist/patients [get]
func (h *UserHandler) ListMyPatients(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	p := pagination.Parse(r, "last_name", "asc")
	result, err := h.rosterService.ListMyPatients(r.Context(), identity, p)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newListResponse(result, p))
}
