package handlers

import (
	"net/http"
	"strings"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/service"
)

// AlertHandler serves the clinical alerts of psychologists
type AlertHandler struct {
	alertService *service.AlertService
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertService *service.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// List returns the alerts routed to the calling psychologist
// @Summary List alerts
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param status query string false "open or acknowledged"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} ListResponse[models.Alert]
// @Failure 422 {object} ErrorResponse
// @Router /alerts [get]
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	status := models.AlertStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && status != models.AlertStatusOpen && status != models.AlertStatusAcknowledged {
		respondWithAppError(w, r, apperr.ValidationFields("invalid status", map[string]string{"status": "must be open or acknowledged"}))
		return
	}

	p := pagination.Parse(r, "created_at", "desc")
	result, err := h.alertService.List(r.Context(), identity, service.AlertListFilter{Status: status, Page: p})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newListResponse(result, p))
}

// Acknowledge marks an open alert as handled
// @Summary Acknowledge an alert
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Alert ID"
// @Success 200 {object} models.Alert
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already acknowledged"
// @Router /alerts/{id}/acknowledge [post]
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	alert, err := h.alertService.Acknowledge(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, alert)
}
