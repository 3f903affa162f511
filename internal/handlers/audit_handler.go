package handlers

import (
	"net/http"
	"strings"

	"sintonia/internal/pagination"
	"sintonia/internal/service"
)

// AuditHandler serves the audit trail to admins
type AuditHandler struct {
	auditService *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// List returns audit entries, newest first
// @Summary List audit logs
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param user_id query int false "Acting user"
// @Param action query string false "Action, e.g. questionnaire.review"
// @Param resource query string false "Resource, e.g. questionnaire"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} ListResponse[models.AuditLog]
// @Failure 403 {object} ErrorResponse
// @Router /admin/audit-logs [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	userID, err := queryUint(r, "user_id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	p := pagination.Parse(r, "created_at", "desc")
	result, err := h.auditService.List(r.Context(), identity, service.AuditListFilter{
		UserID:   userID,
		Action:   strings.TrimSpace(r.URL.Query().Get("action")),
		Resource: strings.TrimSpace(r.URL.Query().Get("resource")),
		Page:     p,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newListResponse(result, p))
}
