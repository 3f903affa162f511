package handlers

import (
	"net/http"
	"strings"

	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/service"
)

// WorkflowHandler serves the review and invalidation workflow
type WorkflowHandler struct {
	workflowService *service.WorkflowService
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflowService *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService}
}

// InvalidationNotesRequest carries the psychologist's reason for an invalidation
type InvalidationNotesRequest struct {
	Notes string `json:"notes"`
}

// InvalidationDecisionResponse is returned when an admin accepts a request
type InvalidationDecisionResponse struct {
	Request       *models.InvalidationRequest `json:"request"`
	Questionnaire *models.Questionnaire       `json:"questionnaire"`
}

// Review marks a questionnaire as reviewed by the calling psychologist
// @Summary Review a questionnaire
// @Description Allowed until the questionnaire is invalidated. Reviewing again records the new reviewer.
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} models.Questionnaire
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Invalidated"
// @Router /questionnaires/{id}/review [post]
func (h *WorkflowHandler) Review(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	q, err := h.workflowService.ReviewQuestionnaire(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, q)
}

// CancelRevision clears the review of a questionnaire
// @Summary Cancel a review
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} models.Questionnaire
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Not reviewed or invalidated"
// @Router /questionnaires/{id}/cancel-revision [post]
func (h *WorkflowHandler) CancelRevision(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	q, err := h.workflowService.CancelRevision(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, q)
}

// RequestInvalidation files an invalidation request for a questionnaire
// @Summary Request invalidation
// @Description At most one pending request per questionnaire. Admins are notified by email.
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Param request body InvalidationNotesRequest true "Reason"
// @Success 201 {object} models.InvalidationRequest
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already invalidated or pending"
// @Failure 422 {object} ErrorResponse "Notes missing"
// @Router /questionnaires/{id}/invalidation-requests [post]
func (h *WorkflowHandler) RequestInvalidation(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req InvalidationNotesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.workflowService.RequestInvalidation(r.Context(), identity, id, req.Notes)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// ListInvalidationRequests returns requests visible to the caller
// @Summary List invalidation requests
// @Description Admins see all requests, psychologists their own.
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param order query string false "asc (default, oldest first) or desc"
// @Param questionnaire_id query int false "Questionnaire ID"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} ListResponse[models.InvalidationRequest]
// @Failure 422 {object} ErrorResponse
// @Router /invalidation-requests [get]
func (h *WorkflowHandler) ListInvalidationRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	questionnaireID, err := queryUint(r, "questionnaire_id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	p := pagination.Parse(r, "created_at", "asc")
	result, err := h.workflowService.ListInvalidationRequests(r.Context(), identity, service.InvalidationListFilter{
		Status:          models.InvalidationStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		QuestionnaireID: questionnaireID,
		Page:            p,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newListResponse(result, p))
}

// GetInvalidationRequest returns one request
// @Summary Get an invalidation request
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.InvalidationRequest
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /invalidation-requests/{id} [get]
func (h *WorkflowHandler) GetInvalidationRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	req, err := h.workflowService.GetInvalidationRequest(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, req)
}

// AcceptInvalidation approves a pending request and invalidates its questionnaire
// @Summary Accept an invalidation request
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} InvalidationDecisionResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already decided"
// @Router /invalidation-requests/{id}/accept [post]
func (h *WorkflowHandler) AcceptInvalidation(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	req, q, err := h.workflowService.AcceptInvalidation(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, InvalidationDecisionResponse{Request: req, Questionnaire: q})
}

// RejectInvalidation rejects a pending request
// @Summary Reject an invalidation request
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.InvalidationRequest
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already decided"
// @Router /invalidation-requests/{id}/reject [post]
func (h *WorkflowHandler) RejectInvalidation(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	req, err := h.workflowService.RejectInvalidation(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, req)
}
