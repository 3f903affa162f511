package handlers

import (
	"net/http"
	"strings"

	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/service"
)

// QuestionnaireHandler serves questionnaire templates and compiled questionnaires
type QuestionnaireHandler struct {
	questionnaireService *service.QuestionnaireService
}

// NewQuestionnaireHandler creates a new questionnaire handler
func NewQuestionnaireHandler(questionnaireService *service.QuestionnaireService) *QuestionnaireHandler {
	return &QuestionnaireHandler{questionnaireService: questionnaireService}
}

// CompileRequest is a patient's submission of a questionnaire
type CompileRequest struct {
	TypeName string         `json:"type_name"`
	Answers  models.Answers `json:"answers"`
}

// ListTypes returns the questionnaire templates
// @Summary List questionnaire types
// @Tags Questionnaires
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.QuestionnaireType
// @Router /questionnaire-types [get]
func (h *QuestionnaireHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.questionnaireService.ListTypes(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if types == nil {
		types = []models.QuestionnaireType{}
	}
	respondWithJSON(w, http.StatusOK, types)
}

// Compile stores a compiled questionnaire for the calling patient
// @Summary Compile a questionnaire
// @Description Answers are sealed at rest. A score at or above the type's alert threshold raises an alert for the assigned psychologist.
// @Tags Questionnaires
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CompileRequest true "Type and answers"
// @Success 201 {object} models.Questionnaire
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Unknown type or missing answers"
// @Router /questionnaires [post]
func (h *QuestionnaireHandler) Compile(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	var req CompileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.questionnaireService.Compile(r.Context(), identity, strings.TrimSpace(req.TypeName), req.Answers)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, q)
}

// List returns questionnaires visible to the caller
// @Summary List questionnaires
// @Description Patients see their own, psychologists those of their patients, admins all. Answers are omitted.
// @Tags Questionnaires
// @Produce json
// @Security BearerAuth
// @Param patient_id query int false "Patient ID"
// @Param type query string false "Questionnaire type"
// @Param reviewed query bool false "Reviewed filter"
// @Param invalidated query bool false "Invalidated filter"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} ListResponse[models.Questionnaire]
// @Failure 422 {object} ErrorResponse
// @Router /questionnaires [get]
func (h *QuestionnaireHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	patientID, err := queryUint(r, "patient_id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	reviewed, err := queryBool(r, "reviewed")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	invalidated, err := queryBool(r, "invalidated")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	p := pagination.Parse(r, "compiled_at", "desc")
	result, err := h.questionnaireService.List(r.Context(), identity, service.QuestionnaireListFilter{
		PatientID:   patientID,
		TypeName:    strings.TrimSpace(r.URL.Query().Get("type")),
		Reviewed:    reviewed,
		Invalidated: invalidated,
		Page:        p,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newListResponse(result, p))
}

// Get returns one questionnaire with its answers
// @Summary Get a questionnaire
// @Tags Questionnaires
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} models.Questionnaire
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /questionnaires/{id} [get]
func (h *QuestionnaireHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	q, err := h.questionnaireService.Get(r.Context(), identity, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, q)
}
