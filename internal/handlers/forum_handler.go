package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"sintonia/internal/pagination"
	"sintonia/internal/service"
)

// ForumHandler serves the anonymous question and answer forum
type ForumHandler struct {
	forumService *service.ForumService
}

// NewForumHandler creates a new forum handler
func NewForumHandler(forumService *service.ForumService) *ForumHandler {
	return &ForumHandler{forumService: forumService}
}

// AnswerRequest is the text of a forum answer
type AnswerRequest struct {
	Text string `json:"text"`
}

// ListQuestions returns forum questions, newest first
// @Summary List forum questions
// @Tags Forum
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category"
// @Param unanswered query bool false "Only questions without answers"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} ListResponse[models.ForumQuestion]
// @Router /forum/questions [get]
func (h *ForumHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	unanswered, _ := strconv.ParseBool(r.URL.Query().Get("unanswered"))
	p := pagination.Parse(r, "created_at", "desc")

	result, err := h.forumService.ListQuestions(r.Context(), service.ForumListFilter{
		Category:   strings.TrimSpace(r.URL.Query().Get("category")),
		Unanswered: unanswered,
		Page:       p,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newListResponse(result, p))
}

// GetQuestion returns a question with its answers
// @Summary Get a forum question
// @Tags Forum
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 200 {object} models.ForumQuestion
// @Failure 404 {object} ErrorResponse
// @Router /forum/questions/{id} [get]
func (h *ForumHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	q, err := h.forumService.GetQuestion(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, q)
}

// AskQuestion publishes a patient question without exposing the author
// @Summary Ask a forum question
// @Tags Forum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.AskQuestionRequest true "Question"
// @Success 201 {object} models.ForumQuestion
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /forum/questions [post]
func (h *ForumHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}

	var req service.AskQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.forumService.AskQuestion(r.Context(), identity, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, q)
}

// DeleteQuestion removes a question and its answers
// @Summary Delete a forum question
// @Tags Forum
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /forum/questions/{id} [delete]
func (h *ForumHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.forumService.DeleteQuestion(r.Context(), identity, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnswerQuestion adds the calling psychologist's answer
// @Summary Answer a forum question
// @Tags Forum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body AnswerRequest true "Answer"
// @Success 201 {object} models.ForumAnswer
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already answered by this psychologist"
// @Failure 422 {object} ErrorResponse
// @Router /forum/questions/{id}/answers [post]
func (h *ForumHandler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := h.forumService.AnswerQuestion(r.Context(), identity, id, req.Text)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, answer)
}

// EditAnswer replaces the text of the caller's own answer
// @Summary Edit a forum answer
// @Tags Forum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Param request body AnswerRequest true "New text"
// @Success 200 {object} models.ForumAnswer
// @Failure 403 {object} ErrorResponse "Not the author"
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /forum/answers/{id} [put]
func (h *ForumHandler) EditAnswer(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := h.forumService.EditAnswer(r.Context(), identity, id, req.Text)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, answer)
}

// DeleteAnswer removes the caller's own answer
// @Summary Delete a forum answer
// @Tags Forum
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Success 204
// @Failure 403 {object} ErrorResponse "Not the author"
// @Failure 404 {object} ErrorResponse
// @Router /forum/answers/{id} [delete]
func (h *ForumHandler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	identity, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.forumService.DeleteAnswer(r.Context(), identity, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
