package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/repository"
	"sintonia/pkg/validator"
)

// DefaultForumCategory is used when a question has no category
const DefaultForumCategory = "general"

// ForumService handles anonymous patient questions and psychologist answers
type ForumService struct {
	forum ForumStore
	audit *AuditService
	now   func() time.Time
}

// NewForumService creates a new forum service
func NewForumService(forum ForumStore, audit *AuditService) *ForumService {
	return &ForumService{forum: forum, audit: audit, now: time.Now}
}

// AskQuestionRequest is the payload of a new forum question
type AskQuestionRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category" validate:"omitempty,max=50"`
}

// AskQuestion publishes a patient's question; the author is never exposed
func (s *ForumService) AskQuestion(ctx context.Context, actor models.Identity, req AskQuestionRequest) (*models.ForumQuestion, error) {
	if err := requireRole(actor, models.RolePatient); err != nil {
		return nil, err
	}
	if err := validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if err := validator.ValidateLength("title", req.Title, models.ForumTitleMinLength, models.ForumTitleMaxLength); err != nil {
		fields["title"] = err.Error()
	}
	if err := validator.ValidateLength("body", req.Body, models.ForumQuestionMinLength, models.ForumQuestionMaxLength); err != nil {
		fields["body"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("invalid forum question", fields)
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = DefaultForumCategory
	}

	q := &models.ForumQuestion{
		PatientID: actor.UserID,
		Title:     strings.TrimSpace(req.Title),
		Body:      strings.TrimSpace(req.Body),
		Category:  category,
		CreatedAt: s.now(),
	}
	if err := s.forum.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return q, nil
}

// ForumListFilter narrows forum question listings
type ForumListFilter struct {
	Category   string
	Unanswered bool
	Page       pagination.Params
}

// ListQuestions returns questions without answers, newest first
func (s *ForumService) ListQuestions(ctx context.Context, filter ForumListFilter) (models.ListResult[models.ForumQuestion], error) {
	limit, offset := pageArgs(filter.Page)
	questions, total, err := s.forum.ListQuestions(ctx, repository.ForumFilter{
		Category:   strings.ToLower(strings.TrimSpace(filter.Category)),
		Unanswered: filter.Unanswered,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return models.ListResult[models.ForumQuestion]{}, fmt.Errorf("failed to list questions: %w", err)
	}
	return models.ListResult[models.ForumQuestion]{Items: questions, Total: total}, nil
}

// GetQuestion returns a question with its answers
func (s *ForumService) GetQuestion(ctx context.Context, id uint) (*models.ForumQuestion, error) {
	q, err := s.forum.GetQuestion(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "question %d not found", id)
	}
	answers, err := s.forum.ListAnswers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	q.Answers = answers
	return q, nil
}

// DeleteQuestion removes a question and its answers, admin moderation only
func (s *ForumService) DeleteQuestion(ctx context.Context, actor models.Identity, id uint) error {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.forum.DeleteQuestion(ctx, id); err != nil {
		return notFoundAs(err, "question %d not found", id)
	}
	s.audit.Log(ctx, actor.UserID, AuditForumQuestionDeleted, "forum_question", fmt.Sprintf("question_id=%d", id))
	return nil
}

// AnswerQuestion adds the acting psychologist's answer to a question
func (s *ForumService) AnswerQuestion(ctx context.Context, actor models.Identity, questionID uint, text string) (*models.ForumAnswer, error) {
	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return nil, err
	}
	if err := validateAnswerText(text); err != nil {
		return nil, err
	}

	if _, err := s.forum.GetQuestion(ctx, questionID); err != nil {
		return nil, notFoundAs(err, "question %d not found", questionID)
	}

	a := &models.ForumAnswer{
		QuestionID:     questionID,
		PsychologistID: actor.UserID,
		Text:           strings.TrimSpace(text),
		CreatedAt:      s.now(),
	}
	if err := s.forum.CreateAnswer(ctx, a); err != nil {
		return nil, notFoundAs(err, "question %d not found", questionID)
	}

	// Reload for the author name
	created, err := s.forum.GetAnswer(ctx, a.ID)
	if err != nil {
		return a, nil
	}
	return created, nil
}

// EditAnswer replaces the text of an answer owned by the acting psychologist
func (s *ForumService) EditAnswer(ctx context.Context, actor models.Identity, answerID uint, text string) (*models.ForumAnswer, error) {
	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return nil, err
	}

	a, err := s.ownedAnswer(ctx, actor, answerID)
	if err != nil {
		return nil, err
	}
	if err := validateAnswerText(text); err != nil {
		return nil, err
	}

	at := s.now()
	text = strings.TrimSpace(text)
	err = s.forum.UpdateAnswer(ctx, answerID, actor.UserID, text, at)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, apperr.NotFound("answer %d not found", answerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update answer: %w", err)
	}

	a.Text = text
	a.UpdatedAt = at
	return a, nil
}

// DeleteAnswer removes an answer owned by the acting psychologist
func (s *ForumService) DeleteAnswer(ctx context.Context, actor models.Identity, answerID uint) error {
	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return err
	}
	if _, err := s.ownedAnswer(ctx, actor, answerID); err != nil {
		return err
	}

	err := s.forum.DeleteAnswer(ctx, answerID, actor.UserID)
	if errors.Is(err, repository.ErrStaleState) {
		return apperr.NotFound("answer %d not found", answerID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete answer: %w", err)
	}
	return nil
}

func (s *ForumService) ownedAnswer(ctx context.Context, actor models.Identity, answerID uint) (*models.ForumAnswer, error) {
	a, err := s.forum.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, notFoundAs(err, "answer %d not found", answerID)
	}
	if a.PsychologistID != actor.UserID {
		return nil, apperr.Forbidden("answer %d belongs to another psychologist", answerID)
	}
	return a, nil
}

func validateAnswerText(text string) error {
	if err := validator.ValidateLength("text", text, models.ForumAnswerMinLength, models.ForumAnswerMaxLength); err != nil {
		return apperr.ValidationFields(err.Error(), map[string]string{"text": err.Error()})
	}
	return nil
}
