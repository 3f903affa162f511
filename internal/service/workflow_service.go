package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/repository"
)

// MaxInvalidationNotesLength bounds request notes, counted in characters
const MaxInvalidationNotesLength = 2000

// WorkflowService enforces the questionnaire review and invalidation state machine.
// Every transition is a conditional update in the store; when it matches nothing
// the current row is re-read to tell NotFound from InvalidState.
type WorkflowService struct {
	questionnaires QuestionnaireStore
	requests       InvalidationStore
	users          UserStore
	audit          *AuditService
	notifier       Notifier
	dispatch       Dispatch
	now            func() time.Time
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(
	questionnaires QuestionnaireStore,
	requests InvalidationStore,
	users UserStore,
	audit *AuditService,
	notifier Notifier,
	dispatch Dispatch,
) *WorkflowService {
	return &WorkflowService{
		questionnaires: questionnaires,
		requests:       requests,
		users:          users,
		audit:          audit,
		notifier:       notifier,
		dispatch:       dispatch,
		now:            time.Now,
	}
}

// ReviewQuestionnaire marks a questionnaire as reviewed by the acting psychologist.
// Reviewing again records the new reviewer.
func (s *WorkflowService) ReviewQuestionnaire(ctx context.Context, actor models.Identity, questionnaireID uint) (q *models.Questionnaire, err error) {
	ctx, span := startSpan(ctx, "workflow.ReviewQuestionnaire", attribute.Int64("questionnaire.id", int64(questionnaireID)))
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return nil, err
	}

	q, err = s.questionnaires.MarkReviewed(ctx, questionnaireID, actor.UserID, s.now())
	if errors.Is(err, repository.ErrStaleState) {
		return nil, s.explainQuestionnaire(ctx, questionnaireID, "questionnaire %d has been invalidated and cannot be reviewed", questionnaireID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to review questionnaire: %w", err)
	}

	s.audit.Log(ctx, actor.UserID, AuditQuestionnaireReviewed, "questionnaire", fmt.Sprintf("questionnaire_id=%d", q.ID))
	s.notify(ctx, "questionnaire reviewed", func(ctx context.Context) error {
		patient, err := s.users.GetByID(ctx, q.PatientID)
		if err != nil {
			return err
		}
		return s.notifier.QuestionnaireReviewed(ctx, patient, q)
	})

	return q, nil
}

// CancelRevision clears the review of a questionnaire, admin only
func (s *WorkflowService) CancelRevision(ctx context.Context, actor models.Identity, questionnaireID uint) (q *models.Questionnaire, err error) {
	ctx, span := startSpan(ctx, "workflow.CancelRevision", attribute.Int64("questionnaire.id", int64(questionnaireID)))
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	q, err = s.questionnaires.ClearReview(ctx, questionnaireID)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, s.explainQuestionnaire(ctx, questionnaireID, "questionnaire %d is not reviewed", questionnaireID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel revision: %w", err)
	}

	s.audit.Log(ctx, actor.UserID, AuditRevisionCancelled, "questionnaire", fmt.Sprintf("questionnaire_id=%d", q.ID))
	return q, nil
}

// RequestInvalidation files a pending invalidation request for a questionnaire
func (s *WorkflowService) RequestInvalidation(ctx context.Context, actor models.Identity, questionnaireID uint, notes string) (req *models.InvalidationRequest, err error) {
	ctx, span := startSpan(ctx, "workflow.RequestInvalidation", attribute.Int64("questionnaire.id", int64(questionnaireID)))
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return nil, err
	}

	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperr.ValidationFields("invalidation notes are required", map[string]string{"notes": "is required"})
	}
	if utf8.RuneCountInString(notes) > MaxInvalidationNotesLength {
		return nil, apperr.ValidationFields("invalidation notes are too long", map[string]string{
			"notes": fmt.Sprintf("must be at most %d characters", MaxInvalidationNotesLength),
		})
	}

	req = &models.InvalidationRequest{
		QuestionnaireID:          questionnaireID,
		RequestingPsychologistID: actor.UserID,
		Notes:                    notes,
		CreatedAt:                s.now(),
	}
	err = s.requests.Create(ctx, req)
	switch {
	case errors.Is(err, repository.ErrStaleState):
		return nil, s.explainQuestionnaire(ctx, questionnaireID, "questionnaire %d is already invalidated", questionnaireID)
	case errors.Is(err, repository.ErrDuplicatePending):
		return nil, apperr.Conflict("questionnaire %d already has a pending invalidation request", questionnaireID)
	case err != nil:
		return nil, fmt.Errorf("failed to create invalidation request: %w", err)
	}

	s.audit.Log(ctx, actor.UserID, AuditInvalidationRequested, "invalidation_request",
		fmt.Sprintf("request_id=%d questionnaire_id=%d", req.ID, questionnaireID))
	s.notify(ctx, "invalidation requested", func(ctx context.Context) error {
		admins, err := s.users.ListActiveByRole(ctx, models.RoleAdmin)
		if err != nil {
			return err
		}
		return s.notifier.InvalidationRequested(ctx, admins, req)
	})

	return req, nil
}

// AcceptInvalidation approves a pending request and invalidates its questionnaire atomically
func (s *WorkflowService) AcceptInvalidation(ctx context.Context, actor models.Identity, requestID uint) (req *models.InvalidationRequest, q *models.Questionnaire, err error) {
	ctx, span := startSpan(ctx, "workflow.AcceptInvalidation", attribute.Int64("invalidation_request.id", int64(requestID)))
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, nil, err
	}

	req, q, err = s.requests.Accept(ctx, requestID, actor.UserID, s.now())
	if errors.Is(err, repository.ErrStaleState) {
		return nil, nil, s.explainRequest(ctx, requestID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to accept invalidation request: %w", err)
	}

	s.audit.Log(ctx, actor.UserID, AuditInvalidationAccepted, "invalidation_request",
		fmt.Sprintf("request_id=%d questionnaire_id=%d", req.ID, q.ID))
	s.notifyDecision(ctx, req)

	return req, q, nil
}

// RejectInvalidation closes a pending request; the questionnaire is unchanged
func (s *WorkflowService) RejectInvalidation(ctx context.Context, actor models.Identity, requestID uint) (req *models.InvalidationRequest, err error) {
	ctx, span := startSpan(ctx, "workflow.RejectInvalidation", attribute.Int64("invalidation_request.id", int64(requestID)))
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	req, err = s.requests.Reject(ctx, requestID, actor.UserID, s.now())
	if errors.Is(err, repository.ErrStaleState) {
		return nil, s.explainRequest(ctx, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reject invalidation request: %w", err)
	}

	s.audit.Log(ctx, actor.UserID, AuditInvalidationRejected, "invalidation_request",
		fmt.Sprintf("request_id=%d questionnaire_id=%d", req.ID, req.QuestionnaireID))
	s.notifyDecision(ctx, req)

	return req, nil
}

// InvalidationListFilter narrows invalidation request listings
type InvalidationListFilter struct {
	Status          models.InvalidationStatus
	QuestionnaireID *uint
	Page            pagination.Params
}

// ListInvalidationRequests returns all requests to admins and own requests to psychologists
func (s *WorkflowService) ListInvalidationRequests(ctx context.Context, actor models.Identity, filter InvalidationListFilter) (models.ListResult[models.InvalidationRequest], error) {
	var empty models.ListResult[models.InvalidationRequest]
	if err := requireRole(actor, models.RoleAdmin, models.RolePsychologist); err != nil {
		return empty, err
	}

	switch filter.Status {
	case "", models.InvalidationPending, models.InvalidationApproved, models.InvalidationRejected:
	default:
		return empty, apperr.ValidationFields("invalid status filter", map[string]string{
			"status": "must be pending, approved or rejected",
		})
	}

	limit, offset := pageArgs(filter.Page)
	repoFilter := repository.InvalidationFilter{
		Status:          filter.Status,
		SortOrder:       filter.Page.SortOrder,
		QuestionnaireID: filter.QuestionnaireID,
		Limit:           limit,
		Offset:          offset,
	}
	if actor.IsPsychologist() {
		repoFilter.PsychologistID = &actor.UserID
	}

	list, total, err := s.requests.List(ctx, repoFilter)
	if err != nil {
		return empty, fmt.Errorf("failed to list invalidation requests: %w", err)
	}
	return models.ListResult[models.InvalidationRequest]{Items: list, Total: total}, nil
}

// GetInvalidationRequest returns one request to an admin or to the psychologist who filed it
func (s *WorkflowService) GetInvalidationRequest(ctx context.Context, actor models.Identity, requestID uint) (*models.InvalidationRequest, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RolePsychologist); err != nil {
		return nil, err
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, notFoundAs(err, "invalidation request %d not found", requestID)
	}
	if actor.IsPsychologist() && req.RequestingPsychologistID != actor.UserID {
		return nil, apperr.Forbidden("invalidation request %d belongs to another psychologist", requestID)
	}
	return req, nil
}

// explainQuestionnaire turns a failed conditional update into NotFound or InvalidState
func (s *WorkflowService) explainQuestionnaire(ctx context.Context, id uint, format string, args ...any) error {
	if _, err := s.questionnaires.GetByID(ctx, id); err != nil {
		return notFoundAs(err, "questionnaire %d not found", id)
	}
	return apperr.InvalidState(format, args...)
}

// explainRequest turns a failed accept/reject into NotFound or InvalidState
func (s *WorkflowService) explainRequest(ctx context.Context, id uint) error {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return notFoundAs(err, "invalidation request %d not found", id)
	}
	if req.Status.Terminal() {
		return apperr.InvalidState("invalidation request %d is already %s", id, req.Status)
	}
	// Still pending: the questionnaire was invalidated or removed meanwhile
	return apperr.InvalidState("questionnaire %d is already invalidated", req.QuestionnaireID)
}

func (s *WorkflowService) notifyDecision(ctx context.Context, req *models.InvalidationRequest) {
	s.notify(ctx, "invalidation decided", func(ctx context.Context) error {
		psychologist, err := s.users.GetByID(ctx, req.RequestingPsychologistID)
		if err != nil {
			return err
		}
		return s.notifier.InvalidationDecided(ctx, psychologist, req)
	})
}

// notify dispatches a notification detached from the request lifetime; failures are logged
func (s *WorkflowService) notify(ctx context.Context, what string, fn func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.dispatch(func() {
		if err := fn(ctx); err != nil {
			slog.Warn("Failed to send notification", "notification", what, "error", err)
		}
	})
}
