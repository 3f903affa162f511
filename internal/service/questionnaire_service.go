package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/repository"
	"sintonia/internal/vault"
)

// QuestionnaireService handles questionnaire compilation and access
type QuestionnaireService struct {
	questionnaires QuestionnaireStore
	requests       InvalidationStore
	users          UserStore
	sealer         vault.Sealer
	alerts         *AlertService
	audit          *AuditService
	now            func() time.Time
}

// NewQuestionnaireService creates a new questionnaire service
func NewQuestionnaireService(
	questionnaires QuestionnaireStore,
	requests InvalidationStore,
	users UserStore,
	sealer vault.Sealer,
	alerts *AlertService,
	audit *AuditService,
) *QuestionnaireService {
	return &QuestionnaireService{
		questionnaires: questionnaires,
		requests:       requests,
		users:          users,
		sealer:         sealer,
		alerts:         alerts,
		audit:          audit,
		now:            time.Now,
	}
}

// ListTypes returns the questionnaire templates patients can compile
func (s *QuestionnaireService) ListTypes(ctx context.Context) ([]models.QuestionnaireType, error) {
	return s.questionnaires.ListTypes(ctx)
}

// Compile stores a patient's answers, computes the score and raises an alert when needed
func (s *QuestionnaireService) Compile(ctx context.Context, actor models.Identity, typeName string, answers models.Answers) (*models.Questionnaire, error) {
	if err := requireRole(actor, models.RolePatient); err != nil {
		return nil, err
	}

	qt, err := s.questionnaires.GetType(ctx, typeName)
	if err != nil {
		return nil, notFoundAsValidation(err, "type_name", "unknown questionnaire type")
	}
	if err := checkSlots(qt, answers); err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	sealed, err := s.sealer.Seal(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to seal answers: %w", err)
	}

	q := &models.Questionnaire{
		PatientID:     actor.UserID,
		TypeName:      qt.Name,
		Answers:       answers,
		SealedAnswers: sealed,
		Score:         answers.Score(),
		CompiledAt:    s.now(),
	}
	if err := s.questionnaires.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to create questionnaire: %w", err)
	}

	s.audit.Log(ctx, actor.UserID, AuditQuestionnaireCompiled, "questionnaire",
		fmt.Sprintf("questionnaire_id=%d type=%s", q.ID, q.TypeName))

	patient, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		slog.Error("Failed to load patient for alert check", "patient_id", actor.UserID, "error", err)
		return q, nil
	}
	if _, err := s.alerts.RaiseForQuestionnaire(ctx, patient, q, qt); err != nil {
		slog.Error("Failed to raise alert", "questionnaire_id", q.ID, "error", err)
	}

	return q, nil
}

// checkSlots requires exactly the slots q1..qN of the type
func checkSlots(qt *models.QuestionnaireType, answers models.Answers) error {
	fields := make(map[string]string)
	expected := make(map[string]bool, qt.QuestionCount)
	for _, slot := range qt.Slots() {
		expected[slot] = true
		if _, ok := answers[slot]; !ok {
			fields[slot] = "is required"
		}
	}
	for slot := range answers {
		if !expected[slot] {
			fields[slot] = "is not a question of " + qt.Name
		}
	}
	if len(fields) > 0 {
		return apperr.ValidationFields("answers do not match the questionnaire", fields)
	}
	return nil
}

// Get returns a questionnaire with its answers if the actor may see it.
// Patients get NotFound for questionnaires of other patients.
func (s *QuestionnaireService) Get(ctx context.Context, actor models.Identity, id uint) (*models.Questionnaire, error) {
	q, err := s.questionnaires.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "questionnaire %d not found", id)
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RolePatient:
		if q.PatientID != actor.UserID {
			return nil, apperr.NotFound("questionnaire %d not found", id)
		}
	case models.RolePsychologist:
		ok, err := s.psychologistCanSee(ctx, actor.UserID, q)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("questionnaire %d belongs to a patient not assigned to you", id)
		}
	default:
		return nil, apperr.Forbidden("unknown role")
	}

	plaintext, err := s.sealer.Open(ctx, q.SealedAnswers)
	if err != nil {
		return nil, fmt.Errorf("failed to open answers: %w", err)
	}
	if err := json.Unmarshal(plaintext, &q.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return q, nil
}

func (s *QuestionnaireService) psychologistCanSee(ctx context.Context, psychologistID uint, q *models.Questionnaire) (bool, error) {
	if q.ReviewingPsychologistID != nil && *q.ReviewingPsychologistID == psychologistID {
		return true, nil
	}
	if q.RequestingPsychologistID != nil && *q.RequestingPsychologistID == psychologistID {
		return true, nil
	}

	patient, err := s.users.GetByID(ctx, q.PatientID)
	if err != nil {
		return false, notFoundAs(err, "questionnaire %d not found", q.ID)
	}
	if patient.PsychologistID != nil && *patient.PsychologistID == psychologistID {
		return true, nil
	}

	_, filed, err := s.requests.List(ctx, repository.InvalidationFilter{
		QuestionnaireID: &q.ID,
		PsychologistID:  &psychologistID,
		Limit:           1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check invalidation requests: %w", err)
	}
	return filed > 0, nil
}

// QuestionnaireListFilter narrows questionnaire listings
type QuestionnaireListFilter struct {
	PatientID   *uint
	TypeName    string
	Reviewed    *bool
	Invalidated *bool
	Page        pagination.Params
}

// List returns questionnaires without answers, scoped by role
func (s *QuestionnaireService) List(ctx context.Context, actor models.Identity, filter QuestionnaireListFilter) (models.ListResult[models.Questionnaire], error) {
	var empty models.ListResult[models.Questionnaire]

	limit, offset := pageArgs(filter.Page)
	repoFilter := repository.QuestionnaireFilter{
		PatientID:   filter.PatientID,
		TypeName:    filter.TypeName,
		Reviewed:    filter.Reviewed,
		Invalidated: filter.Invalidated,
		Limit:       limit,
		Offset:      offset,
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RolePatient:
		repoFilter.PatientID = &actor.UserID
	case models.RolePsychologist:
		if filter.PatientID != nil {
			patient, err := s.users.GetByID(ctx, *filter.PatientID)
			if err != nil {
				return empty, notFoundAs(err, "patient %d not found", *filter.PatientID)
			}
			if patient.PsychologistID == nil || *patient.PsychologistID != actor.UserID {
				return empty, apperr.Forbidden("patient %d is not assigned to you", *filter.PatientID)
			}
		}
		repoFilter.PsychologistID = &actor.UserID
	default:
		return empty, apperr.Forbidden("unknown role")
	}

	list, total, err := s.questionnaires.List(ctx, repoFilter)
	if err != nil {
		return empty, fmt.Errorf("failed to list questionnaires: %w", err)
	}
	return models.ListResult[models.Questionnaire]{Items: list, Total: total}, nil
}

// notFoundAsValidation reports a missing referenced row as a bad input field
func notFoundAsValidation(err error, field, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ValidationFields(message, map[string]string{field: message})
	}
	return err
}
