package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/repository"
)

// AlertService routes high questionnaire scores to the patient's psychologist
type AlertService struct {
	alerts   AlertStore
	users    UserStore
	audit    *AuditService
	notifier Notifier
	dispatch Dispatch
	now      func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(alerts AlertStore, users UserStore, audit *AuditService, notifier Notifier, dispatch Dispatch) *AlertService {
	return &AlertService{
		alerts:   alerts,
		users:    users,
		audit:    audit,
		notifier: notifier,
		dispatch: dispatch,
		now:      time.Now,
	}
}

// RaiseForQuestionnaire opens an alert when the score reaches the type's threshold
// and the patient has an assigned psychologist. Returns nil when no alert is due
// or the questionnaire already raised one.
func (s *AlertService) RaiseForQuestionnaire(ctx context.Context, patient *models.User, q *models.Questionnaire, qt *models.QuestionnaireType) (*models.Alert, error) {
	if qt.AlertThreshold == nil || q.Score == nil || *q.Score < *qt.AlertThreshold {
		return nil, nil
	}
	if patient.PsychologistID == nil {
		slog.Info("Alert threshold reached but patient has no psychologist",
			"questionnaire_id", q.ID, "patient_id", patient.ID)
		return nil, nil
	}

	alert := &models.Alert{
		PatientID:       patient.ID,
		PatientName:     patient.FullName(),
		PsychologistID:  *patient.PsychologistID,
		QuestionnaireID: q.ID,
		TypeName:        q.TypeName,
		Score:           *q.Score,
		Threshold:       *qt.AlertThreshold,
		Status:          models.AlertStatusOpen,
		CreatedAt:       s.now(),
	}
	err := s.alerts.Create(ctx, alert)
	if errors.Is(err, repository.ErrDuplicateAlert) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	slog.Info("Clinical alert raised",
		"alert_id", alert.ID, "questionnaire_id", q.ID, "psychologist_id", alert.PsychologistID)

	if s.notifier != nil {
		ctx := context.WithoutCancel(ctx)
		s.dispatch(func() {
			psychologist, err := s.users.GetByID(ctx, alert.PsychologistID)
			if err == nil {
				err = s.notifier.AlertRaised(ctx, psychologist, alert)
			}
			if err != nil {
				slog.Warn("Failed to send notification", "notification", "alert raised", "error", err)
			}
		})
	}

	return alert, nil
}

// AlertListFilter narrows alert listings
type AlertListFilter struct {
	Status models.AlertStatus
	Page   pagination.Params
}

// List returns the alerts routed to the acting psychologist
func (s *AlertService) List(ctx context.Context, actor models.Identity, filter AlertListFilter) (models.ListResult[models.Alert], error) {
	var empty models.ListResult[models.Alert]
	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return empty, err
	}
	switch filter.Status {
	case "", models.AlertStatusOpen, models.AlertStatusAcknowledged:
	default:
		return empty, apperr.ValidationFields("invalid status filter", map[string]string{
			"status": "must be one of: open acknowledged",
		})
	}

	limit, offset := pageArgs(filter.Page)
	alerts, total, err := s.alerts.List(ctx, repository.AlertFilter{
		PsychologistID: &actor.UserID,
		Status:         filter.Status,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return empty, fmt.Errorf("failed to list alerts: %w", err)
	}
	return models.ListResult[models.Alert]{Items: alerts, Total: total}, nil
}

// Acknowledge moves an open alert to acknowledged
func (s *AlertService) Acknowledge(ctx context.Context, actor models.Identity, alertID uint) (*models.Alert, error) {
	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return nil, err
	}

	alert, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, notFoundAs(err, "alert %d not found", alertID)
	}
	if alert.PsychologistID != actor.UserID {
		return nil, apperr.Forbidden("alert %d is routed to another psychologist", alertID)
	}

	at := s.now()
	err = s.alerts.Acknowledge(ctx, alertID, at)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, apperr.InvalidState("alert %d is already acknowledged", alertID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedAt = &at
	s.audit.Log(ctx, actor.UserID, AuditAlertAcknowledged, "alert", fmt.Sprintf("alert_id=%d", alertID))
	return alert, nil
}
