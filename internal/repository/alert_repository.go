package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sintonia/internal/database"
	"sintonia/internal/models"
)

const alertConstraint = "alerts_one_per_questionnaire"

// AlertFilter narrows alert listings
type AlertFilter struct {
	PsychologistID *uint
	PatientID      *uint
	Status         models.AlertStatus
	Limit          int
	Offset         int
}

// AlertRepository handles alert database operations
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts an open alert. A questionnaire raises at most one alert;
// a second insert for the same questionnaire returns ErrDuplicateAlert.
func (r *AlertRepository) Create(ctx context.Context, a *models.Alert) error {
	query := `
		INSERT INTO alerts (patient_id, psychologist_id, questionnaire_id, type_name, score, threshold, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'open', $7)
		RETURNING id
	`
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		a.PatientID,
		a.PsychologistID,
		a.QuestionnaireID,
		a.TypeName,
		a.Score,
		a.Threshold,
		a.CreatedAt,
	).Scan(&a.ID)
	if database.IsUniqueViolation(err, alertConstraint) {
		return ErrDuplicateAlert
	}
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	a.Status = models.AlertStatusOpen
	return nil
}

const alertSelect = `
	SELECT a.id, a.patient_id, TRIM(u.first_name || ' ' || u.last_name), a.psychologist_id, a.questionnaire_id,
	       a.type_name, a.score, a.threshold, a.status, a.created_at, a.acknowledged_at
	FROM alerts a
	JOIN users u ON u.id = a.patient_id`

// GetByID retrieves an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id uint) (*models.Alert, error) {
	return scanAlert(r.db.QueryRowContext(ctx, alertSelect+` WHERE a.id = $1`, id))
}

// List returns alerts, newest first, plus the total count
func (r *AlertRepository) List(ctx context.Context, filter AlertFilter) ([]models.Alert, int, error) {
	var w whereBuilder
	if filter.PsychologistID != nil {
		w.add("a.psychologist_id = ?", *filter.PsychologistID)
	}
	if filter.PatientID != nil {
		w.add("a.patient_id = ?", *filter.PatientID)
	}
	if filter.Status != "" {
		w.add("a.status = ?", string(filter.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts a`+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	paging, args := w.page(filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, alertSelect+w.clause()+` ORDER BY a.created_at DESC, a.id DESC`+paging, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, total, rows.Err()
}

// Acknowledge moves an open alert to acknowledged; ErrStaleState if it is not open
func (r *AlertRepository) Acknowledge(ctx context.Context, id uint, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts
		SET status = 'acknowledged', acknowledged_at = $2
		WHERE id = $1 AND status = 'open'
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrStaleState
	}
	return nil
}

func scanAlert(s scanner) (*models.Alert, error) {
	var (
		a      models.Alert
		status string
		ackAt  sql.NullTime
	)
	err := s.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.PsychologistID,
		&a.QuestionnaireID,
		&a.TypeName,
		&a.Score,
		&a.Threshold,
		&status,
		&a.CreatedAt,
		&ackAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	a.Status = models.AlertStatus(status)
	a.AcknowledgedAt = timePtr(ackAt)
	return &a, nil
}
