package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sintonia/internal/models"
)

const questionnaireColumns = `q.id, q.patient_id, q.type_name, q.answers, q.score, q.compiled_at,
	q.reviewed, q.reviewing_psychologist_id, q.reviewed_at,
	q.invalidated, q.invalidation_notes, q.invalidated_at,
	q.requesting_psychologist_id, q.confirming_admin_id`

// QuestionnaireFilter narrows questionnaire listings
type QuestionnaireFilter struct {
	PatientID      *uint
	PsychologistID *uint // patients assigned to this psychologist
	TypeName       string
	Reviewed       *bool
	Invalidated    *bool
	Limit          int
	Offset         int
}

// QuestionnaireRepository handles questionnaire database operations
type QuestionnaireRepository struct {
	db *sql.DB
}

// NewQuestionnaireRepository creates a new questionnaire repository
func NewQuestionnaireRepository(db *sql.DB) *QuestionnaireRepository {
	return &QuestionnaireRepository{db: db}
}

// ListTypes returns all questionnaire templates
func (r *QuestionnaireRepository) ListTypes(ctx context.Context) ([]models.QuestionnaireType, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, title, description, question_count, alert_threshold
		FROM questionnaire_types
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list questionnaire types: %w", err)
	}
	defer rows.Close()

	var types []models.QuestionnaireType
	for rows.Next() {
		qt, err := scanQuestionnaireType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *qt)
	}
	return types, rows.Err()
}

// GetType returns a questionnaire template by name
func (r *QuestionnaireRepository) GetType(ctx context.Context, name string) (*models.QuestionnaireType, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, title, description, question_count, alert_threshold
		FROM questionnaire_types
		WHERE name = $1
	`, name)
	return scanQuestionnaireType(row)
}

func scanQuestionnaireType(s scanner) (*models.QuestionnaireType, error) {
	var (
		qt        models.QuestionnaireType
		threshold sql.NullFloat64
	)
	err := s.Scan(&qt.Name, &qt.Title, &qt.Description, &qt.QuestionCount, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan questionnaire type: %w", err)
	}
	qt.AlertThreshold = floatPtr(threshold)
	return &qt, nil
}

// Create inserts a freshly compiled questionnaire
func (r *QuestionnaireRepository) Create(ctx context.Context, q *models.Questionnaire) error {
	query := `
		INSERT INTO questionnaires (patient_id, type_name, answers, score, compiled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if q.CompiledAt.IsZero() {
		q.CompiledAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		q.PatientID,
		q.TypeName,
		q.SealedAnswers,
		q.Score,
		q.CompiledAt,
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to create questionnaire: %w", err)
	}

	return nil
}

// GetByID retrieves a questionnaire by ID
func (r *QuestionnaireRepository) GetByID(ctx context.Context, id uint) (*models.Questionnaire, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires q WHERE q.id = $1`, id)
	return scanQuestionnaire(row)
}

// List returns questionnaires matching the filter, newest first, plus the total count
func (r *QuestionnaireRepository) List(ctx context.Context, filter QuestionnaireFilter) ([]models.Questionnaire, int, error) {
	var w whereBuilder
	from := ` FROM questionnaires q`
	if filter.PsychologistID != nil {
		from += ` JOIN users u ON u.id = q.patient_id`
		w.add("u.psychologist_id = ?", *filter.PsychologistID)
	}
	if filter.PatientID != nil {
		w.add("q.patient_id = ?", *filter.PatientID)
	}
	if filter.TypeName != "" {
		w.add("q.type_name = ?", filter.TypeName)
	}
	if filter.Reviewed != nil {
		w.add("q.reviewed = ?", *filter.Reviewed)
	}
	if filter.Invalidated != nil {
		w.add("q.invalidated = ?", *filter.Invalidated)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count questionnaires: %w", err)
	}

	paging, args := w.page(filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+questionnaireColumns+from+w.clause()+` ORDER BY q.compiled_at DESC, q.id DESC`+paging,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list questionnaires: %w", err)
	}
	defer rows.Close()

	var list []models.Questionnaire
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *q)
	}
	return list, total, rows.Err()
}

// MarkReviewed sets the review flags unless the questionnaire has been invalidated
func (r *QuestionnaireRepository) MarkReviewed(ctx context.Context, id, psychologistID uint, at time.Time) (*models.Questionnaire, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE questionnaires q
		SET reviewed = TRUE, reviewing_psychologist_id = $2, reviewed_at = $3
		WHERE q.id = $1 AND q.invalidated = FALSE
		RETURNING `+questionnaireColumns,
		id, psychologistID, at,
	)
	return staleOnMissing(scanQuestionnaire(row))
}

// ClearReview reverts a review, only if the questionnaire is currently reviewed
func (r *QuestionnaireRepository) ClearReview(ctx context.Context, id uint) (*models.Questionnaire, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE questionnaires q
		SET reviewed = FALSE, reviewing_psychologist_id = NULL, reviewed_at = NULL
		WHERE q.id = $1 AND q.reviewed = TRUE
		RETURNING `+questionnaireColumns,
		id,
	)
	return staleOnMissing(scanQuestionnaire(row))
}

// invalidateTx flips the invalidation flags inside an accept transaction
func invalidateTx(ctx context.Context, tx *sql.Tx, req *models.InvalidationRequest, adminID uint, at time.Time) (*models.Questionnaire, error) {
	row := tx.QueryRowContext(ctx, `
		UPDATE questionnaires q
		SET invalidated = TRUE,
			invalidated_at = $2,
			confirming_admin_id = $3,
			requesting_psychologist_id = $4,
			invalidation_notes = $5
		WHERE q.id = $1 AND q.invalidated = FALSE
		RETURNING `+questionnaireColumns,
		req.QuestionnaireID, at, adminID, req.RequestingPsychologistID, req.Notes,
	)
	return staleOnMissing(scanQuestionnaire(row))
}

func scanQuestionnaire(s scanner) (*models.Questionnaire, error) {
	var (
		q                          models.Questionnaire
		score                      sql.NullFloat64
		reviewer, requester, admin sql.NullInt64
		reviewedAt, invalidatedAt  sql.NullTime
		notes                      sql.NullString
	)
	err := s.Scan(
		&q.ID,
		&q.PatientID,
		&q.TypeName,
		&q.SealedAnswers,
		&score,
		&q.CompiledAt,
		&q.Reviewed,
		&reviewer,
		&reviewedAt,
		&q.Invalidated,
		&notes,
		&invalidatedAt,
		&requester,
		&admin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan questionnaire: %w", err)
	}

	q.Score = floatPtr(score)
	q.ReviewingPsychologistID = uintPtr(reviewer)
	q.ReviewedAt = timePtr(reviewedAt)
	q.InvalidationNotes = stringPtr(notes)
	q.InvalidatedAt = timePtr(invalidatedAt)
	q.RequestingPsychologistID = uintPtr(requester)
	q.ConfirmingAdminID = uintPtr(admin)
	return &q, nil
}

// staleOnMissing turns the no-row result of a conditional UPDATE into ErrStaleState
func staleOnMissing[T any](v *T, err error) (*T, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStaleState
	}
	return v, err
}
