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

const pendingRequestConstraint = "invalidation_requests_one_pending"

const invalidationColumns = `id, questionnaire_id, requesting_psychologist_id, status, notes,
	created_at, decided_by_admin_id, decided_at`

// InvalidationFilter narrows invalidation request listings
type InvalidationFilter struct {
	Status          models.InvalidationStatus
	SortOrder       string // asc (default) or desc by created_at
	PsychologistID  *uint
	QuestionnaireID *uint
	CreatedBefore   *time.Time
	Limit           int
	Offset          int
}

// InvalidationRepository handles invalidation request database operations
type InvalidationRepository struct {
	db *sql.DB
}

// NewInvalidationRepository creates a new invalidation request repository
func NewInvalidationRepository(db *sql.DB) *InvalidationRepository {
	return &InvalidationRepository{db: db}
}

// Create inserts a pending request for a questionnaire that is not invalidated.
// The questionnaire row is share-locked so a concurrent accept cannot invalidate it
// underneath the insert. Returns ErrStaleState when the questionnaire is missing or
// invalidated and ErrDuplicatePending when another request is pending.
func (r *InvalidationRepository) Create(ctx context.Context, req *models.InvalidationRequest) error {
	query := `
		WITH target AS (
			SELECT id FROM questionnaires
			WHERE id = $1 AND invalidated = FALSE
			FOR SHARE
		)
		INSERT INTO invalidation_requests (questionnaire_id, requesting_psychologist_id, status, notes, created_at)
		SELECT target.id, $2, 'pending', $3, $4 FROM target
		RETURNING id
	`
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		req.QuestionnaireID,
		req.RequestingPsychologistID,
		req.Notes,
		req.CreatedAt,
	).Scan(&req.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStaleState
	}
	if database.IsUniqueViolation(err, pendingRequestConstraint) {
		return ErrDuplicatePending
	}
	if err != nil {
		return fmt.Errorf("failed to create invalidation request: %w", err)
	}

	req.Status = models.InvalidationPending
	return nil
}

// GetByID retrieves an invalidation request by ID
func (r *InvalidationRepository) GetByID(ctx context.Context, id uint) (*models.InvalidationRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invalidationColumns+` FROM invalidation_requests WHERE id = $1`, id)
	return scanInvalidation(row)
}

// List returns requests matching the filter, oldest first unless SortOrder is desc, plus the total count
func (r *InvalidationRepository) List(ctx context.Context, filter InvalidationFilter) ([]models.InvalidationRequest, int, error) {
	var w whereBuilder
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.PsychologistID != nil {
		w.add("requesting_psychologist_id = ?", *filter.PsychologistID)
	}
	if filter.QuestionnaireID != nil {
		w.add("questionnaire_id = ?", *filter.QuestionnaireID)
	}
	if filter.CreatedBefore != nil {
		w.add("created_at < ?", *filter.CreatedBefore)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invalidation_requests`+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invalidation requests: %w", err)
	}

	dir := "ASC"
	if filter.SortOrder == "desc" {
		dir = "DESC"
	}
	paging, args := w.page(filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invalidationColumns+` FROM invalidation_requests`+w.clause()+
			` ORDER BY created_at `+dir+`, id `+dir+paging,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invalidation requests: %w", err)
	}
	defer rows.Close()

	var list []models.InvalidationRequest
	for rows.Next() {
		req, err := scanInvalidation(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *req)
	}
	return list, total, rows.Err()
}

// Accept approves a pending request and invalidates its questionnaire in one transaction.
// Returns ErrStaleState if the request is no longer pending or the questionnaire is already invalidated.
func (r *InvalidationRepository) Accept(ctx context.Context, id, adminID uint, at time.Time) (*models.InvalidationRequest, *models.Questionnaire, error) {
	var (
		req *models.InvalidationRequest
		q   *models.Questionnaire
	)

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockQuestionnaireOf(ctx, tx, id); err != nil {
			return err
		}
		var err error
		req, err = decideTx(ctx, tx, id, models.InvalidationApproved, adminID, at)
		if err != nil {
			return err
		}
		q, err = invalidateTx(ctx, tx, req, adminID, at)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return req, q, nil
}

// Reject closes a pending request without touching its questionnaire
func (r *InvalidationRepository) Reject(ctx context.Context, id, adminID uint, at time.Time) (*models.InvalidationRequest, error) {
	var req *models.InvalidationRequest
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		req, err = decideTx(ctx, tx, id, models.InvalidationRejected, adminID, at)
		return err
	})
	return req, err
}

// lockQuestionnaireOf locks the request's questionnaire before the request row,
// the same order Create takes them in
func lockQuestionnaireOf(ctx context.Context, tx *sql.Tx, requestID uint) error {
	var questionnaireID uint
	err := tx.QueryRowContext(ctx, `
		SELECT q.id FROM questionnaires q
		JOIN invalidation_requests ir ON ir.questionnaire_id = q.id
		WHERE ir.id = $1
		FOR UPDATE OF q
	`, requestID).Scan(&questionnaireID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStaleState
	}
	if err != nil {
		return fmt.Errorf("failed to lock questionnaire: %w", err)
	}
	return nil
}

func decideTx(ctx context.Context, tx *sql.Tx, id uint, status models.InvalidationStatus, adminID uint, at time.Time) (*models.InvalidationRequest, error) {
	row := tx.QueryRowContext(ctx, `
		UPDATE invalidation_requests
		SET status = $2, decided_by_admin_id = $3, decided_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+invalidationColumns,
		id, string(status), adminID, at,
	)
	return staleOnMissing(scanInvalidation(row))
}

func scanInvalidation(s scanner) (*models.InvalidationRequest, error) {
	var (
		req       models.InvalidationRequest
		status    string
		admin     sql.NullInt64
		decidedAt sql.NullTime
	)
	err := s.Scan(
		&req.ID,
		&req.QuestionnaireID,
		&req.RequestingPsychologistID,
		&status,
		&req.Notes,
		&req.CreatedAt,
		&admin,
		&decidedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invalidation request: %w", err)
	}

	req.Status = models.InvalidationStatus(status)
	req.DecidedByAdminID = uintPtr(admin)
	req.DecidedAt = timePtr(decidedAt)
	return &req, nil
}
