package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sintonia/internal/models"
)

// AuditFilter narrows audit log listings
type AuditFilter struct {
	UserID   *uint
	Action   string
	Resource string
	Limit    int
	Offset   int
}

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (user_id, action, resource, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		log.UserID,
		log.Action,
		log.Resource,
		log.Details,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// List retrieves audit logs, newest first, with the acting user's email
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int, error) {
	var w whereBuilder
	if filter.UserID != nil {
		w.add("a.user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		w.add("a.action = ?", filter.Action)
	}
	if filter.Resource != "" {
		w.add("a.resource = ?", filter.Resource)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs a`+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	paging, args := w.page(filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, u.email, a.action, a.resource, a.details, a.ip_address, a.user_agent, a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id`+w.clause()+`
		ORDER BY a.created_at DESC, a.id DESC`+paging,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			log    models.AuditLog
			userID sql.NullInt64
			email  sql.NullString
		)
		if err := rows.Scan(
			&log.ID,
			&userID,
			&email,
			&log.Action,
			&log.Resource,
			&log.Details,
			&log.IPAddress,
			&log.UserAgent,
			&log.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.UserID = uintPtr(userID)
		log.UserEmail = stringPtr(email)
		logs = append(logs, log)
	}

	return logs, total, rows.Err()
}
