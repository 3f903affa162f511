package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sintonia/internal/database"
	"sintonia/internal/models"
)

const emailConstraint = "users_email_key"

const userColumns = `u.id, u.email, u.password_hash, u.first_name, u.last_name, u.phone, u.tax_code,
	u.role, u.status, u.psychologist_id, u.last_login_at, u.created_at, u.updated_at`

// UserFilters holds filter and sorting options for user listings
type UserFilters struct {
	Search         string
	Roles          []models.Role
	Status         models.UserStatus
	PsychologistID *uint
	SortBy         string
	SortOrder      string
	Limit          int
	Offset         int
}

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, phone, tax_code, role, status, psychologist_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.TaxCode,
		string(user.Role),
		string(user.Status),
		user.PsychologistID,
		now,
		now,
	).Scan(&user.ID)
	if database.IsUniqueViolation(err, emailConstraint) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE LOWER(u.email) = LOWER($1)`, email)
	return scanUser(row)
}

// UpdateProfile updates the self-editable fields of a user
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, phone = $4, updated_at = $5
		WHERE id = $6
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		now,
		user.ID,
	)
	if database.IsUniqueViolation(err, emailConstraint) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	user.UpdatedAt = now
	return nil
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireRow(result)
}

// UpdateStatus activates or deactivates a user
func (r *UserRepository) UpdateStatus(ctx context.Context, userID uint, status models.UserStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	return requireRow(result)
}

// UpdateLastLogin records a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uint) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SetPsychologist assigns (or clears, with nil) the psychologist of a patient.
// ErrStaleState if the user is not a patient.
func (r *UserRepository) SetPsychologist(ctx context.Context, patientID uint, psychologistID *uint) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET psychologist_id = $1, updated_at = $2
		WHERE id = $3 AND role = 'patient'
	`, psychologistID, time.Now(), patientID)
	if err != nil {
		return fmt.Errorf("failed to assign psychologist: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrStaleState
	}
	return nil
}

// List retrieves users with filtering, sorting and pagination plus the total count
func (r *UserRepository) List(ctx context.Context, filters UserFilters) ([]models.User, int, error) {
	var w whereBuilder
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		w.add("(u.email ILIKE ? OR u.first_name ILIKE ? OR u.last_name ILIKE ?)", pattern, pattern, pattern)
	}
	if len(filters.Roles) > 0 {
		roles := make([]string, len(filters.Roles))
		for i, role := range filters.Roles {
			roles[i] = string(role)
		}
		w.add("u.role = ANY(?)", pq.Array(roles))
	}
	if filters.Status != "" {
		w.add("u.status = ?", string(filters.Status))
	}
	if filters.PsychologistID != nil {
		w.add("u.psychologist_id = ?", *filters.PsychologistID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u`+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	sortColumn := "u.created_at"
	switch filters.SortBy {
	case "id":
		sortColumn = "u.id"
	case "email":
		sortColumn = "u.email"
	case "name":
		sortColumn = "u.last_name"
	case "last_login_at":
		sortColumn = "u.last_login_at"
	}
	sortOrder := "DESC"
	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	paging, args := w.page(filters.Limit, filters.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users u%s ORDER BY %s %s, u.id%s`, userColumns, w.clause(), sortColumn, sortOrder, paging)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// ListActiveByRole returns all active users with the given role
func (r *UserRepository) ListActiveByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	users, _, err := r.List(ctx, UserFilters{
		Roles:     []models.Role{role},
		Status:    models.UserStatusActive,
		SortBy:    "id",
		SortOrder: "asc",
	})
	return users, err
}

// CountByRole counts users with the given role, any status
func (r *UserRepository) CountByRole(ctx context.Context, role models.Role) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func scanUser(s scanner) (*models.User, error) {
	var (
		user         models.User
		role, status string
		phone, tax   sql.NullString
		psychologist sql.NullInt64
		lastLogin    sql.NullTime
	)
	err := s.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&phone,
		&tax,
		&role,
		&status,
		&psychologist,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Role = models.Role(role)
	user.Status = models.UserStatus(status)
	user.Phone = stringPtr(phone)
	user.TaxCode = stringPtr(tax)
	user.PsychologistID = uintPtr(psychologist)
	user.LastLoginAt = timePtr(lastLogin)
	return &user, nil
}

// requireRow returns ErrNotFound when an UPDATE or DELETE matched nothing
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
