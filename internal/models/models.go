package models

import (
	"time"
)

// User represents an account of any role
type User struct {
	ID             uint       `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	Phone          *string    `json:"phone,omitempty" db:"phone"`
	TaxCode        *string    `json:"tax_code,omitempty" db:"tax_code"`
	Role           Role       `json:"role" db:"role"`
	Status         UserStatus `json:"status" db:"status"`
	PsychologistID *uint      `json:"psychologist_id,omitempty" db:"psychologist_id"` // patients only
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last", falling back to the email
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// IsActive reports whether the account may log in
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// UserStatus is the canonical account status vocabulary
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// Valid reports whether s is a known status
func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusInactive
}

// Session represents one issued token (access or refresh) of a login
type Session struct {
	ID             string    `json:"id" db:"id"`
	UserID         uint      `json:"user_id" db:"user_id"`
	SessionID      string    `json:"session_id" db:"session_id"` // Groups access and refresh tokens from same login
	JTI            string    `json:"-" db:"jti"`
	TokenType      string    `json:"token_type" db:"token_type"` // "access" or "refresh"
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	IPAddress      string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string    `json:"user_agent,omitempty" db:"user_agent"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        uint      `json:"id" db:"id"`
	UserID    *uint     `json:"user_id,omitempty" db:"user_id"`
	UserEmail *string   `json:"user_email,omitempty" db:"user_email"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource" db:"resource"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Alert routes a high questionnaire score to the patient's psychologist
type Alert struct {
	ID              uint        `json:"id" db:"id"`
	PatientID       uint        `json:"patient_id" db:"patient_id"`
	PatientName     string      `json:"patient_name,omitempty" db:"-"`
	PsychologistID  uint        `json:"psychologist_id" db:"psychologist_id"`
	QuestionnaireID uint        `json:"questionnaire_id" db:"questionnaire_id"`
	TypeName        string      `json:"type_name" db:"type_name"`
	Score           float64     `json:"score" db:"score"`
	Threshold       float64     `json:"threshold" db:"threshold"`
	Status          AlertStatus `json:"status" db:"status"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	AcknowledgedAt  *time.Time  `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
}

type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
)

// ListResult is a page of items plus the total count matching the filter
type ListResult[T any] struct {
	Items []T
	Total int
}
