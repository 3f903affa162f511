package service

import (
	"context"
	"time"

	"sintonia/internal/models"
	"sintonia/internal/repository"
)

// The store interfaces below are satisfied by the postgres repositories and by
// the in-memory stores in internal/testutil.

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) error
	UpdateStatus(ctx context.Context, userID uint, status models.UserStatus) error
	UpdateLastLogin(ctx context.Context, userID uint) error
	SetPsychologist(ctx context.Context, patientID uint, psychologistID *uint) error
	List(ctx context.Context, filters repository.UserFilters) ([]models.User, int, error)
	ListActiveByRole(ctx context.Context, role models.Role) ([]models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetByJTI(ctx context.Context, jti string) (*models.Session, error)
	GetByUserID(ctx context.Context, userID uint) ([]models.Session, error)
	UpdateLastActivity(ctx context.Context, id string) error
	DeleteBySessionID(ctx context.Context, userID uint, sessionID string) error
	DeleteAllUserSessions(ctx context.Context, userID uint) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type AuditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLog, int, error)
}

type QuestionnaireStore interface {
	ListTypes(ctx context.Context) ([]models.QuestionnaireType, error)
	GetType(ctx context.Context, name string) (*models.QuestionnaireType, error)
	Create(ctx context.Context, q *models.Questionnaire) error
	GetByID(ctx context.Context, id uint) (*models.Questionnaire, error)
	List(ctx context.Context, filter repository.QuestionnaireFilter) ([]models.Questionnaire, int, error)
	MarkReviewed(ctx context.Context, id, psychologistID uint, at time.Time) (*models.Questionnaire, error)
	ClearReview(ctx context.Context, id uint) (*models.Questionnaire, error)
}

type InvalidationStore interface {
	Create(ctx context.Context, req *models.InvalidationRequest) error
	GetByID(ctx context.Context, id uint) (*models.InvalidationRequest, error)
	List(ctx context.Context, filter repository.InvalidationFilter) ([]models.InvalidationRequest, int, error)
	Accept(ctx context.Context, id, adminID uint, at time.Time) (*models.InvalidationRequest, *models.Questionnaire, error)
	Reject(ctx context.Context, id, adminID uint, at time.Time) (*models.InvalidationRequest, error)
}

type ForumStore interface {
	CreateQuestion(ctx context.Context, q *models.ForumQuestion) error
	GetQuestion(ctx context.Context, id uint) (*models.ForumQuestion, error)
	ListQuestions(ctx context.Context, filter repository.ForumFilter) ([]models.ForumQuestion, int, error)
	DeleteQuestion(ctx context.Context, id uint) error
	CreateAnswer(ctx context.Context, a *models.ForumAnswer) error
	GetAnswer(ctx context.Context, id uint) (*models.ForumAnswer, error)
	ListAnswers(ctx context.Context, questionID uint) ([]models.ForumAnswer, error)
	UpdateAnswer(ctx context.Context, id, psychologistID uint, text string, at time.Time) error
	DeleteAnswer(ctx context.Context, id, psychologistID uint) error
}

type AlertStore interface {
	Create(ctx context.Context, a *models.Alert) error
	GetByID(ctx context.Context, id uint) (*models.Alert, error)
	List(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, int, error)
	Acknowledge(ctx context.Context, id uint, at time.Time) error
}

// Notifier delivers workflow notifications; implemented by email.Service
type Notifier interface {
	QuestionnaireReviewed(ctx context.Context, patient *models.User, q *models.Questionnaire) error
	InvalidationRequested(ctx context.Context, admins []models.User, req *models.InvalidationRequest) error
	InvalidationDecided(ctx context.Context, psychologist *models.User, req *models.InvalidationRequest) error
	AlertRaised(ctx context.Context, psychologist *models.User, alert *models.Alert) error
	PendingInvalidationDigest(ctx context.Context, admin *models.User, requests []models.InvalidationRequest) error
	OpenAlertDigest(ctx context.Context, psychologist *models.User, alerts []models.Alert) error
}
