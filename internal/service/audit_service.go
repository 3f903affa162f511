package service

import (
	"context"
	"log/slog"

	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/repository"
)

// Audit actions recorded by the services
const (
	AuditQuestionnaireCompiled = "questionnaire.compiled"
	AuditQuestionnaireReviewed = "questionnaire.reviewed"
	AuditRevisionCancelled     = "questionnaire.revision_cancelled"
	AuditInvalidationRequested = "invalidation.requested"
	AuditInvalidationAccepted  = "invalidation.accepted"
	AuditInvalidationRejected  = "invalidation.rejected"
	AuditForumQuestionDeleted  = "forum.question_deleted"
	AuditAlertAcknowledged     = "alert.acknowledged"
	AuditUserCreated           = "user.created"
	AuditUserStatusChanged     = "user.status_changed"
	AuditPsychologistAssigned  = "user.psychologist_assigned"
	AuditProfileUpdated        = "user.profile_updated"
	AuditPasswordChanged       = "user.password_changed"
	AuditLogin                 = "auth.login"
	AuditLogout                = "auth.logout"
)

// AuditService handles audit logging
type AuditService struct {
	auditRepo AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo AuditStore) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// Log creates an audit log entry, ignoring errors.
// Failures are logged and never fail the main operation.
func (s *AuditService) Log(ctx context.Context, userID uint, action, resource, details string) {
	entry := &models.AuditLog{
		UserID:   &userID,
		Action:   action,
		Resource: resource,
		Details:  details,
	}
	if meta, ok := RequestMetaFrom(ctx); ok {
		entry.IPAddress = meta.IPAddress
		entry.UserAgent = meta.UserAgent
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		slog.Error("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}

// AuditListFilter narrows the admin audit log view
type AuditListFilter struct {
	UserID   *uint
	Action   string
	Resource string
	Page     pagination.Params
}

// List returns audit entries, admin only
func (s *AuditService) List(ctx context.Context, actor models.Identity, filter AuditListFilter) (models.ListResult[models.AuditLog], error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.ListResult[models.AuditLog]{}, err
	}

	limit, offset := pageArgs(filter.Page)
	logs, total, err := s.auditRepo.List(ctx, repository.AuditFilter{
		UserID:   filter.UserID,
		Action:   filter.Action,
		Resource: filter.Resource,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return models.ListResult[models.AuditLog]{}, err
	}
	return models.ListResult[models.AuditLog]{Items: logs, Total: total}, nil
}

type requestMetaKey struct{}

// RequestMeta carries client details of the current request for audit entries
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches client details to ctx
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the client details attached by WithRequestMeta
func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}
