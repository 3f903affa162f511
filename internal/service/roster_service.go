package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sintonia/internal/apperr"
	"sintonia/internal/auth"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/repository"
	"sintonia/pkg/validator"
)

// RosterService lets admins manage patient and psychologist accounts
type RosterService struct {
	users    UserStore
	sessions SessionStore
	authSvc  *auth.Service
	audit    *AuditService
}

// NewRosterService creates a new roster service
func NewRosterService(users UserStore, sessions SessionStore, authSvc *auth.Service, audit *AuditService) *RosterService {
	return &RosterService{users: users, sessions: sessions, authSvc: authSvc, audit: audit}
}

// CreateUserRequest is the payload for creating a patient or psychologist
type CreateUserRequest struct {
	Email          string      `json:"email" validate:"required,email,max=255"`
	Password       string      `json:"password" validate:"required,min=8,max=128"`
	FirstName      string      `json:"first_name" validate:"required,notblank,max=100"`
	LastName       string      `json:"last_name" validate:"required,notblank,max=100"`
	Phone          *string     `json:"phone,omitempty" validate:"omitempty,max=30"`
	TaxCode        *string     `json:"tax_code,omitempty" validate:"omitempty,len=16"`
	Role           models.Role `json:"role" validate:"required,oneof=patient psychologist"`
	PsychologistID *uint       `json:"psychologist_id,omitempty"`
}

// CreateUser creates an active patient or psychologist account
func (s *RosterService) CreateUser(ctx context.Context, actor models.Identity, req CreateUserRequest) (*models.User, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	req.Email = validator.SanitizeEmail(req.Email)
	if err := validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Role != models.RolePatient && req.PsychologistID != nil {
		return nil, apperr.ValidationFields("only patients have a psychologist", map[string]string{
			"psychologist_id": "is only allowed for patients",
		})
	}
	if req.Role != models.RolePatient && req.TaxCode != nil {
		return nil, apperr.ValidationFields("only patients have a tax code", map[string]string{
			"tax_code": "is only allowed for patients",
		})
	}
	if req.PsychologistID != nil {
		if err := s.requireActivePsychologist(ctx, *req.PsychologistID); err != nil {
			return nil, err
		}
	}

	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:          req.Email,
		PasswordHash:   hash,
		FirstName:      validator.SanitizeString(req.FirstName),
		LastName:       validator.SanitizeString(req.LastName),
		Phone:          req.Phone,
		TaxCode:        req.TaxCode,
		Role:           req.Role,
		Status:         models.UserStatusActive,
		PsychologistID: req.PsychologistID,
	}
	if req.TaxCode != nil {
		taxCode := strings.ToUpper(*req.TaxCode)
		user.TaxCode = &taxCode
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, apperr.Conflict("email %s is already registered", req.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.Log(ctx, actor.UserID, AuditUserCreated, "user", fmt.Sprintf("user_id=%d role=%s", user.ID, user.Role))
	return user, nil
}

// UserListFilter narrows roster listings
type UserListFilter struct {
	Role   models.Role
	Status models.UserStatus
	Search string
	Page   pagination.Params
}

// ListUsers returns accounts of any role, admin only
func (s *RosterService) ListUsers(ctx context.Context, actor models.Identity, filter UserListFilter) (models.ListResult[models.User], error) {
	var empty models.ListResult[models.User]
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return empty, err
	}

	repoFilter := repository.UserFilters{
		Search:    validator.SanitizeString(filter.Search),
		Status:    filter.Status,
		SortBy:    filter.Page.SortBy,
		SortOrder: filter.Page.SortOrder,
	}
	repoFilter.Limit, repoFilter.Offset = pageArgs(filter.Page)

	if filter.Role != "" {
		if !filter.Role.Valid() {
			return empty, apperr.ValidationFields("invalid role filter", map[string]string{
				"role": "must be one of: patient psychologist admin",
			})
		}
		repoFilter.Roles = []models.Role{filter.Role}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return empty, apperr.ValidationFields("invalid status filter", map[string]string{
			"status": "must be one of: active inactive",
		})
	}

	users, total, err := s.users.List(ctx, repoFilter)
	if err != nil {
		return empty, fmt.Errorf("failed to list users: %w", err)
	}
	return models.ListResult[models.User]{Items: users, Total: total}, nil
}

// GetUser returns one account, admin only
func (s *RosterService) GetUser(ctx context.Context, actor models.Identity, id uint) (*models.User, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "user %d not found", id)
	}
	return user, nil
}

// SetStatus activates or deactivates an account; deactivation revokes its sessions
func (s *RosterService) SetStatus(ctx context.Context, actor models.Identity, id uint, status models.UserStatus) (*models.User, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.ValidationFields("invalid status", map[string]string{
			"status": "must be one of: active inactive",
		})
	}
	if id == actor.UserID && status == models.UserStatusInactive {
		return nil, apperr.InvalidState("admins cannot deactivate their own account")
	}

	if err := s.users.UpdateStatus(ctx, id, status); err != nil {
		return nil, notFoundAs(err, "user %d not found", id)
	}

	if status == models.UserStatusInactive {
		if err := s.sessions.DeleteAllUserSessions(ctx, id); err != nil {
			slog.Error("Failed to revoke sessions of deactivated user", "user_id", id, "error", err)
		}
	}

	s.audit.Log(ctx, actor.UserID, AuditUserStatusChanged, "user", fmt.Sprintf("user_id=%d status=%s", id, status))

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "user %d not found", id)
	}
	return user, nil
}

// AssignPsychologist sets or clears (nil) the psychologist of a patient
func (s *RosterService) AssignPsychologist(ctx context.Context, actor models.Identity, patientID uint, psychologistID *uint) (*models.User, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	patient, err := s.users.GetByID(ctx, patientID)
	if err != nil {
		return nil, notFoundAs(err, "user %d not found", patientID)
	}
	if patient.Role != models.RolePatient {
		return nil, apperr.ValidationFields("only patients can be assigned a psychologist", map[string]string{
			"patient_id": "is not a patient",
		})
	}
	if psychologistID != nil {
		if err := s.requireActivePsychologist(ctx, *psychologistID); err != nil {
			return nil, err
		}
	}

	err = s.users.SetPsychologist(ctx, patientID, psychologistID)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, apperr.InvalidState("user %d is no longer a patient", patientID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign psychologist: %w", err)
	}

	details := fmt.Sprintf("patient_id=%d psychologist_id=none", patientID)
	if psychologistID != nil {
		details = fmt.Sprintf("patient_id=%d psychologist_id=%d", patientID, *psychologistID)
	}
	s.audit.Log(ctx, actor.UserID, AuditPsychologistAssigned, "user", details)

	patient.PsychologistID = psychologistID
	return patient, nil
}

// ListMyPatients returns the patients assigned to the acting psychologist
func (s *RosterService) ListMyPatients(ctx context.Context, actor models.Identity, page pagination.Params) (models.ListResult[models.User], error) {
	var empty models.ListResult[models.User]
	if err := requireRole(actor, models.RolePsychologist); err != nil {
		return empty, err
	}

	filter := repository.UserFilters{
		Roles:          []models.Role{models.RolePatient},
		PsychologistID: &actor.UserID,
		SortBy:         page.SortBy,
		SortOrder:      page.SortOrder,
	}
	filter.Limit, filter.Offset = pageArgs(page)

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return empty, fmt.Errorf("failed to list patients: %w", err)
	}
	return models.ListResult[models.User]{Items: users, Total: total}, nil
}

func (s *RosterService) requireActivePsychologist(ctx context.Context, id uint) error {
	psychologist, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ValidationFields("psychologist not found", map[string]string{
			"psychologist_id": "does not exist",
		})
	}
	if err != nil {
		return err
	}
	if psychologist.Role != models.RolePsychologist || !psychologist.IsActive() {
		return apperr.ValidationFields("not an active psychologist", map[string]string{
			"psychologist_id": "must be an active psychologist",
		})
	}
	return nil
}
