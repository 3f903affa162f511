package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sintonia/internal/apperr"
	"sintonia/internal/auth"
	"sintonia/internal/models"
	"sintonia/internal/repository"
	"sintonia/pkg/validator"
)

// ProfileService lets every user read and edit their own account
type ProfileService struct {
	users    UserStore
	sessions SessionStore
	authSvc  *auth.Service
	audit    *AuditService
}

// NewProfileService creates a new profile service
func NewProfileService(users UserStore, sessions SessionStore, authSvc *auth.Service, audit *AuditService) *ProfileService {
	return &ProfileService{users: users, sessions: sessions, authSvc: authSvc, audit: audit}
}

// UpdateProfileRequest holds the self-editable profile fields
type UpdateProfileRequest struct {
	Email     string  `json:"email"`
	FirstName string  `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string  `json:"last_name" validate:"required,notblank,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

// ChangePasswordRequest is the payload of a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Get returns the actor's own account
func (s *ProfileService) Get(ctx context.Context, actor models.Identity) (*models.User, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFoundAs(err, "user %d not found", actor.UserID)
	}
	return user, nil
}

// Update changes name, email and phone of the actor's account
func (s *ProfileService) Update(ctx context.Context, actor models.Identity, req UpdateProfileRequest) (*models.User, error) {
	if err := validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	email := validator.SanitizeEmail(req.Email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, apperr.ValidationFields(err.Error(), map[string]string{"email": err.Error()})
	}

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFoundAs(err, "user %d not found", actor.UserID)
	}

	user.Email = email
	user.FirstName = validator.SanitizeString(req.FirstName)
	user.LastName = validator.SanitizeString(req.LastName)
	user.Phone = req.Phone

	err = s.users.UpdateProfile(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, apperr.Conflict("email %s is already registered", email)
	}
	if err != nil {
		return nil, notFoundAs(err, "user %d not found", actor.UserID)
	}

	s.audit.Log(ctx, actor.UserID, AuditProfileUpdated, "user", fmt.Sprintf("user_id=%d", user.ID))
	return user, nil
}

// ChangePassword replaces the actor's password after checking the current one.
// Other sessions stay valid; the caller decides whether to revoke them.
func (s *ProfileService) ChangePassword(ctx context.Context, actor models.Identity, req ChangePasswordRequest) error {
	if err := validator.ValidateStruct(req); err != nil {
		return err
	}
	if err := validator.ValidatePassword(req.NewPassword); err != nil {
		return apperr.ValidationFields(err.Error(), map[string]string{"new_password": err.Error()})
	}

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return notFoundAs(err, "user %d not found", actor.UserID)
	}
	if err := s.authSvc.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperr.ValidationFields("current password is incorrect", map[string]string{
			"current_password": "is incorrect",
		})
	}

	hash, err := s.authSvc.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return notFoundAs(err, "user %d not found", actor.UserID)
	}

	slog.Info("Password changed", "user_id", user.ID)
	s.audit.Log(ctx, actor.UserID, AuditPasswordChanged, "user", fmt.Sprintf("user_id=%d", user.ID))
	return nil
}
