package service_test

import (
	"context"
	"testing"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/service"
	"sintonia/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	valid := service.CreateUserRequest{
		Email:          "  New.Patient@Test.com ",
		Password:       "supersecret",
		FirstName:      "Nina",
		LastName:       "Gialli",
		Role:           models.RolePatient,
		PsychologistID: &env.fx.Psychologist.ID,
	}
	user, err := env.roster.CreateUser(ctx, env.admin(), valid)
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if user.Email != "new.patient@test.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == valid.Password {
		t.Error("expected password to be hashed")
	}

	withRole := func(role models.Role) service.CreateUserRequest {
		r := valid
		r.Email = "other@test.com"
		r.Role = role
		r.PsychologistID = nil
		return r
	}
	shortPassword := withRole(models.RolePatient)
	shortPassword.Password = "short"
	badPsychologist := withRole(models.RolePatient)
	badPsychologist.PsychologistID = &env.fx.Patient2.ID

	tests := []struct {
		name  string
		actor models.Identity
		req   service.CreateUserRequest
		want  apperr.Code
	}{
		{"duplicate email", env.admin(), valid, apperr.CodeConflict},
		{"admin role not allowed", env.admin(), withRole(models.RoleAdmin), apperr.CodeValidation},
		{"short password", env.admin(), shortPassword, apperr.CodeValidation},
		{"psychologist must be a psychologist", env.admin(), badPsychologist, apperr.CodeValidation},
		{"only admins", env.psychologist(), withRole(models.RolePatient), apperr.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.roster.CreateUser(ctx, tt.actor, tt.req)
			assertCode(t, err, tt.want)
		})
	}
}

func TestSetStatusRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.auth.Login(ctx, env.fx.Patient.Email, testutil.FixturePassword, "127.0.0.1", "test"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	user, err := env.roster.SetStatus(ctx, env.admin(), env.fx.Patient.ID, models.UserStatusInactive)
	if err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	if user.Status != models.UserStatusInactive {
		t.Errorf("expected inactive, got %s", user.Status)
	}

	sessions, _ := env.store.Sessions().GetByUserID(ctx, env.fx.Patient.ID)
	if len(sessions) != 0 {
		t.Errorf("expected sessions to be revoked, got %d", len(sessions))
	}

	_, err = env.auth.Login(ctx, env.fx.Patient.Email, testutil.FixturePassword, "127.0.0.1", "test")
	assertCode(t, err, apperr.CodeUnauthorized)

	_, err = env.roster.SetStatus(ctx, env.admin(), env.fx.Admin.ID, models.UserStatusInactive)
	assertCode(t, err, apperr.CodeInvalidState)

	_, err = env.roster.SetStatus(ctx, env.admin(), env.fx.Patient.ID, "Disattivato")
	assertCode(t, err, apperr.CodeValidation)

	_, err = env.roster.SetStatus(ctx, env.admin(), 9999, models.UserStatusActive)
	assertCode(t, err, apperr.CodeNotFound)
}

func TestAssignPsychologist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	patient, err := env.roster.AssignPsychologist(ctx, env.admin(), env.fx.Patient2.ID, &env.fx.Psychologist2.ID)
	if err != nil {
		t.Fatalf("AssignPsychologist returned error: %v", err)
	}
	if patient.PsychologistID == nil || *patient.PsychologistID != env.fx.Psychologist2.ID {
		t.Errorf("expected psychologist %d, got %v", env.fx.Psychologist2.ID, patient.PsychologistID)
	}

	mine, err := env.roster.ListMyPatients(ctx, env.psychologist2(), defaultPage())
	if err != nil {
		t.Fatalf("ListMyPatients returned error: %v", err)
	}
	if mine.Total != 1 || mine.Items[0].ID != env.fx.Patient2.ID {
		t.Errorf("expected Patient2 in the roster, got %+v", mine.Items)
	}

	_, err = env.roster.AssignPsychologist(ctx, env.admin(), env.fx.Psychologist.ID, &env.fx.Psychologist2.ID)
	assertCode(t, err, apperr.CodeValidation)

	_, err = env.roster.AssignPsychologist(ctx, env.admin(), env.fx.Patient2.ID, &env.fx.Admin.ID)
	assertCode(t, err, apperr.CodeValidation)

	if _, err := env.roster.SetStatus(ctx, env.admin(), env.fx.Psychologist.ID, models.UserStatusInactive); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	_, err = env.roster.AssignPsychologist(ctx, env.admin(), env.fx.Patient2.ID, &env.fx.Psychologist.ID)
	assertCode(t, err, apperr.CodeValidation)

	cleared, err := env.roster.AssignPsychologist(ctx, env.admin(), env.fx.Patient2.ID, nil)
	if err != nil {
		t.Fatalf("AssignPsychologist(nil) returned error: %v", err)
	}
	if cleared.PsychologistID != nil {
		t.Errorf("expected psychologist cleared, got %v", *cleared.PsychologistID)
	}
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	psychologists, err := env.roster.ListUsers(ctx, env.admin(), service.UserListFilter{Role: models.RolePsychologist, Page: defaultPage()})
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if psychologists.Total != 2 {
		t.Errorf("expected 2 psychologists, got %d", psychologists.Total)
	}

	search, err := env.roster.ListUsers(ctx, env.admin(), service.UserListFilter{Search: "verdi", Page: defaultPage()})
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if search.Total != 1 {
		t.Errorf("expected 1 match for search, got %d", search.Total)
	}

	_, err = env.roster.ListUsers(ctx, env.admin(), service.UserListFilter{Role: "superuser"})
	assertCode(t, err, apperr.CodeValidation)

	_, err = env.roster.ListUsers(ctx, env.psychologist(), service.UserListFilter{})
	assertCode(t, err, apperr.CodeForbidden)
}
