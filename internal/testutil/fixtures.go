package testutil

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"sintonia/internal/models"
)

// FixturePassword is the password of every fixture account
const FixturePassword = "password123"

// UserCreator is the part of the user store fixtures need
type UserCreator interface {
	Create(ctx context.Context, user *models.User) error
}

// Fixtures holds one account per role plus a second psychologist and patient
type Fixtures struct {
	Admin         *models.User
	Psychologist  *models.User
	Psychologist2 *models.User
	Patient       *models.User // assigned to Psychologist
	Patient2      *models.User // unassigned
}

// SetupFixtures creates the fixture accounts in users
func SetupFixtures(t *testing.T, users UserCreator) *Fixtures {
	t.Helper()

	f := &Fixtures{}
	f.Admin = CreateUser(t, users, "admin@test.com", "Ada", "Admin", models.RoleAdmin, nil)
	f.Psychologist = CreateUser(t, users, "psy@test.com", "Paolo", "Rossi", models.RolePsychologist, nil)
	f.Psychologist2 = CreateUser(t, users, "psy2@test.com", "Giulia", "Bianchi", models.RolePsychologist, nil)
	f.Patient = CreateUser(t, users, "patient@test.com", "Marco", "Verdi", models.RolePatient, &f.Psychologist.ID)
	f.Patient2 = CreateUser(t, users, "patient2@test.com", "Sara", "Neri", models.RolePatient, nil)
	return f
}

// CreateUser creates an active account with FixturePassword
func CreateUser(t *testing.T, users UserCreator, email, firstName, lastName string, role models.Role, psychologistID *uint) *models.User {
	t.Helper()

	// MinCost keeps the suites fast
	hash, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Email:          email,
		PasswordHash:   string(hash),
		FirstName:      firstName,
		LastName:       lastName,
		Role:           role,
		Status:         models.UserStatusActive,
		PsychologistID: psychologistID,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

// Identity returns the service identity of a fixture user
func Identity(u *models.User) models.Identity {
	return models.Identity{UserID: u.ID, Role: u.Role}
}
