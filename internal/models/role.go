package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles
type Role string

const (
	RolePatient      Role = "patient"
	RolePsychologist Role = "psychologist"
	RoleAdmin        Role = "admin"
)

// ParseRole converts user input into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePatient, RolePsychologist, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Identity is the authenticated caller of a service operation
type Identity struct {
	UserID uint
	Role   Role
}

func (i Identity) IsAdmin() bool        { return i.Role == RoleAdmin }
func (i Identity) IsPsychologist() bool { return i.Role == RolePsychologist }
func (i Identity) IsPatient() bool      { return i.Role == RolePatient }

// Is reports whether the identity has any of the given roles
func (i Identity) Is(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
