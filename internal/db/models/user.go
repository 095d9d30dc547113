// Package models - user.go defines the User model for portal accounts together
// with the role constants that gate API access.
package models

import "time"

// Roles recognised by the authorization middleware
const (
	RoleAdministrator = "Administrator"
	RoleSupervisor    = "Supervisor"
	RoleEntity        = "Entity"
)

// User represents a portal account
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	Role          string
	InstitutionID *string // Set for Entity accounts, nil otherwise
	IsActive      bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ValidRole reports whether s is one of the recognised roles.
func ValidRole(s string) bool {
	switch s {
	case RoleAdministrator, RoleSupervisor, RoleEntity:
		return true
	}
	return false
}
