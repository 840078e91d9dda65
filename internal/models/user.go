package models

import (
	"fmt"
	"strings"
	"time"
)

// UserRole represents the closed set of platform roles.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleMentor  UserRole = "mentor"
	RoleAdmin   UserRole = "admin"
)

// AllRoles returns every role in canonical reporting order.
func AllRoles() []UserRole {
	return []UserRole{RoleStudent, RoleMentor, RoleAdmin}
}

// ParseUserRole converts raw input into a UserRole, rejecting unknown values.
func ParseUserRole(raw string) (UserRole, error) {
	switch UserRole(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleMentor:
		return RoleMentor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether the role belongs to the closed set.
func (r UserRole) Valid() bool {
	_, err := ParseUserRole(string(r))
	return err == nil
}

// User is a platform account as stored in the users table.
type User struct {
	ID         int64     `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Role       UserRole  `db:"role" json:"role"`
	Expertise  *string   `db:"expertise" json:"expertise,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	IsApproved bool      `db:"is_approved" json:"is_approved"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FullName joins first and last names.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
