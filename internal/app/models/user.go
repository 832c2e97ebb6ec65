package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
	RoleParent  Role = "PARENT"
)

// Roles lists every valid role
var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

// ParseRole converts a string to a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the four known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	}
	return false
}

// IsStaff is true for admins and teachers.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleTeacher:
		return true
	case RoleStudent, RoleParent:
		return false
	}
	return false
}

// CanManageStaff is reserved to admins.
func (r Role) CanManageStaff() bool {
	return r == RoleAdmin
}

func (r Role) IsStudent() bool { return r == RoleStudent }
func (r Role) CanManageFees() bool { return r.IsStaff() }
func (r Role) CanMarkAttendance() bool { return r.IsStaff() }
func (r Role) CanManageEnrollment() bool { return r.IsStaff() }
func (r Role) CanPublishAnnouncements() bool { return r.IsStaff() }

// User defines the user model based on the 'users' table
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	IsActive     bool       `json:"isActive" db:"is_active"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   Role
}

// NewActor builds an Actor from a user record
func NewActor(u *User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// RefreshToken is an opaque, revocable token issued at login
type RefreshToken struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
	IsRevoked bool      `db:"is_revoked"`
	CreatedAt time.Time `db:"created_at"`
}
