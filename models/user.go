package models

import "strings"

// Role distinguishes residents from staff.
type Role string

const (
	RoleCitizen Role = "CITIZEN"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normalizes a role claim. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleCitizen:
		return RoleCitizen, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// User represents a registered resident or staff member.
// It maps to the `users` table in SQLite.
type User struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"full_name" json:"fullName"`
	Login    string `db:"login" json:"login"`
	Email    string `db:"email" json:"email"`
	Role     Role   `db:"role" json:"role"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
