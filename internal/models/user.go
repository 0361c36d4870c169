package models

import (
	"time"

	"github.com/lib/pq"
)

// RoleTag is a capability tag carried by a user. A user may hold several tags
// at once (e.g. a head of department who also submits staff feedback).
type RoleTag string

const (
	RoleStudent           RoleTag = "student"
	RoleStaff             RoleTag = "staff"
	RoleHOD               RoleTag = "hod"
	RoleAcademicDirector  RoleTag = "academic_director"
	RoleExecutiveDirector RoleTag = "executive_director"
)

// KnownRoleTags lists every recognized tag in a stable order.
var KnownRoleTags = []RoleTag{
	RoleStudent,
	RoleStaff,
	RoleHOD,
	RoleAcademicDirector,
	RoleExecutiveDirector,
}

// ValidRoleTag reports whether raw names a recognized role.
func ValidRoleTag(raw string) bool {
	for _, tag := range KnownRoleTags {
		if string(tag) == raw {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table. Roles is the
// authoritative capability set; nothing is ever inferred from the username.
type User struct {
	ID           string         `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	DepartmentID *string        `db:"department_id" json:"department_id,omitempty"`
	Year         *int           `db:"year" json:"year,omitempty"`
	Roles        pq.StringArray `db:"roles" json:"roles"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the user carries the given capability tag.
func (u *User) HasRole(tag RoleTag) bool {
	for _, r := range u.Roles {
		if r == string(tag) {
			return true
		}
	}
	return false
}

// RoleTags converts the stored role strings into typed tags, dropping any
// value that is not recognized.
func (u *User) RoleTags() []RoleTag {
	tags := make([]RoleTag, 0, len(u.Roles))
	for _, r := range u.Roles {
		if ValidRoleTag(r) {
			tags = append(tags, RoleTag(r))
		}
	}
	return tags
}
