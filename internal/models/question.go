package models

import "time"

// Question is a feedback prompt owned by the question-management subsystem.
// Inactive questions still contribute their historical responses to
// department-level statistics.
type Question struct {
	ID           string    `db:"id" json:"id"`
	Text         string    `db:"text" json:"text"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Year         *int      `db:"year" json:"year,omitempty"`
	TargetRole   RoleTag   `db:"target_role" json:"target_role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
