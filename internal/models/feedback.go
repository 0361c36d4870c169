package models

import (
	"time"

	"github.com/lib/pq"
)

// Feedback is a single rating submission. The (user_id, question_id) pair is
// unique: resubmitting replaces rating, notes and submitted_at in place.
type Feedback struct {
	ID          string    `db:"id" json:"id"`
	QuestionID  string    `db:"question_id" json:"question_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Rating      int       `db:"rating" json:"rating"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	MeetingID   *string   `db:"meeting_id" json:"meeting_id,omitempty"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// FeedbackDetail is one row of the bulk join feedback ⋈ users ⋈ questions ⋈
// departments. The role report and the all-feedback export read this shape in
// a single scan instead of issuing per-record lookups.
type FeedbackDetail struct {
	Feedback
	Username         string         `db:"username" json:"username"`
	FullName         string         `db:"full_name" json:"full_name"`
	UserDepartmentID *string        `db:"user_department_id" json:"user_department_id,omitempty"`
	UserYear         *int           `db:"user_year" json:"user_year,omitempty"`
	UserRoles        pq.StringArray `db:"user_roles" json:"user_roles"`
	DepartmentName   *string        `db:"department_name" json:"department_name,omitempty"`
	QuestionText     string         `db:"question_text" json:"question_text"`
}

// DisplayName resolves the reporting name for the record author: full name,
// then username, then the anonymous placeholder.
func (d *FeedbackDetail) DisplayName() string {
	if d.FullName != "" {
		return d.FullName
	}
	if d.Username != "" {
		return d.Username
	}
	return "Anonymous"
}

// DepartmentLabel resolves the reporting label for the author's department.
func (d *FeedbackDetail) DepartmentLabel() string {
	if d.DepartmentName != nil && *d.DepartmentName != "" {
		return *d.DepartmentName
	}
	return "Unknown"
}

// HasRole reports whether the record author carries the given tag.
func (d *FeedbackDetail) HasRole(tag RoleTag) bool {
	for _, r := range d.UserRoles {
		if r == string(tag) {
			return true
		}
	}
	return false
}
