package models

import "time"

// MinRating and MaxRating bound the 1–5 rating scale.
const (
	MinRating = 1
	MaxRating = 5
)

// RatingStats is the derived summary of a set of ratings. It is recomputed on
// every request and never persisted. The distribution always carries the five
// buckets 1..5, and AverageRating is 0 (never NaN) for an empty set.
type RatingStats struct {
	TotalResponses     int         `json:"total_responses"`
	AverageRating      float64     `json:"average_rating"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}

// NewRatingStats returns a zero-valued stats record with all five
// distribution buckets present.
func NewRatingStats() RatingStats {
	dist := make(map[int]int, MaxRating)
	for k := MinRating; k <= MaxRating; k++ {
		dist[k] = 0
	}
	return RatingStats{RatingDistribution: dist}
}

// QuestionStats couples RatingStats with question identity.
type QuestionStats struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	RatingStats
}

// DepartmentStats holds a department-level rollup pooled across all of the
// department's questions, plus the per-question breakdown ordered by question
// id ascending.
type DepartmentStats struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name"`
	RatingStats
	PerQuestion []QuestionStats `json:"per_question"`
}

// InstitutionStats is the top-level rollup across active departments, ordered
// by department id ascending.
type InstitutionStats struct {
	RatingStats
	PerDepartment []DepartmentStats `json:"per_department"`
}

// IndividualRoleReport groups feedback authored by users carrying one target
// role, first by department and then by user.
type IndividualRoleReport struct {
	Role        RoleTag                `json:"role"`
	Departments []RoleReportDepartment `json:"departments"`
}

// RoleReportDepartment is one department section of the individual report.
type RoleReportDepartment struct {
	DepartmentID   string           `json:"department_id"`
	DepartmentName string           `json:"department_name"`
	Users          []RoleReportUser `json:"users"`
}

// RoleReportUser is one user's breakdown. AverageRating is nil when the user
// has no qualifying records, which reports render as "N/A" — a user with no
// data is a different fact than a confirmed zero.
type RoleReportUser struct {
	UserID        string            `json:"user_id"`
	Username      string            `json:"username"`
	FullName      string            `json:"full_name"`
	Year          *int              `json:"year,omitempty"`
	Entries       []RoleReportEntry `json:"entries"`
	AverageRating *float64          `json:"average_rating"`
}

// RoleReportEntry is one rating with its resolved question text.
type RoleReportEntry struct {
	QuestionID   string    `json:"question_id"`
	QuestionText string    `json:"question_text"`
	Rating       int       `json:"rating"`
	Notes        *string   `json:"notes,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
