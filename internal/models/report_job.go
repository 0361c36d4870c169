package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates the downloadable report layouts.
type ReportType string

const (
	ReportTypeAllFeedback     ReportType = "all_feedback"
	ReportTypeDepartmentStats ReportType = "department_stats"
	ReportTypeOverallStats    ReportType = "overall_stats"
	ReportTypeIndividualRole  ReportType = "individual_role"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob persisted background job metadata.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams stores request-scoped options persisted as JSONB.
// DepartmentID scopes the department-stats layout; Role scopes the
// individual-role layout.
type ReportJobParams struct {
	DepartmentID *string      `json:"departmentId,omitempty"`
	Role         *RoleTag     `json:"role,omitempty"`
	Format       ReportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}

// ValidReportType reports whether raw names a known layout.
func ValidReportType(raw string) bool {
	switch ReportType(raw) {
	case ReportTypeAllFeedback, ReportTypeDepartmentStats, ReportTypeOverallStats, ReportTypeIndividualRole:
		return true
	}
	return false
}

// ValidReportFormat reports whether raw names a supported format.
func ValidReportFormat(raw string) bool {
	switch ReportFormat(raw) {
	case ReportFormatCSV, ReportFormatPDF:
		return true
	}
	return false
}
