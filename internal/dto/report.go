package dto

import "github.com/noah-isme/feedback-insights-api/internal/models"

// ReportRequest asks for an asynchronous report artifact.
type ReportRequest struct {
	Type         models.ReportType   `json:"type" validate:"required"`
	Format       models.ReportFormat `json:"format" validate:"required"`
	DepartmentID *string             `json:"department_id,omitempty"`
	Role         *models.RoleTag     `json:"role,omitempty"`
}

// ReportJobResponse acknowledges job creation.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress to clients.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
