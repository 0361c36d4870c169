package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-insights-api/internal/dto"
	"github.com/noah-isme/feedback-insights-api/internal/middleware"
	"github.com/noah-isme/feedback-insights-api/internal/models"
	"github.com/noah-isme/feedback-insights-api/internal/service"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
	"github.com/noah-isme/feedback-insights-api/pkg/response"
)

// ReportHandler exposes report job endpoints and signed downloads.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Create godoc
// @Summary Queue a report
// @Description Create an asynchronous report generation job
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report request"))
		return
	}

	// Individual breakdowns and the raw feedback dump expose per-user data,
	// so they stay director-only even though aggregate reports are broader.
	if req.Type == models.ReportTypeIndividualRole || req.Type == models.ReportTypeAllFeedback {
		if decision := service.CanViewIndividualReports(claims); !decision.Allow {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, decision.Reason))
			return
		}
	}
	if req.Type == models.ReportTypeDepartmentStats && !isDirector(claims) {
		if req.DepartmentID == nil || claims.DepartmentID == nil || *req.DepartmentID != *claims.DepartmentID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "department reports are limited to your own department"))
			return
		}
	}

	job, err := h.service.CreateJob(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, dto.ReportJobResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}, nil)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	job, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.ReportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil)
}

// Download godoc
// @Summary Download report artifact
// @Description Stream a finished report using its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	job, file, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(file.Name())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentTypeFor(job.Params.Format))
	c.File(file.Name())
}

func contentTypeFor(format models.ReportFormat) string {
	switch format {
	case models.ReportFormatPDF:
		return "application/pdf"
	case models.ReportFormatCSV:
		return "text/csv"
	}
	return "application/octet-stream"
}
