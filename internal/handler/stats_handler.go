package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-insights-api/internal/middleware"
	"github.com/noah-isme/feedback-insights-api/internal/models"
	"github.com/noah-isme/feedback-insights-api/internal/service"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
	"github.com/noah-isme/feedback-insights-api/pkg/response"
)

// StatsHandler exposes aggregation endpoints. Results are computed from the
// live store on every request.
type StatsHandler struct {
	stats       *service.StatsService
	roleReports *service.RoleReportService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService, roleReports *service.RoleReportService) *StatsHandler {
	return &StatsHandler{stats: stats, roleReports: roleReports}
}

// QuestionStats godoc
// @Summary Question statistics
// @Description Aggregated ratings for one question
// @Tags Statistics
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stats/questions/{id} [get]
func (h *StatsHandler) QuestionStats(c *gin.Context) {
	stats, err := h.stats.StatsForQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// DepartmentStats godoc
// @Summary Department statistics
// @Description Aggregated ratings for one department, per question and pooled
// @Tags Statistics
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stats/departments/{id} [get]
func (h *StatsHandler) DepartmentStats(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	departmentID := c.Param("id")

	// A head of department without a director role only sees their own
	// department.
	if claims != nil && !isDirector(claims) {
		if claims.DepartmentID == nil || *claims.DepartmentID != departmentID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "department statistics are limited to your own department"))
			return
		}
	}

	stats, err := h.stats.StatsForDepartment(c.Request.Context(), departmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// OverallStats godoc
// @Summary Institution statistics
// @Description Aggregated ratings across all active departments
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/overall [get]
func (h *StatsHandler) OverallStats(c *gin.Context) {
	stats, err := h.stats.StatsOverall(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// IndividualRoleReport godoc
// @Summary Individual role breakdown
// @Description Per-user feedback breakdown for one role, grouped by department
// @Tags Statistics
// @Produce json
// @Param role path string true "Role tag"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/roles/{role} [get]
func (h *StatsHandler) IndividualRoleReport(c *gin.Context) {
	report, err := h.roleReports.BuildIndividualReport(c.Request.Context(), models.RoleTag(c.Param("role")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

func isDirector(claims *models.JWTClaims) bool {
	return claims.HasRole(models.RoleExecutiveDirector) || claims.HasRole(models.RoleAcademicDirector)
}
