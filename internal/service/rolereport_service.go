package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/models"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
)

// RoleReportFeedbackStore supplies the single bulk joined read the role
// report is built from.
type RoleReportFeedbackStore interface {
	ListDetailed(ctx context.Context) ([]models.FeedbackDetail, error)
}

// RoleReportService groups feedback by (department, role, user) into
// individual breakdowns for one target role.
type RoleReportService struct {
	feedback RoleReportFeedbackStore
	logger   *zap.Logger
}

// NewRoleReportService constructs a role report service.
func NewRoleReportService(feedback RoleReportFeedbackStore, logger *zap.Logger) *RoleReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleReportService{feedback: feedback, logger: logger}
}

const unknownDepartmentID = ""

// BuildIndividualReport returns the per-user breakdown for one target role.
// Classification reads the authoritative roles set on the author; records
// from users not carrying the role are discarded. The whole dataset is pulled
// in one joined scan, never one query per record.
func (s *RoleReportService) BuildIndividualReport(ctx context.Context, role models.RoleTag) (*models.IndividualRoleReport, error) {
	if !models.ValidRoleTag(string(role)) {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "unrecognized role tag: "+string(role))
	}

	records, err := s.feedback.ListDetailed(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load feedback")
	}

	type userGroup struct {
		user    models.RoleReportUser
		ratings []int
	}
	type deptGroup struct {
		dept      models.RoleReportDepartment
		userOrder []string
		users     map[string]*userGroup
	}

	deptOrder := make([]string, 0)
	depts := make(map[string]*deptGroup)

	for i := range records {
		record := &records[i]
		if !record.HasRole(role) {
			continue
		}

		deptID := unknownDepartmentID
		deptName := "Unknown"
		if record.UserDepartmentID != nil {
			deptID = *record.UserDepartmentID
		}
		if record.DepartmentName != nil && *record.DepartmentName != "" {
			deptName = *record.DepartmentName
		}

		dg, ok := depts[deptID]
		if !ok {
			dg = &deptGroup{
				dept:  models.RoleReportDepartment{DepartmentID: deptID, DepartmentName: deptName},
				users: make(map[string]*userGroup),
			}
			depts[deptID] = dg
			deptOrder = append(deptOrder, deptID)
		}

		ug, ok := dg.users[record.UserID]
		if !ok {
			ug = &userGroup{
				user: models.RoleReportUser{
					UserID:   record.UserID,
					Username: record.Username,
					FullName: record.FullName,
					Year:     record.UserYear,
				},
			}
			dg.users[record.UserID] = ug
			dg.userOrder = append(dg.userOrder, record.UserID)
		}

		ug.user.Entries = append(ug.user.Entries, models.RoleReportEntry{
			QuestionID:   record.QuestionID,
			QuestionText: record.QuestionText,
			Rating:       record.Rating,
			Notes:        record.Notes,
			SubmittedAt:  record.SubmittedAt,
		})
		ug.ratings = append(ug.ratings, record.Rating)
	}

	// Sort after accumulation, never during: ordering must be deterministic
	// regardless of scan or scheduling order.
	sort.Strings(deptOrder)

	report := &models.IndividualRoleReport{Role: role, Departments: make([]models.RoleReportDepartment, 0, len(deptOrder))}
	for _, deptID := range deptOrder {
		dg := depts[deptID]
		sort.Strings(dg.userOrder)
		for _, userID := range dg.userOrder {
			ug := dg.users[userID]
			if len(ug.ratings) > 0 {
				stats := ReduceRatings(ug.ratings)
				avg := stats.AverageRating
				ug.user.AverageRating = &avg
			}
			// A nil average renders as "N/A": no data is a different fact
			// than a confirmed zero.
			dg.dept.Users = append(dg.dept.Users, ug.user)
		}
		report.Departments = append(report.Departments, dg.dept)
	}

	return report, nil
}
