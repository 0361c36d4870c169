package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/models"
	"github.com/noah-isme/feedback-insights-api/pkg/export"
	"github.com/noah-isme/feedback-insights-api/pkg/storage"
)

type fakeStatsProvider struct {
	department *models.DepartmentStats
	overall    *models.InstitutionStats
}

func (f *fakeStatsProvider) StatsForDepartment(context.Context, string) (*models.DepartmentStats, error) {
	return f.department, nil
}

func (f *fakeStatsProvider) StatsOverall(context.Context) (*models.InstitutionStats, error) {
	return f.overall, nil
}

type fakeRoleReportProvider struct {
	report *models.IndividualRoleReport
}

func (f *fakeRoleReportProvider) BuildIndividualReport(context.Context, models.RoleTag) (*models.IndividualRoleReport, error) {
	return f.report, nil
}

func newExportFixture(t *testing.T, stats *fakeStatsProvider, roleReports *fakeRoleReportProvider, feedback *fakeDetailStore) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(stats, roleReports, feedback, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil)
}

func TestBuildAllFeedbackDocument(t *testing.T) {
	feedback := &fakeDetailStore{records: []models.FeedbackDetail{
		{
			Feedback: models.Feedback{
				ID:          "f1",
				QuestionID:  "q1",
				UserID:      "u1",
				Rating:      4,
				Notes:       strPtr("solid session"),
				SubmittedAt: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			},
			Username:       "alice",
			FullName:       "Alice Smith",
			DepartmentName: strPtr("Engineering"),
			UserRoles:      pq.StringArray{"student"},
			QuestionText:   "How was the lecture?",
		},
		{
			Feedback: models.Feedback{
				ID:          "f2",
				QuestionID:  "q1",
				UserID:      "u2",
				Rating:      2,
				SubmittedAt: time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC),
			},
			QuestionText: "How was the lecture?",
		},
	}}
	svc := newExportFixture(t, &fakeStatsProvider{}, &fakeRoleReportProvider{}, feedback)

	doc, err := svc.BuildAllFeedbackDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "All Feedback Report", doc.Title)

	require.Len(t, doc.Sections, 1)
	table, ok := doc.Sections[0].(export.Table)
	require.True(t, ok)
	assert.Equal(t, []string{"ID", "Rating", "User", "Department", "Question", "Submitted Date", "Notes"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"f1", "4", "Alice Smith", "Engineering", "How was the lecture?", "2026-03-10 09:30", "solid session"}, table.Rows[0])
	// Missing author and department fall back to the placeholders.
	assert.Equal(t, "Anonymous", table.Rows[1][2])
	assert.Equal(t, "Unknown", table.Rows[1][3])
}

func departmentStatsFixture() *models.DepartmentStats {
	stats := &models.DepartmentStats{
		DepartmentID:   "d1",
		DepartmentName: "Engineering",
		RatingStats:    ReduceRatings([]int{5, 5, 4, 2}),
		PerQuestion: []models.QuestionStats{
			{QuestionID: "q1", QuestionText: "First", RatingStats: ReduceRatings([]int{5, 5, 4})},
			{QuestionID: "q2", QuestionText: "Second", RatingStats: ReduceRatings([]int{2})},
		},
	}
	return stats
}

func TestBuildDepartmentStatsDocument(t *testing.T) {
	svc := newExportFixture(t, &fakeStatsProvider{department: departmentStatsFixture()}, &fakeRoleReportProvider{}, &fakeDetailStore{})

	doc, err := svc.BuildDepartmentStatsDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "Department Feedback Report", doc.Title)
	require.Len(t, doc.Sections, 3)

	kv, ok := doc.Sections[0].(export.KeyValues)
	require.True(t, ok)
	assert.Equal(t, []export.Pair{
		{Label: "Department ID", Value: "d1"},
		{Label: "Department Name", Value: "Engineering"},
		{Label: "Total Responses", Value: "4"},
		{Label: "Average Rating", Value: "4.00"},
	}, kv.Pairs)

	dist, ok := doc.Sections[1].(export.Table)
	require.True(t, ok)
	assert.Equal(t, "Rating Distribution", dist.Caption)
	// Buckets render highest first.
	assert.Equal(t, [][]string{{"5", "2"}, {"4", "1"}, {"3", "0"}, {"2", "1"}, {"1", "0"}}, dist.Rows)

	questions, ok := doc.Sections[2].(export.Table)
	require.True(t, ok)
	assert.Equal(t, "Question Statistics", questions.Caption)
	assert.Equal(t, []string{"Question ID", "Question Text", "Responses", "Average Rating"}, questions.Headers)
	assert.Equal(t, []string{"q1", "First", "3", "4.67"}, questions.Rows[0])
	assert.Equal(t, []string{"q2", "Second", "1", "2.00"}, questions.Rows[1])
}

func TestBuildOverallStatsDocument(t *testing.T) {
	overall := &models.InstitutionStats{
		RatingStats: ReduceRatings([]int{5, 5, 4, 2}),
		PerDepartment: []models.DepartmentStats{
			{DepartmentID: "d1", DepartmentName: "Engineering", RatingStats: ReduceRatings([]int{5, 5, 4})},
			{DepartmentID: "d2", DepartmentName: "Science", RatingStats: ReduceRatings([]int{2})},
		},
	}
	svc := newExportFixture(t, &fakeStatsProvider{overall: overall}, &fakeRoleReportProvider{}, &fakeDetailStore{})

	doc, err := svc.BuildOverallStatsDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Overall Feedback Report", doc.Title)
	require.Len(t, doc.Sections, 3)

	depts, ok := doc.Sections[2].(export.Table)
	require.True(t, ok)
	assert.Equal(t, []string{"Department ID", "Department Name", "Responses", "Average Rating", "5★", "4★", "3★", "2★", "1★"}, depts.Headers)
	assert.Equal(t, []string{"d1", "Engineering", "3", "4.67", "2", "1", "0", "0", "0"}, depts.Rows[0])
	assert.Equal(t, []string{"d2", "Science", "1", "2.00", "0", "0", "0", "1", "0"}, depts.Rows[1])
}

func TestBuildIndividualRoleDocument(t *testing.T) {
	avg := 3.5
	report := &models.IndividualRoleReport{
		Role: models.RoleStudent,
		Departments: []models.RoleReportDepartment{
			{
				DepartmentID:   "d1",
				DepartmentName: "Engineering",
				Users: []models.RoleReportUser{
					{
						UserID:   "u1",
						Username: "alice",
						FullName: "Alice Smith",
						Year:     intPtr(2),
						Entries: []models.RoleReportEntry{
							{QuestionID: "q1", QuestionText: "First", Rating: 3, SubmittedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
							{QuestionID: "q2", QuestionText: "Second", Rating: 4, SubmittedAt: time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC)},
						},
						AverageRating: &avg,
					},
					{
						UserID:   "u2",
						Username: "bob",
					},
				},
			},
		},
	}
	svc := newExportFixture(t, &fakeStatsProvider{}, &fakeRoleReportProvider{report: report}, &fakeDetailStore{})

	doc, err := svc.BuildIndividualRoleDocument(context.Background(), models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "Student Feedback Report", doc.Title)

	csvBytes, err := export.NewCSVExporter().Render(doc)
	require.NoError(t, err)
	rendered := string(csvBytes)

	assert.Contains(t, rendered, "Department: Engineering")
	assert.Contains(t, rendered, "Alice Smith (alice)")
	assert.Contains(t, rendered, "Year,2")
	assert.Contains(t, rendered, "Average Rating,3.50")
	// A user with no entries renders N/A, never a zero.
	assert.Contains(t, rendered, "Average Rating,N/A")
	assert.NotContains(t, rendered, "Average Rating,0.00")
}

func TestBuildIndividualRoleDocumentYearOnlyForStudents(t *testing.T) {
	report := &models.IndividualRoleReport{
		Role: models.RoleStaff,
		Departments: []models.RoleReportDepartment{
			{DepartmentID: "d1", DepartmentName: "Engineering", Users: []models.RoleReportUser{
				{UserID: "u1", Username: "carol", FullName: "Carol Jones", Year: intPtr(3)},
			}},
		},
	}
	svc := newExportFixture(t, &fakeStatsProvider{}, &fakeRoleReportProvider{report: report}, &fakeDetailStore{})

	doc, err := svc.BuildIndividualRoleDocument(context.Background(), models.RoleStaff)
	require.NoError(t, err)

	csvBytes, err := export.NewCSVExporter().Render(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(csvBytes), "Year,3")
}

func TestGenerateWritesArtifactAndSignsURL(t *testing.T) {
	feedback := &fakeDetailStore{}
	svc := newExportFixture(t, &fakeStatsProvider{}, &fakeRoleReportProvider{}, feedback)

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeAllFeedback,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Student", RoleLabel(models.RoleStudent))
	assert.Equal(t, "Staff", RoleLabel(models.RoleStaff))
	assert.Equal(t, "Head of Department", RoleLabel(models.RoleHOD))
	assert.Equal(t, "Academic Director", RoleLabel(models.RoleAcademicDirector))
	assert.Equal(t, "Executive Director", RoleLabel(models.RoleExecutiveDirector))
}
