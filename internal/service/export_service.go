package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/models"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
	"github.com/noah-isme/feedback-insights-api/pkg/export"
	"github.com/noah-isme/feedback-insights-api/pkg/storage"
)

type exportFeedbackStore interface {
	ListDetailed(ctx context.Context) ([]models.FeedbackDetail, error)
}

type statsProvider interface {
	StatsForDepartment(ctx context.Context, departmentID string) (*models.DepartmentStats, error)
	StatsOverall(ctx context.Context) (*models.InstitutionStats, error)
}

type roleReportProvider interface {
	BuildIndividualReport(ctx context.Context, role models.RoleTag) (*models.IndividualRoleReport, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService turns aggregation results into downloadable report artifacts.
// It performs no aggregation of its own: builders lay structured results out
// as documents, renderers serialize them.
type ExportService struct {
	stats       statsProvider
	roleReports roleReportProvider
	feedback    exportFeedbackStore
	storage     fileStorage
	csv         documentRenderer
	pdf         documentRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(stats statsProvider, roleReports roleReportProvider, feedback exportFeedbackStore, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf documentRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		stats:       stats,
		roleReports: roleReports,
		feedback:    feedback,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the document for the job and stores the rendered artifact.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	doc, err := s.buildDocument(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(doc)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(doc)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes artifacts older than ttl (defaults to the configured ResultTTL).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDocument(ctx context.Context, job *models.ReportJob) (export.Document, error) {
	switch job.Type {
	case models.ReportTypeAllFeedback:
		return s.BuildAllFeedbackDocument(ctx)
	case models.ReportTypeDepartmentStats:
		if job.Params.DepartmentID == nil || *job.Params.DepartmentID == "" {
			return export.Document{}, appErrors.Clone(appErrors.ErrValidation, "department_id required for department stats report")
		}
		return s.BuildDepartmentStatsDocument(ctx, *job.Params.DepartmentID)
	case models.ReportTypeOverallStats:
		return s.BuildOverallStatsDocument(ctx)
	case models.ReportTypeIndividualRole:
		if job.Params.Role == nil {
			return export.Document{}, appErrors.Clone(appErrors.ErrValidation, "role required for individual report")
		}
		return s.BuildIndividualRoleDocument(ctx, *job.Params.Role)
	default:
		return export.Document{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// BuildAllFeedbackDocument lays out one row per rating record, with the
// author falling back to username then "Anonymous" and the department to
// "Unknown".
func (s *ExportService) BuildAllFeedbackDocument(ctx context.Context) (export.Document, error) {
	records, err := s.feedback.ListDetailed(ctx)
	if err != nil {
		return export.Document{}, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load feedback")
	}

	rows := make([][]string, 0, len(records))
	for i := range records {
		record := &records[i]
		rows = append(rows, []string{
			record.ID,
			strconv.Itoa(record.Rating),
			record.DisplayName(),
			record.DepartmentLabel(),
			record.QuestionText,
			formatReportTime(record.SubmittedAt),
			derefString(record.Notes),
		})
	}

	doc := export.Document{Title: "All Feedback Report"}
	doc.AddTable(export.Table{
		Headers: []string{"ID", "Rating", "User", "Department", "Question", "Submitted Date", "Notes"},
		Rows:    rows,
	})
	return doc, nil
}

// BuildDepartmentStatsDocument lays out the department header block, the
// rating distribution (5 down to 1) and the per-question table.
func (s *ExportService) BuildDepartmentStatsDocument(ctx context.Context, departmentID string) (export.Document, error) {
	stats, err := s.stats.StatsForDepartment(ctx, departmentID)
	if err != nil {
		return export.Document{}, err
	}

	doc := export.Document{Title: "Department Feedback Report"}
	doc.AddKeyValues(
		export.Pair{Label: "Department ID", Value: stats.DepartmentID},
		export.Pair{Label: "Department Name", Value: stats.DepartmentName},
		export.Pair{Label: "Total Responses", Value: strconv.Itoa(stats.TotalResponses)},
		export.Pair{Label: "Average Rating", Value: formatAverage(stats.AverageRating)},
	)
	doc.AddTable(distributionTable(stats.RatingStats))

	questionRows := make([][]string, 0, len(stats.PerQuestion))
	for _, q := range stats.PerQuestion {
		questionRows = append(questionRows, []string{
			q.QuestionID,
			q.QuestionText,
			strconv.Itoa(q.TotalResponses),
			formatAverage(q.AverageRating),
		})
	}
	doc.AddTable(export.Table{
		Caption: "Question Statistics",
		Headers: []string{"Question ID", "Question Text", "Responses", "Average Rating"},
		Rows:    questionRows,
	})
	return doc, nil
}

// BuildOverallStatsDocument lays out the institution header block, the
// rating distribution and the per-department table with star columns.
func (s *ExportService) BuildOverallStatsDocument(ctx context.Context) (export.Document, error) {
	stats, err := s.stats.StatsOverall(ctx)
	if err != nil {
		return export.Document{}, err
	}

	doc := export.Document{Title: "Overall Feedback Report"}
	doc.AddKeyValues(
		export.Pair{Label: "Total Responses", Value: strconv.Itoa(stats.TotalResponses)},
		export.Pair{Label: "Overall Average Rating", Value: formatAverage(stats.AverageRating)},
	)
	doc.AddTable(distributionTable(stats.RatingStats))

	deptRows := make([][]string, 0, len(stats.PerDepartment))
	for _, d := range stats.PerDepartment {
		deptRows = append(deptRows, []string{
			d.DepartmentID,
			d.DepartmentName,
			strconv.Itoa(d.TotalResponses),
			formatAverage(d.AverageRating),
			strconv.Itoa(d.RatingDistribution[5]),
			strconv.Itoa(d.RatingDistribution[4]),
			strconv.Itoa(d.RatingDistribution[3]),
			strconv.Itoa(d.RatingDistribution[2]),
			strconv.Itoa(d.RatingDistribution[1]),
		})
	}
	doc.AddTable(export.Table{
		Caption: "Department Statistics",
		Headers: []string{"Department ID", "Department Name", "Responses", "Average Rating", "5★", "4★", "3★", "2★", "1★"},
		Rows:    deptRows,
	})
	return doc, nil
}

// BuildIndividualRoleDocument lays out the sectioned per-department,
// per-user breakdown. Year appears only for the student role, and a user
// with no qualifying records renders "N/A", never 0.
func (s *ExportService) BuildIndividualRoleDocument(ctx context.Context, role models.RoleTag) (export.Document, error) {
	report, err := s.roleReports.BuildIndividualReport(ctx, role)
	if err != nil {
		return export.Document{}, err
	}

	doc := export.Document{Title: RoleLabel(role) + " Feedback Report"}
	for di, dept := range report.Departments {
		doc.AddHeading(fmt.Sprintf("Department: %s", dept.DepartmentName), 1)
		for ui, user := range dept.Users {
			name := user.FullName
			if name == "" {
				name = user.Username
			}
			doc.AddHeading(fmt.Sprintf("%s (%s)", name, user.Username), 2)
			if role == models.RoleStudent && user.Year != nil {
				doc.AddKeyValues(export.Pair{Label: "Year", Value: strconv.Itoa(*user.Year)})
			}

			entryRows := make([][]string, 0, len(user.Entries))
			for _, entry := range user.Entries {
				entryRows = append(entryRows, []string{
					entry.QuestionID,
					entry.QuestionText,
					strconv.Itoa(entry.Rating),
					derefString(entry.Notes),
					formatReportTime(entry.SubmittedAt),
				})
			}
			doc.AddTable(export.Table{
				Headers: []string{"Question ID", "Question", "Rating", "Notes", "Submitted Date"},
				Rows:    entryRows,
			})

			avg := "N/A"
			if user.AverageRating != nil {
				avg = formatAverage(*user.AverageRating)
			}
			doc.AddKeyValues(export.Pair{Label: "Average Rating", Value: avg})

			if ui < len(dept.Users)-1 {
				doc.AddSeparator()
			}
		}
		if di < len(report.Departments)-1 {
			doc.AddSeparator()
		}
	}
	return doc, nil
}

// RoleLabel maps a role tag to its display name.
func RoleLabel(role models.RoleTag) string {
	switch role {
	case models.RoleStudent:
		return "Student"
	case models.RoleStaff:
		return "Staff"
	case models.RoleHOD:
		return "Head of Department"
	case models.RoleAcademicDirector:
		return "Academic Director"
	case models.RoleExecutiveDirector:
		return "Executive Director"
	}
	return string(role)
}

func distributionTable(stats models.RatingStats) export.Table {
	rows := make([][]string, 0, models.MaxRating)
	for rating := models.MaxRating; rating >= models.MinRating; rating-- {
		rows = append(rows, []string{strconv.Itoa(rating), strconv.Itoa(stats.RatingDistribution[rating])})
	}
	return export.Table{
		Caption: "Rating Distribution",
		Headers: []string{"Rating", "Responses"},
		Rows:    rows,
	}
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	switch {
	case job.Params.DepartmentID != nil && *job.Params.DepartmentID != "":
		scope = sanitizeFilename(*job.Params.DepartmentID)
	case job.Params.Role != nil:
		scope = string(*job.Params.Role)
	}
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func formatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatReportTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
