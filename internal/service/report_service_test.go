package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/dto"
	"github.com/noah-isme/feedback-insights-api/internal/models"
	"github.com/noah-isme/feedback-insights-api/internal/repository"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
	"github.com/noah-isme/feedback-insights-api/pkg/jobs"
)

type fakeReportStore struct {
	jobsByID map[string]*models.ReportJob
	queued   []models.ReportJob
	updates  []repository.UpdateReportJobParams
	createN  int
}

func (f *fakeReportStore) Create(_ context.Context, job *models.ReportJob) error {
	f.createN++
	if job.ID == "" {
		job.ID = "job-1"
	}
	if f.jobsByID == nil {
		f.jobsByID = make(map[string]*models.ReportJob)
	}
	f.jobsByID[job.ID] = job
	return nil
}

func (f *fakeReportStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := f.jobsByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (f *fakeReportStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	f.updates = append(f.updates, params)
	job, ok := f.jobsByID[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (f *fakeReportStore) ListQueued(context.Context, int) ([]models.ReportJob, error) {
	return f.queued, nil
}

type fakeEnqueuer struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeEnqueuer) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeGenerator struct {
	result *ExportResult
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(context.Context, *models.ReportJob) (*ExportResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) ParseToken(string, bool) (string, string, time.Time, error) {
	return "job-1", "report.csv", time.Now().Add(time.Hour), nil
}

func (f *fakeGenerator) Open(string) (*os.File, error) {
	return os.Open(os.DevNull)
}

func (f *fakeGenerator) Cleanup(time.Duration) ([]string, error) {
	return nil, nil
}

func reportFixture() (*fakeReportStore, *fakeEnqueuer, *fakeGenerator, *ReportService) {
	store := &fakeReportStore{}
	queue := &fakeEnqueuer{}
	generator := &fakeGenerator{result: &ExportResult{URL: "/api/v1/export/token", RelativePath: "report.csv"}}
	svc := NewReportService(store, queue, generator, nil, zap.NewNop())
	return store, queue, generator, svc
}

func TestCreateJob(t *testing.T) {
	store, queue, _, svc := reportFixture()

	job, err := svc.CreateJob(context.Background(), "u1", dto.ReportRequest{
		Type:   models.ReportTypeOverallStats,
		Format: models.ReportFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Equal(t, "u1", job.CreatedBy)
	assert.Equal(t, 1, store.createN)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].Payload)
}

func TestCreateJobValidation(t *testing.T) {
	_, _, _, svc := reportFixture()

	cases := []dto.ReportRequest{
		{Type: "unknown", Format: models.ReportFormatCSV},
		{Type: models.ReportTypeOverallStats, Format: "xlsx"},
		{Type: models.ReportTypeDepartmentStats, Format: models.ReportFormatCSV},
		{Type: models.ReportTypeIndividualRole, Format: models.ReportFormatPDF},
	}
	for _, req := range cases {
		_, err := svc.CreateJob(context.Background(), "u1", req)
		require.Error(t, err)

		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, 400, appErr.Status)
	}
}

func TestCreateJobUnknownRole(t *testing.T) {
	_, _, _, svc := reportFixture()

	role := models.RoleTag("principal")
	_, err := svc.CreateJob(context.Background(), "u1", dto.ReportRequest{
		Type:   models.ReportTypeIndividualRole,
		Format: models.ReportFormatCSV,
		Role:   &role,
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidRole.Code, appErr.Code)
}

func TestCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store, queue, _, svc := reportFixture()
	queue.err = errors.New("queue stopped")

	_, err := svc.CreateJob(context.Background(), "u1", dto.ReportRequest{
		Type:   models.ReportTypeOverallStats,
		Format: models.ReportFormatCSV,
	})
	require.Error(t, err)

	job := store.jobsByID["job-1"]
	require.NotNil(t, job)
	assert.Equal(t, models.ReportStatusFailed, job.Status)
}

func TestProcessJob(t *testing.T) {
	store, _, generator, svc := reportFixture()
	store.jobsByID = map[string]*models.ReportJob{
		"job-1": {
			ID:     "job-1",
			Type:   models.ReportTypeOverallStats,
			Status: models.ReportStatusQueued,
			Params: models.ReportJobParams{Format: models.ReportFormatCSV},
		},
	}

	err := svc.ProcessJob(context.Background(), jobs.Job{ID: "job-1", Payload: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, generator.calls)

	job := store.jobsByID["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/export/token", *job.ResultURL)
}

func TestProcessJobGenerationFailure(t *testing.T) {
	store, _, generator, svc := reportFixture()
	generator.err = errors.New("disk full")
	store.jobsByID = map[string]*models.ReportJob{
		"job-1": {
			ID:     "job-1",
			Type:   models.ReportTypeOverallStats,
			Status: models.ReportStatusQueued,
			Params: models.ReportJobParams{Format: models.ReportFormatCSV},
		},
	}

	err := svc.ProcessJob(context.Background(), jobs.Job{ID: "job-1", Payload: "job-1"})
	require.Error(t, err)

	job := store.jobsByID["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "disk full", *job.ErrorMessage)
}

func TestProcessJobValidationFailureDoesNotRetry(t *testing.T) {
	store, _, generator, svc := reportFixture()
	generator.err = appErrors.Clone(appErrors.ErrValidation, "department_id required")
	store.jobsByID = map[string]*models.ReportJob{
		"job-1": {
			ID:     "job-1",
			Type:   models.ReportTypeDepartmentStats,
			Status: models.ReportStatusQueued,
			Params: models.ReportJobParams{Format: models.ReportFormatCSV},
		},
	}

	// A nil return keeps the queue from re-enqueueing a job that can never
	// succeed.
	err := svc.ProcessJob(context.Background(), jobs.Job{ID: "job-1", Payload: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, store.jobsByID["job-1"].Status)
}

func TestProcessJobSkipsFinished(t *testing.T) {
	store, _, generator, svc := reportFixture()
	store.jobsByID = map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Status: models.ReportStatusFinished},
	}

	err := svc.ProcessJob(context.Background(), jobs.Job{ID: "job-1", Payload: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, generator.calls)
}

func TestGetStatusOwnership(t *testing.T) {
	store, _, _, svc := reportFixture()
	store.jobsByID = map[string]*models.ReportJob{
		"job-1": {ID: "job-1", CreatedBy: "u1", Status: models.ReportStatusQueued},
	}

	owner := &models.JWTClaims{UserID: "u1"}
	_, err := svc.GetStatus(context.Background(), "job-1", owner)
	require.NoError(t, err)

	director := &models.JWTClaims{UserID: "u2", Roles: []models.RoleTag{models.RoleAcademicDirector}}
	_, err = svc.GetStatus(context.Background(), "job-1", director)
	require.NoError(t, err)

	stranger := &models.JWTClaims{UserID: "u3", Roles: []models.RoleTag{models.RoleHOD}}
	_, err = svc.GetStatus(context.Background(), "job-1", stranger)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRecoverPendingJobs(t *testing.T) {
	store, queue, _, svc := reportFixture()
	store.queued = []models.ReportJob{
		{ID: "job-1", Type: models.ReportTypeOverallStats},
		{ID: "job-2", Type: models.ReportTypeAllFeedback},
	}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 2)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
	assert.Equal(t, "job-2", queue.enqueued[1].ID)
}
