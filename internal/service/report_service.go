package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/dto"
	"github.com/noah-isme/feedback-insights-api/internal/models"
	"github.com/noah-isme/feedback-insights-api/internal/repository"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
	"github.com/noah-isme/feedback-insights-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type reportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Cleanup(ttl time.Duration) ([]string, error)
}

// ReportService drives the report job lifecycle: creation, background
// processing, status polling and signed downloads.
type ReportService struct {
	store     reportJobStore
	queue     jobEnqueuer
	generator reportGenerator
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(store reportJobStore, queue jobEnqueuer, generator reportGenerator, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{store: store, queue: queue, generator: generator, metrics: metrics, logger: logger}
}

// CreateJob validates the request, persists a queued job and hands it to the
// worker pool. Generation always happens in the background.
func (s *ReportService) CreateJob(ctx context.Context, createdBy string, req dto.ReportRequest) (*models.ReportJob, error) {
	if !models.ValidReportType(string(req.Type)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report type %q", req.Type))
	}
	if !models.ValidReportFormat(string(req.Format)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report format %q", req.Format))
	}
	switch req.Type {
	case models.ReportTypeDepartmentStats:
		if req.DepartmentID == nil || *req.DepartmentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department_id is required for department stats reports")
		}
	case models.ReportTypeIndividualRole:
		if req.Role == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "role is required for individual reports")
		}
		if !models.ValidRoleTag(string(*req.Role)) {
			return nil, appErrors.Clone(appErrors.ErrInvalidRole, "")
		}
	}

	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			DepartmentID: req.DepartmentID,
			Role:         req.Role,
			Format:       req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.enqueue(job); err != nil {
		s.logger.Error("failed to enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
		s.markFailed(context.WithoutCancel(ctx), job, "worker queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(job.Params.Format)))
	return job, nil
}

// GetStatus returns job progress. Non-directors can only inspect their own
// jobs.
func (s *ReportService) GetStatus(ctx context.Context, id string, claims *models.JWTClaims) (*models.ReportJob, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if claims != nil && job.CreatedBy != claims.UserID && !CanViewIndividualReports(claims).Allow {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report job belongs to another user")
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the underlying file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*models.ReportJob, *os.File, error) {
	jobID, relPath, _, err := s.generator.ParseToken(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "report is not ready yet")
	}

	file, err := s.generator.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report artifact no longer available")
	}
	return job, file, nil
}

// ProcessJob is the queue handler: it renders the artifact and records the
// outcome on the job row.
func (s *ReportService) ProcessJob(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok || jobID == "" {
		s.logger.Error("report job payload malformed", zap.Any("payload", queued.Payload))
		return nil
	}

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}
	if job.Status == models.ReportStatusFinished {
		return nil
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := s.store.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}

	started := time.Now()
	result, err := s.generator.Generate(ctx, job)
	if err != nil {
		s.logger.Error("report generation failed",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Error(err))
		s.markFailed(ctx, job, err.Error())
		s.metrics.CountReportJob(string(job.Type), "failed")
		// Validation errors never succeed on retry.
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Status < 500 {
			return nil
		}
		return err
	}

	finished := models.ReportStatusFinished
	done := 100
	now := time.Now().UTC()
	if err := s.store.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &result.URL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}

	s.metrics.CountReportJob(string(job.Type), "finished")
	s.logger.Info("report job finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Duration("took", time.Since(started)))
	return nil
}

// RecoverPendingJobs re-enqueues jobs left queued by a previous process.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.store.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover pending report jobs", zap.Error(err))
		return
	}
	for i := range pending {
		if err := s.enqueue(&pending[i]); err != nil {
			s.logger.Warn("failed to re-enqueue report job", zap.String("job_id", pending[i].ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered pending report jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup periodically deletes expired artifacts until ctx is done.
func (s *ReportService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.generator.Cleanup(ttl)
				if err != nil {
					s.logger.Warn("report artifact cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("removed expired report artifacts", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func (s *ReportService) enqueue(job *models.ReportJob) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    string(job.Type),
		Payload: job.ID,
	})
}

func (s *ReportService) markFailed(ctx context.Context, job *models.ReportJob, message string) {
	failed := models.ReportStatusFailed
	now := time.Now().UTC()
	if err := s.store.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}
