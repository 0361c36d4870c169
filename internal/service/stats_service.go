package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/models"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
)

// StatsQuestionStore is the question catalog access the aggregators need.
type StatsQuestionStore interface {
	FindByID(ctx context.Context, id string) (*models.Question, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Question, error)
}

// StatsDepartmentStore is the department catalog access the aggregators need.
type StatsDepartmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
	List(ctx context.Context, activeOnly bool) ([]models.Department, error)
}

// StatsFeedbackStore is the rating record access the aggregators need.
type StatsFeedbackStore interface {
	ListByQuestion(ctx context.Context, questionID string) ([]models.Feedback, error)
	ListByQuestions(ctx context.Context, questionIDs []string) ([]models.Feedback, error)
}

// StatsService computes question, department and institution statistics. Every
// call recomputes from the live store; results always reflect the latest
// writes at the cost of an O(n) scan per call.
type StatsService struct {
	questions   StatsQuestionStore
	departments StatsDepartmentStore
	feedback    StatsFeedbackStore
	metrics     *MetricsService
	logger      *zap.Logger
	workers     int
}

// NewStatsService constructs a stats service. workers bounds how many
// departments are aggregated concurrently in the institution view.
func NewStatsService(questions StatsQuestionStore, departments StatsDepartmentStore, feedback StatsFeedbackStore, metrics *MetricsService, logger *zap.Logger, workers int) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 4
	}
	return &StatsService{
		questions:   questions,
		departments: departments,
		feedback:    feedback,
		metrics:     metrics,
		logger:      logger,
		workers:     workers,
	}
}

// StatsForQuestion aggregates every rating submitted against one question.
func (s *StatsService) StatsForQuestion(ctx context.Context, questionID string) (*models.QuestionStats, error) {
	question, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load question")
	}

	records, err := s.feedback.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load feedback")
	}

	ratings := make([]int, 0, len(records))
	for _, record := range records {
		ratings = append(ratings, record.Rating)
	}

	return &models.QuestionStats{
		QuestionID:   question.ID,
		QuestionText: question.Text,
		RatingStats:  ReduceRatings(ratings),
	}, nil
}

// StatsForDepartment aggregates every question owned by the department,
// inactive questions included: a deactivated question's historical responses
// still count toward its department's record. The department rollup pools all
// raw ratings across questions.
func (s *StatsService) StatsForDepartment(ctx context.Context, departmentID string) (*models.DepartmentStats, error) {
	department, err := s.departments.FindByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load department")
	}
	return s.statsForDepartment(ctx, department)
}

func (s *StatsService) statsForDepartment(ctx context.Context, department *models.Department) (*models.DepartmentStats, error) {
	questions, err := s.questions.ListByDepartment(ctx, department.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load questions")
	}

	questionIDs := make([]string, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}

	start := time.Now()
	records, err := s.feedback.ListByQuestions(ctx, questionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load feedback")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("feedback_by_questions", time.Since(start))
	}

	ratingsByQuestion := make(map[string][]int, len(questions))
	pooled := make([]int, 0, len(records))
	for _, record := range records {
		ratingsByQuestion[record.QuestionID] = append(ratingsByQuestion[record.QuestionID], record.Rating)
		pooled = append(pooled, record.Rating)
	}

	// Questions arrive ordered by id ascending from the store; perQuestion
	// keeps that order.
	perQuestion := make([]models.QuestionStats, 0, len(questions))
	for _, q := range questions {
		perQuestion = append(perQuestion, models.QuestionStats{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			RatingStats:  ReduceRatings(ratingsByQuestion[q.ID]),
		})
	}

	return &models.DepartmentStats{
		DepartmentID:   department.ID,
		DepartmentName: department.Name,
		RatingStats:    ReduceRatings(pooled),
		PerQuestion:    perQuestion,
	}, nil
}

// StatsOverall aggregates every active department. Inactive departments vanish
// from the institution view entirely, even though their own department stats
// remain queryable. An empty active set is a zero result, not an error.
func (s *StatsService) StatsOverall(ctx context.Context) (*models.InstitutionStats, error) {
	departments, err := s.departments.List(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to list departments")
	}

	perDepartment := make([]models.DepartmentStats, len(departments))
	errs := make([]error, len(departments))

	// Per-department rollups are independent; compute them concurrently but
	// index results by position so ordering never depends on scheduling.
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range departments {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			stats, err := s.statsForDepartment(ctx, &departments[idx])
			if err != nil {
				errs[idx] = err
				return
			}
			perDepartment[idx] = *stats
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	overall := models.NewRatingStats()
	for i := range perDepartment {
		mergeStats(&overall, perDepartment[i].RatingStats)
	}

	return &models.InstitutionStats{
		RatingStats:   overall,
		PerDepartment: perDepartment,
	}, nil
}
