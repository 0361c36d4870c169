package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/models"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
)

type fakeQuestionStore struct {
	questions map[string]*models.Question
	byDept    map[string][]models.Question
	findErr   error
	listErr   error
}

func (f *fakeQuestionStore) FindByID(_ context.Context, id string) (*models.Question, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	q, ok := f.questions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return q, nil
}

func (f *fakeQuestionStore) ListByDepartment(_ context.Context, departmentID string) ([]models.Question, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byDept[departmentID], nil
}

type fakeDepartmentStore struct {
	departments map[string]*models.Department
	active      []models.Department
	all         []models.Department
	listErr     error
}

func (f *fakeDepartmentStore) FindByID(_ context.Context, id string) (*models.Department, error) {
	d, ok := f.departments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (f *fakeDepartmentStore) List(_ context.Context, activeOnly bool) ([]models.Department, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if activeOnly {
		return f.active, nil
	}
	return f.all, nil
}

type fakeFeedbackStore struct {
	byQuestion map[string][]models.Feedback
	listErr    error
}

func (f *fakeFeedbackStore) ListByQuestion(_ context.Context, questionID string) ([]models.Feedback, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byQuestion[questionID], nil
}

func (f *fakeFeedbackStore) ListByQuestions(_ context.Context, questionIDs []string) ([]models.Feedback, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Feedback
	for _, id := range questionIDs {
		out = append(out, f.byQuestion[id]...)
	}
	return out, nil
}

func ratingsFeedback(questionID string, ratings ...int) []models.Feedback {
	out := make([]models.Feedback, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, models.Feedback{QuestionID: questionID, Rating: r})
	}
	return out
}

func TestStatsForQuestion(t *testing.T) {
	questions := &fakeQuestionStore{questions: map[string]*models.Question{
		"q1": {ID: "q1", Text: "How was the session?"},
	}}
	feedback := &fakeFeedbackStore{byQuestion: map[string][]models.Feedback{
		"q1": ratingsFeedback("q1", 5, 5, 4),
	}}

	svc := NewStatsService(questions, &fakeDepartmentStore{}, feedback, nil, zap.NewNop(), 2)

	stats, err := svc.StatsForQuestion(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", stats.QuestionID)
	assert.Equal(t, "How was the session?", stats.QuestionText)
	assert.Equal(t, 3, stats.TotalResponses)
	assert.Equal(t, 4.67, stats.AverageRating)
}

func TestStatsForQuestionNotFound(t *testing.T) {
	svc := NewStatsService(&fakeQuestionStore{}, &fakeDepartmentStore{}, &fakeFeedbackStore{}, nil, zap.NewNop(), 2)

	_, err := svc.StatsForQuestion(context.Background(), "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStatsForQuestionNoFeedbackIsZeroResult(t *testing.T) {
	questions := &fakeQuestionStore{questions: map[string]*models.Question{
		"q1": {ID: "q1", Text: "New question"},
	}}
	svc := NewStatsService(questions, &fakeDepartmentStore{}, &fakeFeedbackStore{}, nil, zap.NewNop(), 2)

	stats, err := svc.StatsForQuestion(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalResponses)
	assert.Equal(t, 0.0, stats.AverageRating)
	assert.Len(t, stats.RatingDistribution, 5)
}

func TestStatsForDepartmentPoolsAcrossQuestions(t *testing.T) {
	departments := &fakeDepartmentStore{departments: map[string]*models.Department{
		"d1": {ID: "d1", Name: "Engineering", Active: true},
	}}
	questions := &fakeQuestionStore{byDept: map[string][]models.Question{
		"d1": {
			{ID: "q1", Text: "First", DepartmentID: "d1", Active: true},
			{ID: "q2", Text: "Second", DepartmentID: "d1", Active: false},
		},
	}}
	feedback := &fakeFeedbackStore{byQuestion: map[string][]models.Feedback{
		"q1": ratingsFeedback("q1", 5, 5, 4),
		"q2": ratingsFeedback("q2", 2),
	}}

	svc := NewStatsService(questions, departments, feedback, nil, zap.NewNop(), 2)

	stats, err := svc.StatsForDepartment(context.Background(), "d1")
	require.NoError(t, err)

	// Pooled across all raw ratings: (5+5+4+2)/4, not the mean of per-question
	// averages.
	assert.Equal(t, 4, stats.TotalResponses)
	assert.Equal(t, 4.0, stats.AverageRating)

	// Inactive questions still contribute their historical responses.
	require.Len(t, stats.PerQuestion, 2)
	assert.Equal(t, "q1", stats.PerQuestion[0].QuestionID)
	assert.Equal(t, "q2", stats.PerQuestion[1].QuestionID)
	assert.Equal(t, 2.0, stats.PerQuestion[1].AverageRating)
}

func TestStatsForDepartmentNotFound(t *testing.T) {
	svc := NewStatsService(&fakeQuestionStore{}, &fakeDepartmentStore{}, &fakeFeedbackStore{}, nil, zap.NewNop(), 2)

	_, err := svc.StatsForDepartment(context.Background(), "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStatsOverallActiveDepartmentsOnly(t *testing.T) {
	departments := &fakeDepartmentStore{
		active: []models.Department{
			{ID: "d1", Name: "Engineering", Active: true},
			{ID: "d2", Name: "Science", Active: true},
		},
	}
	questions := &fakeQuestionStore{byDept: map[string][]models.Question{
		"d1": {{ID: "q1", Text: "First", DepartmentID: "d1"}},
		"d2": {{ID: "q2", Text: "Second", DepartmentID: "d2"}},
		"d3": {{ID: "q3", Text: "Hidden", DepartmentID: "d3"}},
	}}
	feedback := &fakeFeedbackStore{byQuestion: map[string][]models.Feedback{
		"q1": ratingsFeedback("q1", 5, 3),
		"q2": ratingsFeedback("q2", 4, 4),
		"q3": ratingsFeedback("q3", 1, 1),
	}}

	svc := NewStatsService(questions, departments, feedback, nil, zap.NewNop(), 2)

	stats, err := svc.StatsOverall(context.Background())
	require.NoError(t, err)

	// d3 is inactive and its ratings never reach the institution rollup.
	assert.Equal(t, 4, stats.TotalResponses)
	assert.Equal(t, 4.0, stats.AverageRating)

	require.Len(t, stats.PerDepartment, 2)
	assert.Equal(t, "d1", stats.PerDepartment[0].DepartmentID)
	assert.Equal(t, "d2", stats.PerDepartment[1].DepartmentID)
}

func TestStatsOverallEmptyIsZeroResult(t *testing.T) {
	svc := NewStatsService(&fakeQuestionStore{}, &fakeDepartmentStore{}, &fakeFeedbackStore{}, nil, zap.NewNop(), 2)

	stats, err := svc.StatsOverall(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalResponses)
	assert.Equal(t, 0.0, stats.AverageRating)
	assert.Empty(t, stats.PerDepartment)
}

func TestStatsOverallDeterministicOrdering(t *testing.T) {
	departments := &fakeDepartmentStore{
		active: []models.Department{
			{ID: "d1", Name: "A", Active: true},
			{ID: "d2", Name: "B", Active: true},
			{ID: "d3", Name: "C", Active: true},
			{ID: "d4", Name: "D", Active: true},
		},
	}
	svc := NewStatsService(&fakeQuestionStore{}, departments, &fakeFeedbackStore{}, nil, zap.NewNop(), 2)

	// Workers race over the department list; the output order must follow the
	// store order regardless of scheduling.
	for i := 0; i < 10; i++ {
		stats, err := svc.StatsOverall(context.Background())
		require.NoError(t, err)
		require.Len(t, stats.PerDepartment, 4)
		for idx, id := range []string{"d1", "d2", "d3", "d4"} {
			assert.Equal(t, id, stats.PerDepartment[idx].DepartmentID)
		}
	}
}

func TestStatsOverallPropagatesStoreErrors(t *testing.T) {
	departments := &fakeDepartmentStore{
		active: []models.Department{{ID: "d1", Name: "A", Active: true}},
	}
	feedback := &fakeFeedbackStore{listErr: errors.New("connection refused")}
	svc := NewStatsService(&fakeQuestionStore{byDept: map[string][]models.Question{
		"d1": {{ID: "q1", DepartmentID: "d1"}},
	}}, departments, feedback, nil, zap.NewNop(), 2)

	_, err := svc.StatsOverall(context.Background())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErr.Code)
}
