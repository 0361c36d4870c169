package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/dto"
	"github.com/noah-isme/feedback-insights-api/internal/models"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
)

type fakeFeedbackWriter struct {
	upserts []*models.Feedback
	err     error
}

func (f *fakeFeedbackWriter) Upsert(_ context.Context, record *models.Feedback) error {
	if f.err != nil {
		return f.err
	}
	record.ID = "generated"
	f.upserts = append(f.upserts, record)
	return nil
}

type fakeSubmitQuestionStore struct {
	question *models.Question
}

func (f *fakeSubmitQuestionStore) FindByID(context.Context, string) (*models.Question, error) {
	if f.question == nil {
		return nil, sql.ErrNoRows
	}
	return f.question, nil
}

type fakeSubmitUserStore struct {
	user *models.User
}

func (f *fakeSubmitUserStore) FindByID(context.Context, string) (*models.User, error) {
	if f.user == nil {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func submitFixture() (*fakeFeedbackWriter, *fakeSubmitQuestionStore, *fakeSubmitUserStore) {
	writer := &fakeFeedbackWriter{}
	questions := &fakeSubmitQuestionStore{question: &models.Question{
		ID:         "q1",
		Text:       "How was the lecture?",
		TargetRole: models.RoleStudent,
		Active:     true,
	}}
	users := &fakeSubmitUserStore{user: &models.User{
		ID:       "u1",
		Username: "alice",
		Roles:    pq.StringArray{"student"},
		Active:   true,
	}}
	return writer, questions, users
}

func TestSubmitFeedback(t *testing.T) {
	writer, questions, users := submitFixture()
	svc := NewFeedbackService(writer, questions, users, nil, zap.NewNop())

	record, err := svc.Submit(context.Background(), "u1", dto.SubmitFeedbackRequest{
		QuestionID: "q1",
		Rating:     4,
	})
	require.NoError(t, err)
	assert.Equal(t, "q1", record.QuestionID)
	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, 4, record.Rating)
	require.Len(t, writer.upserts, 1)
}

func TestSubmitFeedbackRatingOutOfRange(t *testing.T) {
	writer, questions, users := submitFixture()
	svc := NewFeedbackService(writer, questions, users, nil, zap.NewNop())

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), "u1", dto.SubmitFeedbackRequest{
			QuestionID: "q1",
			Rating:     rating,
		})
		require.Error(t, err)

		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
	assert.Empty(t, writer.upserts)
}

func TestSubmitFeedbackUnknownQuestion(t *testing.T) {
	writer, _, users := submitFixture()
	svc := NewFeedbackService(writer, &fakeSubmitQuestionStore{}, users, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "u1", dto.SubmitFeedbackRequest{QuestionID: "missing", Rating: 3})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubmitFeedbackInactiveQuestion(t *testing.T) {
	writer, questions, users := submitFixture()
	questions.question.Active = false
	svc := NewFeedbackService(writer, questions, users, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "u1", dto.SubmitFeedbackRequest{QuestionID: "q1", Rating: 3})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSubmitFeedbackRoleMismatch(t *testing.T) {
	writer, questions, users := submitFixture()
	users.user.Roles = pq.StringArray{"staff"}
	svc := NewFeedbackService(writer, questions, users, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "u1", dto.SubmitFeedbackRequest{QuestionID: "q1", Rating: 3})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, writer.upserts)
}

func TestSubmitFeedbackStoreFailure(t *testing.T) {
	writer, questions, users := submitFixture()
	writer.err = errors.New("connection refused")
	svc := NewFeedbackService(writer, questions, users, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "u1", dto.SubmitFeedbackRequest{QuestionID: "q1", Rating: 3})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErr.Code)
}
