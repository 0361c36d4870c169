package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-insights-api/internal/dto"
	"github.com/noah-isme/feedback-insights-api/internal/models"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
)

type feedbackWriter interface {
	Upsert(ctx context.Context, record *models.Feedback) error
}

type feedbackQuestionStore interface {
	FindByID(ctx context.Context, id string) (*models.Question, error)
}

type feedbackUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// FeedbackService handles rating submission. Submission is the only write
// path into the feedback table; everything downstream is read-only.
type FeedbackService struct {
	feedback  feedbackWriter
	questions feedbackQuestionStore
	users     feedbackUserStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService constructs a feedback service.
func NewFeedbackService(feedback feedbackWriter, questions feedbackQuestionStore, users feedbackUserStore, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		feedback:  feedback,
		questions: questions,
		users:     users,
		validator: validate,
		logger:    logger,
	}
}

// Submit records a rating for the given user. Resubmitting against the same
// question replaces the prior rating instead of appending a new record.
func (s *FeedbackService) Submit(ctx context.Context, userID string, req dto.SubmitFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	question, err := s.questions.FindByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load question")
	}
	if !question.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "question is no longer accepting feedback")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load user")
	}
	if !user.HasRole(question.TargetRole) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "question is not assigned to your role")
	}

	record := &models.Feedback{
		QuestionID:  question.ID,
		UserID:      user.ID,
		Rating:      req.Rating,
		Notes:       req.Notes,
		MeetingID:   req.MeetingID,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.feedback.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to store feedback")
	}

	s.logger.Debug("feedback recorded",
		zap.String("question_id", question.ID),
		zap.String("user_id", user.ID),
		zap.Int("rating", req.Rating),
	)
	return record, nil
}
