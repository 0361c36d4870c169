package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/feedback-insights-api/internal/models"
)

// FeedbackRepository is the read side of the rating record store plus the
// upsert used by submission.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates a new instance of FeedbackRepository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

const feedbackColumns = `id, question_id, user_id, rating, notes, meeting_id, submitted_at`

// ListByQuestion returns every rating record for one question.
func (r *FeedbackRepository) ListByQuestion(ctx context.Context, questionID string) ([]models.Feedback, error) {
	query := fmt.Sprintf(`SELECT %s FROM feedback WHERE question_id = $1 ORDER BY submitted_at ASC`, feedbackColumns)
	var records []models.Feedback
	if err := r.db.SelectContext(ctx, &records, query, questionID); err != nil {
		return nil, fmt.Errorf("list feedback by question: %w", err)
	}
	return records, nil
}

// ListByQuestions returns rating records for a set of questions in one query.
func (r *FeedbackRepository) ListByQuestions(ctx context.Context, questionIDs []string) ([]models.Feedback, error) {
	if len(questionIDs) == 0 {
		return []models.Feedback{}, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf(`SELECT %s FROM feedback WHERE question_id IN (?) ORDER BY question_id ASC, submitted_at ASC`, feedbackColumns),
		questionIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("build feedback query: %w", err)
	}
	query = r.db.Rebind(query)
	var records []models.Feedback
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list feedback by questions: %w", err)
	}
	return records, nil
}

// ListDetailed bulk-fetches every rating record joined with its author,
// question and the author's department. Consumers that walk all records (role
// reports, the all-feedback export) must use this single scan rather than
// per-record lookups.
func (r *FeedbackRepository) ListDetailed(ctx context.Context) ([]models.FeedbackDetail, error) {
	const query = `SELECT f.id, f.question_id, f.user_id, f.rating, f.notes, f.meeting_id, f.submitted_at,
        u.username, u.full_name, u.department_id AS user_department_id, u.year AS user_year, u.roles AS user_roles,
        d.name AS department_name, q.text AS question_text
        FROM feedback f
        JOIN users u ON u.id = f.user_id
        JOIN questions q ON q.id = f.question_id
        LEFT JOIN departments d ON d.id = u.department_id
        ORDER BY u.department_id ASC NULLS LAST, u.id ASC, f.submitted_at ASC`
	var records []models.FeedbackDetail
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list detailed feedback: %w", err)
	}
	return records, nil
}

// Upsert inserts a rating record or, when the author already rated the
// question, replaces rating, notes, meeting and submission time in place. At
// most one record exists per (user, question) pair.
func (r *FeedbackRepository) Upsert(ctx context.Context, record *models.Feedback) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO feedback (id, question_id, user_id, rating, notes, meeting_id, submitted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id, question_id) DO UPDATE
        SET rating = EXCLUDED.rating, notes = EXCLUDED.notes, meeting_id = EXCLUDED.meeting_id, submitted_at = EXCLUDED.submitted_at
        RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		record.ID, record.QuestionID, record.UserID, record.Rating, record.Notes, record.MeetingID, record.SubmittedAt,
	).Scan(&record.ID); err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}
