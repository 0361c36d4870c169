package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/feedback-insights-api/internal/models"
)

// QuestionRepository provides read access to the question catalog.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new instance of QuestionRepository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = `id, text, department_id, year, target_role, active, created_at`

// FindByID returns a question by identifier.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.Question, error) {
	query := fmt.Sprintf(`SELECT %s FROM questions WHERE id = $1 LIMIT 1`, questionColumns)
	var question models.Question
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find question by id: %w", err)
	}
	return &question, nil
}

// ListByDepartment returns every question owned by the department, inactive
// ones included, ordered by id so aggregation output stays deterministic.
func (r *QuestionRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.Question, error) {
	query := fmt.Sprintf(`SELECT %s FROM questions WHERE department_id = $1 ORDER BY id ASC`, questionColumns)
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, departmentID); err != nil {
		return nil, fmt.Errorf("list questions by department: %w", err)
	}
	return questions, nil
}
