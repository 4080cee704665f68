package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// QuestionRepository reads question bank content from PostgreSQL.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByIDs resolves the given question ids. Ids that do not exist are simply
// absent from the result; the caller decides whether that is fatal.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.Question, error) {
	out := make(map[string]*model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, question_type, options, COALESCE(correct_answer, ''), COALESCE(explanation, '')
		 FROM questions WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		q := &model.Question{}
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.QuestionType, &q.Options, &q.CorrectAnswer, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// Upsert inserts or replaces a question.
func (r *QuestionRepository) Upsert(ctx context.Context, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (id, question_text, question_type, options, correct_answer, explanation)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		 ON CONFLICT (id) DO UPDATE
		 SET question_text = EXCLUDED.question_text,
		     question_type = EXCLUDED.question_type,
		     options = EXCLUDED.options,
		     correct_answer = EXCLUDED.correct_answer,
		     explanation = EXCLUDED.explanation`,
		q.ID, q.QuestionText, q.QuestionType, q.Options, q.CorrectAnswer, q.Explanation,
	)
	return err
}
