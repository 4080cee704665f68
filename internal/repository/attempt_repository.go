package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// AttemptRepository handles attempt persistence. The sections column is
// written once by CreateActive; a trigger rejects any later change to it.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, student_id, template_id, template_title, attempt_no, status,
	started_at, expires_at, submitted_at, rules, sections, responses, score, max_score, dropped_responses`

// CreateActive inserts a new in-progress attempt. It returns false without an
// error when the insert loses to a concurrent start, either on the one
// in-progress attempt per student and template or on the attempt number.
// The unique indexes decide that, not the caller.
func (r *AttemptRepository) CreateActive(ctx context.Context, a *model.Attempt) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, student_id, template_id, template_title, attempt_no, status,
		                       started_at, expires_at, rules, sections, max_score)
		 VALUES ($1, $2, $3, $4,
		         (SELECT COALESCE(MAX(attempt_no), 0) + 1 FROM attempts WHERE student_id = $2 AND template_id = $3),
		         $5, $6, $7, $8, $9, $10)
		 ON CONFLICT DO NOTHING
		 RETURNING attempt_no`,
		a.ID, a.StudentID, a.TemplateID, a.TemplateTitle, a.Status,
		a.StartedAt, a.ExpiresAt, a.Rules, a.Sections, a.MaxScore,
	).Scan(&a.AttemptNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert attempt: %w", err)
	}
	return true, nil
}

// GetByID retrieves a single attempt with its frozen snapshot.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id)
	return scanAttempt(row)
}

// GetActive retrieves the in-progress attempt of a student for a template.
func (r *AttemptRepository) GetActive(ctx context.Context, studentID string, templateID uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE student_id = $1 AND template_id = $2 AND status = 'in_progress'`,
		studentID, templateID,
	)
	return scanAttempt(row)
}

// Finalize applies the single terminal transition as a compare-and-set on
// status. A submission additionally requires the deadline not to have passed
// at FinishedAt. It reports whether this call performed the transition.
func (r *AttemptRepository) Finalize(ctx context.Context, id uuid.UUID, f model.Finalization) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $2, responses = $3, score = $4, submitted_at = $5, dropped_responses = $6
		 WHERE id = $1
		   AND status = 'in_progress'
		   AND ($2 <> 'submitted' OR expires_at > $5)`,
		id, f.Status, f.Responses, f.Score, f.FinishedAt, f.DroppedResponses,
	)
	if err != nil {
		return false, fmt.Errorf("finalize attempt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByStudent returns summaries of a student's attempts, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID string) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, template_id, template_title, attempt_no, status, started_at, expires_at,
		        submitted_at, score, max_score
		 FROM attempts
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]model.AttemptSummary, 0)
	for rows.Next() {
		var s model.AttemptSummary
		if err := rows.Scan(&s.ID, &s.TemplateID, &s.TemplateTitle, &s.AttemptNo, &s.Status,
			&s.StartedAt, &s.ExpiresAt, &s.SubmittedAt, &s.Score, &s.MaxScore); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var responses []model.Response
	err := row.Scan(&a.ID, &a.StudentID, &a.TemplateID, &a.TemplateTitle, &a.AttemptNo, &a.Status,
		&a.StartedAt, &a.ExpiresAt, &a.SubmittedAt, &a.Rules, &a.Sections, &responses,
		&a.Score, &a.MaxScore, &a.DroppedResponses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	a.Responses = responses
	return a, nil
}
