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

// TemplateRepository handles test template data access.
type TemplateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// GetByID retrieves a template with its sections and question references in
// authored order.
func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestTemplate, error) {
	t := &model.TestTemplate{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, mode, duration_minutes, negative_marking, default_negative_marks,
		        randomize_section_order, is_active, created_at, updated_at
		 FROM test_templates WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Mode, &t.DurationMinutes, &t.NegativeMarking, &t.DefaultNegativeMarks,
		&t.RandomizeSectionOrder, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.title, s.order_num, s.randomize_question_order,
		        q.question_ref, q.marks, q.negative_marks
		 FROM template_sections s
		 LEFT JOIN template_section_questions q ON q.section_id = s.id
		 WHERE s.template_id = $1
		 ORDER BY s.order_num, q.order_num`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list template sections: %w", err)
	}
	defer rows.Close()

	var lastSection int64 = -1
	for rows.Next() {
		var (
			sectionID int64
			sec       model.TemplateSection
			ref       *string
			marks     *float64
			penalty   *float64
		)
		if err := rows.Scan(&sectionID, &sec.Title, &sec.Order, &sec.RandomizeQuestionOrder, &ref, &marks, &penalty); err != nil {
			return nil, fmt.Errorf("scan template section: %w", err)
		}
		if sectionID != lastSection {
			t.Sections = append(t.Sections, sec)
			lastSection = sectionID
		}
		if ref == nil {
			continue
		}

		q := model.TemplateQuestion{QuestionRef: *ref, NegativeMarks: penalty}
		if marks != nil {
			q.Marks = *marks
		}
		cur := &t.Sections[len(t.Sections)-1]
		cur.Questions = append(cur.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template sections: %w", err)
	}
	return t, nil
}

// ListActiveIDs returns the ids of every active template.
// IsActive reports whether the template exists and is open for new attempts.
func (r *TemplateRepository) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT is_active FROM test_templates WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check template active: %w", err)
	}
	return active, nil
}

func (r *TemplateRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM test_templates WHERE is_active = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save inserts or replaces a template and its whole section structure in one
// transaction. Attempts already started keep their own frozen copy.
func (r *TemplateRepository) Save(ctx context.Context, t *model.TestTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO test_templates (id, title, mode, duration_minutes, negative_marking,
			                             default_negative_marks, randomize_section_order, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE
			 SET title = EXCLUDED.title, mode = EXCLUDED.mode,
			     duration_minutes = EXCLUDED.duration_minutes,
			     negative_marking = EXCLUDED.negative_marking,
			     default_negative_marks = EXCLUDED.default_negative_marks,
			     randomize_section_order = EXCLUDED.randomize_section_order,
			     is_active = EXCLUDED.is_active,
			     updated_at = NOW()`,
			t.ID, t.Title, t.Mode, t.DurationMinutes, t.NegativeMarking,
			t.DefaultNegativeMarks, t.RandomizeSectionOrder, t.IsActive,
		)
		if err != nil {
			return fmt.Errorf("upsert template: %w", err)
		}

		// Section questions cascade.
		if _, err := tx.Exec(ctx, `DELETE FROM template_sections WHERE template_id = $1`, t.ID); err != nil {
			return fmt.Errorf("clear template sections: %w", err)
		}

		for i, sec := range t.Sections {
			var sectionID int64
			err := tx.QueryRow(ctx,
				`INSERT INTO template_sections (template_id, title, order_num, randomize_question_order)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id`,
				t.ID, sec.Title, i, sec.RandomizeQuestionOrder,
			).Scan(&sectionID)
			if err != nil {
				return fmt.Errorf("insert section %d: %w", i, err)
			}

			for j, q := range sec.Questions {
				_, err := tx.Exec(ctx,
					`INSERT INTO template_section_questions (section_id, order_num, question_ref, marks, negative_marks)
					 VALUES ($1, $2, $3, $4, $5)`,
					sectionID, j, q.QuestionRef, q.Marks, q.NegativeMarks,
				)
				if err != nil {
					return fmt.Errorf("insert section %d question %d: %w", i, j, err)
				}
			}
		}
		return nil
	})
}
