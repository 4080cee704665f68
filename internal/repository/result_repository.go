package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// ResultPublisher fans terminal attempt results out to live subscribers of the
// template channel and to the queue drained by the ResultWorker.
type ResultPublisher struct {
	rdb *redis.Client
}

// NewResultPublisher creates a new ResultPublisher.
func NewResultPublisher(rdb *redis.Client) *ResultPublisher {
	return &ResultPublisher{rdb: rdb}
}

// Publish pushes one result event.
func (p *ResultPublisher) Publish(ctx context.Context, ev model.AttemptResultEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
	pipe.Publish(ctx, config.CacheKey.TemplateResultChannel(ev.TemplateID), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// ResultRepository appends terminal results to the attempt_results feed.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// InsertBatch writes a batch of result events. An attempt appears at most
// once; replays of an already stored event are ignored.
func (r *ResultRepository) InsertBatch(ctx context.Context, events []model.AttemptResultEvent) error {
	if len(events) == 0 {
		return nil
	}

	n := len(events)
	attemptIDs := make([]uuid.UUID, 0, n)
	studentIDs := make([]string, 0, n)
	templateIDs := make([]uuid.UUID, 0, n)
	statuses := make([]string, 0, n)
	scores := make([]float64, 0, n)
	maxScores := make([]float64, 0, n)
	percentages := make([]float64, 0, n)
	finishedAts := make([]time.Time, 0, n)

	for _, ev := range events {
		attemptID, err := uuid.Parse(ev.AttemptID)
		if err != nil {
			return fmt.Errorf("result attempt id %q: %w", ev.AttemptID, err)
		}
		templateID, err := uuid.Parse(ev.TemplateID)
		if err != nil {
			return fmt.Errorf("result template id %q: %w", ev.TemplateID, err)
		}
		attemptIDs = append(attemptIDs, attemptID)
		studentIDs = append(studentIDs, ev.StudentID)
		templateIDs = append(templateIDs, templateID)
		statuses = append(statuses, string(ev.Status))
		scores = append(scores, ev.Score)
		maxScores = append(maxScores, ev.MaxScore)
		percentages = append(percentages, ev.Percentage)
		finishedAts = append(finishedAts, time.Unix(ev.FinishedAt, 0).UTC())
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attempt_results
			(attempt_id, student_id, template_id, status, score, max_score, percentage, finished_at)
		SELECT * FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::uuid[],
			$4::text[],
			$5::float8[],
			$6::float8[],
			$7::float8[],
			$8::timestamptz[]
		)
		ON CONFLICT (attempt_id) DO NOTHING`,
		attemptIDs, studentIDs, templateIDs, statuses, scores, maxScores, percentages, finishedAts,
	)
	if err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}
