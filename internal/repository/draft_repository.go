package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// draftTTL bounds how long an autosave buffer lives in Redis.
const draftTTL = 24 * time.Hour

// DraftRepository buffers autosaved responses in a Redis hash per attempt and
// queues them for the AutosaveWorker. PostgreSQL is the durable fallback.
type DraftRepository struct {
	rdb  *redis.Client
	pool *pgxpool.Pool
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(rdb *redis.Client, pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{rdb: rdb, pool: pool}
}

// Save stores one autosaved response keyed by its instance key.
func (r *DraftRepository) Save(ctx context.Context, attemptID uuid.UUID, resp model.SubmittedResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(model.DraftEntry{
		AttemptID:   attemptID.String(),
		InstanceKey: resp.InstanceKey,
		Response:    resp,
		SavedAt:     time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	key := config.CacheKey.AttemptDraftsKey(attemptID.String())
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, resp.InstanceKey, raw)
		pipe.Expire(ctx, key, draftTTL)
		pipe.RPush(ctx, config.WorkerKey.PersistDraftsQueue, entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load returns every autosaved response of an attempt ordered by instance
// key. Redis is read first; PostgreSQL only when the buffer is gone.
func (r *DraftRepository) Load(ctx context.Context, attemptID uuid.UUID) ([]model.SubmittedResponse, error) {
	fields, err := r.rdb.HGetAll(ctx, config.CacheKey.AttemptDraftsKey(attemptID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("load drafts from redis: %w", err)
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		drafts := make([]model.SubmittedResponse, 0, len(keys))
		for _, k := range keys {
			var resp model.SubmittedResponse
			if err := json.Unmarshal([]byte(fields[k]), &resp); err != nil {
				continue
			}
			resp.InstanceKey = k
			drafts = append(drafts, resp)
		}
		return drafts, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT instance_key, payload FROM attempt_drafts
		 WHERE attempt_id = $1
		 ORDER BY instance_key`, attemptID,
	)
	if err != nil {
		return nil, fmt.Errorf("load drafts from postgres: %w", err)
	}
	defer rows.Close()

	var drafts []model.SubmittedResponse
	for rows.Next() {
		var (
			key  string
			resp model.SubmittedResponse
		)
		if err := rows.Scan(&key, &resp); err != nil {
			return nil, err
		}
		resp.InstanceKey = key
		drafts = append(drafts, resp)
	}
	return drafts, rows.Err()
}

// Clear drops the Redis buffer of a finalized attempt. Durable rows stay.
func (r *DraftRepository) Clear(ctx context.Context, attemptID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.AttemptDraftsKey(attemptID.String())).Err()
}

// UpsertBatch persists queued drafts. Only the newest entry per instance key
// is written, and a row is never replaced by an older save.
func (r *DraftRepository) UpsertBatch(ctx context.Context, entries []model.DraftEntry) error {
	latest := make(map[[2]string]model.DraftEntry, len(entries))
	for _, e := range entries {
		k := [2]string{e.AttemptID, e.InstanceKey}
		if cur, ok := latest[k]; !ok || e.SavedAt >= cur.SavedAt {
			latest[k] = e
		}
	}
	if len(latest) == 0 {
		return nil
	}

	attemptIDs := make([]uuid.UUID, 0, len(latest))
	keys := make([]string, 0, len(latest))
	payloads := make([]string, 0, len(latest))
	savedAts := make([]time.Time, 0, len(latest))
	for _, e := range latest {
		id, err := uuid.Parse(e.AttemptID)
		if err != nil {
			return fmt.Errorf("draft attempt id %q: %w", e.AttemptID, err)
		}
		raw, err := json.Marshal(e.Response)
		if err != nil {
			return err
		}
		attemptIDs = append(attemptIDs, id)
		keys = append(keys, e.InstanceKey)
		payloads = append(payloads, string(raw))
		savedAts = append(savedAts, time.UnixMilli(e.SavedAt).UTC())
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attempt_drafts (attempt_id, instance_key, payload, updated_at)
		SELECT u.attempt_id, u.instance_key, u.payload::jsonb, u.updated_at
		FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::text[],
			$4::timestamptz[]
		) AS u (attempt_id, instance_key, payload, updated_at)
		ON CONFLICT (attempt_id, instance_key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
		WHERE attempt_drafts.updated_at <= EXCLUDED.updated_at`,
		attemptIDs, keys, payloads, savedAts,
	)
	if err != nil {
		return fmt.Errorf("upsert drafts: %w", err)
	}
	return nil
}
