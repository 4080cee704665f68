package worker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// DraftSink persists autosaved responses durably.
type DraftSink interface {
	UpsertBatch(ctx context.Context, entries []model.DraftEntry) error
}

// AutosaveWorker consumes persist_drafts_queue and UPSERTs drafts to PostgreSQL
// so they survive the loss of the Redis buffer.
type AutosaveWorker struct {
	loop *batchLoop[model.DraftEntry]
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(queue Queue, sink DraftSink, opts BatchOptions, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		loop: newBatchLoop(queue, opts, sink.UpsertBatch, log.With().Str("component", "autosave_worker").Logger()),
	}
}

// Start begins the worker loop. Call in a goroutine; it returns after ctx is
// done and the queue has been drained.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.loop.run(ctx)
}
