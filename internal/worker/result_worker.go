package worker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// ResultSink appends terminal results to the durable feed.
type ResultSink interface {
	InsertBatch(ctx context.Context, events []model.AttemptResultEvent) error
}

// ResultWorker consumes persist_results_queue in batches into attempt_results,
// the feed read by external leaderboards.
type ResultWorker struct {
	loop *batchLoop[model.AttemptResultEvent]
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(queue Queue, sink ResultSink, opts BatchOptions, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		loop: newBatchLoop(queue, opts, sink.InsertBatch, log.With().Str("component", "result_worker").Logger()),
	}
}

// Start begins the worker loop. Call in a goroutine; it returns after ctx is
// done and the queue has been drained.
func (w *ResultWorker) Start(ctx context.Context) {
	w.loop.run(ctx)
}
