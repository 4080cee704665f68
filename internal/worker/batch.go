package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// BatchOptions tunes a batching worker.
type BatchOptions struct {
	Size       int           // Flush when this many items are buffered
	Timeout    time.Duration // Flush a partial batch after this long
	Poll       time.Duration // Max time one Pop blocks
	RetryDelay time.Duration // Pause after a failed flush
}

// DefaultBatchOptions matches the queue volumes of a single exam room.
var DefaultBatchOptions = BatchOptions{
	Size:       50,
	Timeout:    2 * time.Second,
	Poll:       time.Second,
	RetryDelay: 5 * time.Second,
}

// batchLoop pops JSON items from a queue, decodes them into T and flushes
// them in batches. A failed flush pushes the raw items back for retry.
type batchLoop[T any] struct {
	queue Queue
	opts  BatchOptions
	flush func(ctx context.Context, batch []T) error
	log   zerolog.Logger

	items []T
	raws  []string
}

func newBatchLoop[T any](queue Queue, opts BatchOptions, flush func(context.Context, []T) error, log zerolog.Logger) *batchLoop[T] {
	if opts.Size <= 0 {
		opts.Size = DefaultBatchOptions.Size
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBatchOptions.Timeout
	}
	if opts.Poll <= 0 {
		opts.Poll = DefaultBatchOptions.Poll
	}
	return &batchLoop[T]{
		queue: queue,
		opts:  opts,
		flush: flush,
		log:   log,
		items: make([]T, 0, opts.Size),
		raws:  make([]string, 0, opts.Size),
	}
}

// run blocks until ctx is done, then flushes what is buffered and drains the
// queue before returning.
func (b *batchLoop[T]) run(ctx context.Context) {
	b.log.Info().Msg("Worker started")
	lastFlush := time.Now()

	for {
		if len(b.items) > 0 &&
			(len(b.items) >= b.opts.Size || time.Since(lastFlush) >= b.opts.Timeout) {
			if !b.flushSafe(ctx) {
				b.sleep(ctx, b.opts.RetryDelay)
			}
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			b.log.Info().Msg("Worker stopping...")
			b.drain(context.Background())
			b.log.Info().Msg("Worker stopped")
			return
		default:
		}

		raw, ok, err := b.queue.Pop(ctx, b.opts.Poll)
		if err != nil {
			if ctx.Err() == nil {
				b.log.Error().Err(err).Msg("Queue pop error")
				b.sleep(ctx, b.opts.Poll)
			}
			continue
		}
		if !ok {
			continue
		}
		b.add(raw)
	}
}

func (b *batchLoop[T]) add(raw string) {
	var item T
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		b.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}
	b.items = append(b.items, item)
	b.raws = append(b.raws, raw)
}

// flushSafe writes the buffer. On failure the raw items are requeued so a
// restart cannot lose them.
func (b *batchLoop[T]) flushSafe(ctx context.Context) bool {
	if len(b.items) == 0 {
		return true
	}
	defer func() {
		b.items = b.items[:0]
		b.raws = b.raws[:0]
	}()

	if err := b.flush(ctx, b.items); err != nil {
		b.log.Error().Err(err).Int("count", len(b.items)).Msg("Batch flush failed, requeueing")
		if err := b.queue.Push(context.Background(), b.raws...); err != nil {
			b.log.Error().Err(err).Int("count", len(b.raws)).Msg("Requeue failed, items lost")
		}
		return false
	}
	b.log.Debug().Int("count", len(b.items)).Msg("Batch flushed")
	return true
}

// drain empties the queue on shutdown, stopping at the first failed flush.
func (b *batchLoop[T]) drain(ctx context.Context) {
	drained := len(b.items)
	if !b.flushSafe(ctx) {
		return
	}

	for {
		raw, ok, err := b.queue.TryPop(ctx)
		if err != nil || !ok {
			break
		}
		b.add(raw)
		drained++
		if len(b.items) >= b.opts.Size && !b.flushSafe(ctx) {
			return
		}
	}
	if !b.flushSafe(ctx) {
		return
	}

	if drained > 0 {
		b.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func (b *batchLoop[T]) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
