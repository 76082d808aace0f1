package stream

import (
	"context"
	"log/slog"
	"time"

	"citepay/internal/audit"
)

// Worker tails the audit trail and publishes new entries. The cursor is
// saved only after a batch is published, so a crash between publish and
// save redelivers that batch on restart.
type Worker struct {
	entries      audit.Store
	cursor       CursorStore
	publisher    Publisher
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

// NewWorker constructs a Worker.
func NewWorker(entries audit.Store, cursor CursorStore, publisher Publisher, logger *slog.Logger, pollInterval time.Duration, batchSize int) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Worker{
		entries:      entries,
		cursor:       cursor,
		publisher:    publisher,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run polls until the context is cancelled. Publish or storage errors are
// logged and retried on the next tick; they never stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := w.drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "audit stream drain failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain publishes all entries past the cursor, one batch at a time.
func (w *Worker) drain(ctx context.Context) error {
	seq, err := w.cursor.Load(ctx)
	if err != nil {
		return err
	}

	for {
		batch, err := w.entries.ListAfterSeq(ctx, seq, w.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := w.publisher.Publish(ctx, batch); err != nil {
			return err
		}
		seq = batch[len(batch)-1].Seq
		if err := w.cursor.Save(ctx, seq); err != nil {
			return err
		}
		w.logger.DebugContext(ctx, "audit entries streamed",
			"count", len(batch), "last_seq", seq)
	}
}
