// Package worker relays pending flow events from an outbox to a sink.
package worker

import (
	"context"
	"log/slog"
	"time"

	audit "onboard/pkg/platform/audit"
)

const defaultBatchSize = 100

// Worker drains the outbox on a fixed interval. Delivery is at-least-once:
// a crash between Publish and MarkPublished re-delivers, and consumers
// de-duplicate on the event id.
type Worker struct {
	outbox   audit.Outbox
	sink     audit.Sink
	interval time.Duration
	logger   *slog.Logger
}

func New(outbox audit.Outbox, sink audit.Sink, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{outbox: outbox, sink: sink, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, draining the outbox once per interval.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	for {
		batch, err := w.outbox.NextBatch(ctx, defaultBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		published := make([]string, 0, len(batch))
		for _, event := range batch {
			if err := w.sink.Publish(ctx, event); err != nil {
				// Ack what made it out; the rest re-delivers next tick.
				w.logger.Warn("sink publish failed", "event_id", event.ID, "error", err)
				break
			}
			published = append(published, event.ID)
		}
		if err := w.outbox.MarkPublished(ctx, published); err != nil {
			return err
		}
		if len(published) < len(batch) {
			return nil
		}
	}
}
