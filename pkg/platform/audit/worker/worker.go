package worker

import (
	"context"
	"log/slog"

	audit "veridata/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. It carries
// events that are informational fan-out (e.g. to Kafka) off the request path;
// the mandatory in-transaction append stays with the publisher.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until ctx is cancelled. Sink failures are logged and
// dropped; the authoritative trail already holds the event.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit fan-out append failed",
					"action", event.Action,
					"entity", event.Entity,
					"error", err,
				)
			}
		}
	}
}
