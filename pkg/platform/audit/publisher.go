package audit

import (
	"context"
	"time"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  Store
	fanout chan<- Event
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithFanout mirrors every emitted event onto ch without blocking. The mirror
// is best effort: a full channel drops the event, and an event emitted inside
// a transaction is mirrored even if the transaction later rolls back. The
// store remains the authoritative trail.
func WithFanout(ch chan<- Event) Option {
	return func(p *Publisher) { p.fanout = ch }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps defaults and appends the event. The caller's transaction context
// flows through so a rollback discards the event together with the mutation it
// describes.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.fanout != nil {
		select {
		case p.fanout <- event:
		default:
		}
	}
	return nil
}

// List returns the trail for one entity, oldest first.
func (p *Publisher) List(ctx context.Context, entity, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entity, entityID)
}
