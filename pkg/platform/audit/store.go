package audit

import (
	"context"

	id "onboard/pkg/domain"
)

// Store persists flow events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]Event, error)
}

// Outbox is the relay side of a store: pending events are drained in batches
// and acknowledged once a sink accepted them. The postgres store implements
// this with an outbox table; the memory store keeps a pending index so tests
// can exercise the worker without a database.
type Outbox interface {
	NextBatch(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, eventIDs []string) error
}

// Sink delivers events to an external system such as a Kafka topic.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
