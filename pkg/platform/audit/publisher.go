package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "onboard/pkg/domain"
	"onboard/pkg/requestcontext"
)

// Publisher captures structured flow events. It is append-only and delegates
// persistence to the storage layer so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit records an event, stamping id, timestamp, category, and the request
// correlation id when the caller left them blank.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if base.Category == "" {
		base.Category = FlowEvent(base.Action).Category()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.SessionID.IsNil() {
		base.SessionID = requestcontext.SessionID(ctx)
	}
	if base.ClientID == "" {
		base.ClientID = requestcontext.ClientID(ctx)
	}
	return p.store.Append(ctx, base)
}

// List returns the recorded events for one session in append order.
func (p *Publisher) List(ctx context.Context, sessionID id.SessionID) ([]Event, error) {
	return p.store.ListBySession(ctx, sessionID)
}
