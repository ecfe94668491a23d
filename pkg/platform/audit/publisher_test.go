package audit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "onboard/pkg/domain"
	audit "onboard/pkg/platform/audit"
	memorystore "onboard/pkg/platform/audit/store/memory"
	"onboard/pkg/requestcontext"
)

func TestPublisher_EmitStampsDefaults(t *testing.T) {
	store := memorystore.New()
	pub := audit.NewPublisher(store)

	sid := id.NewSessionID()
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")

	require.NoError(t, pub.Emit(ctx, audit.Event{
		SessionID: sid,
		Action:    string(audit.EventDocumentUploaded),
		Detail:    "PASSPORT",
	}))

	events, err := pub.List(ctx, sid)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, "req-42", got.RequestID)
}

func TestFlowEvent_CategoryRouting(t *testing.T) {
	assert.Equal(t, audit.CategoryOperations, audit.EventStepChanged.Category())
	assert.Equal(t, audit.CategoryCompliance, audit.EventFlowCompleted.Category())
	assert.Equal(t, audit.CategoryOperations, audit.FlowEvent("unknown").Category())
}
