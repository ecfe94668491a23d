//go:build integration

package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/documents"
	"onboard/internal/session"
	redisstore "onboard/internal/session/store/redis"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/testutil/containers"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := redisstore.NewStore(rc.Client, time.Hour)

	sessionID := id.NewSessionID()
	state := &session.State{
		SessionID:      sessionID,
		ClientID:       "client-1",
		CurrentSection: "business",
		CurrentStep:    "business-identity",
		Editing:        map[id.StepID]id.PartyID{"owner-identity": "p-2"},
		Flags:          map[string]bool{"controllerIsOwner": true},
		SavedValues: map[id.StepID]map[string]any{
			"business-identity": {"organizationDetails.organizationName": "Acme LLC"},
		},
		Drafts: []documents.Draft{
			{RequestID: "dr-1", DocumentType: "PASSPORT", FileName: "passport.pdf"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, state.SessionID, loaded.SessionID)
	assert.Equal(t, state.Editing, loaded.Editing)
	assert.Equal(t, state.SavedValues, loaded.SavedValues)
	assert.Equal(t, state.Drafts, loaded.Drafts)
}

func TestRedisStoreRepairsEmptyMaps(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := redisstore.NewStore(rc.Client, time.Hour)

	// Empty maps are dropped on marshal; Get must hand back assignable ones.
	state := &session.State{SessionID: id.NewSessionID(), ClientID: "client-1"}
	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Get(ctx, state.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Editing)
	require.NotNil(t, loaded.Flags)
	require.NotNil(t, loaded.SavedValues)
	loaded.Flags["controllerIsOwner"] = true
	loaded.Editing["owner-identity"] = "p-2"
}

func TestRedisStoreMissingSession(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := redisstore.NewStore(rc.Client, time.Hour)

	_, err := store.Get(ctx, id.NewSessionID())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := redisstore.NewStore(rc.Client, time.Second)

	state := &session.State{SessionID: id.NewSessionID(), ClientID: "client-1"}
	require.NoError(t, store.Save(ctx, state))

	_, err := store.Get(ctx, state.SessionID)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	_, err = store.Get(ctx, state.SessionID)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound), "expired snapshot reads as not found")
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := redisstore.NewStore(rc.Client, time.Hour)

	state := &session.State{SessionID: id.NewSessionID(), ClientID: "client-1"}
	require.NoError(t, store.Save(ctx, state))
	require.NoError(t, store.Delete(ctx, state.SessionID))

	_, err := store.Get(ctx, state.SessionID)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}
