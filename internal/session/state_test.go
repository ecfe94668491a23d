package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/documents"
	id "onboard/pkg/domain"
)

func sampleState() *State {
	s := newState(id.NewSessionID(), "client-1", time.Now().UTC().Truncate(time.Second))
	s.CurrentSection = "owners"
	s.CurrentStep = "owner-identity"
	s.Editing["owner-identity"] = "p-2"
	s.Flags["controllerIsOwner"] = true
	s.SavedValues["owner-identity"] = map[string]any{"individualDetails.firstName": "Ada"}
	s.Drafts = []documents.Draft{{RequestID: "dr-1", DocumentType: "PASSPORT"}}
	return s
}

func TestStateJSONRoundTrip(t *testing.T) {
	original := sampleState()

	payload, err := json.Marshal(original)
	require.NoError(t, err)

	var restored State
	require.NoError(t, json.Unmarshal(payload, &restored))

	assert.Equal(t, original.SessionID, restored.SessionID)
	assert.Equal(t, original.CurrentSection, restored.CurrentSection)
	assert.Equal(t, original.Editing, restored.Editing)
	assert.Equal(t, original.Flags, restored.Flags)
	assert.Equal(t, original.Drafts, restored.Drafts)
}

func TestNormalizeRepairsRoundTrippedMaps(t *testing.T) {
	fresh := newState(id.NewSessionID(), "client-1", time.Now().UTC())

	payload, err := json.Marshal(fresh)
	require.NoError(t, err)

	var restored State
	require.NoError(t, json.Unmarshal(payload, &restored))
	require.Nil(t, restored.Flags, "empty maps do not survive the round trip")

	restored.Normalize()
	restored.Editing["owner-identity"] = "p-2"
	restored.Flags["controllerIsOwner"] = true
	restored.SavedValues["owner-identity"] = map[string]any{"individualDetails.firstName": "Ada"}

	assert.Equal(t, id.PartyID("p-2"), restored.Editing["owner-identity"])
	assert.True(t, restored.Flags["controllerIsOwner"])
}

func TestCloneIsIndependent(t *testing.T) {
	original := sampleState()
	clone := original.Clone()

	clone.Editing["owner-identity"] = "p-9"
	clone.Flags["tampered"] = true
	clone.SavedValues["owner-identity"]["individualDetails.firstName"] = "Grace"
	clone.Drafts[0].DocumentType = "DRIVERS_LICENSE"

	assert.Equal(t, id.PartyID("p-2"), original.Editing["owner-identity"])
	assert.False(t, original.Flags["tampered"])
	assert.Equal(t, "Ada", original.SavedValues["owner-identity"]["individualDetails.firstName"])
	assert.Equal(t, "PASSPORT", original.Drafts[0].DocumentType)
}

func TestDraftsForFiltersByRequest(t *testing.T) {
	s := sampleState()
	s.Drafts = append(s.Drafts, documents.Draft{RequestID: "dr-2", DocumentType: "PROOF_OF_ADDRESS"})

	assert.Len(t, s.DraftsFor("dr-1"), 1)
	assert.Len(t, s.DraftsFor("dr-2"), 1)
	assert.Empty(t, s.DraftsFor("dr-3"))
}
