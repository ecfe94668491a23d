package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboard/pkg/domain-errors"
)

// TestParseSessionID_Invariants validates the parsing invariant:
// session ids must be valid, non-empty, non-nil UUIDs.
func TestParseSessionID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		fresh := NewSessionID()
		parsed, err := ParseSessionID(fresh.String())
		require.NoError(t, err)
		assert.Equal(t, fresh, parsed)
	})
}

func TestParseOpaqueIDs_RejectEmpty(t *testing.T) {
	_, err := ParseClientID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParsePartyID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseQuestionID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseDocumentRequestID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// TestTypeDistinction verifies the compiler enforces type safety.
// If this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	clientID := ClientID("c-1")
	partyID := PartyID("c-1")

	// var _ ClientID = partyID // compile error: distinct named types

	assert.Equal(t, clientID.String(), partyID.String())
	assert.False(t, clientID.IsNil())
}
