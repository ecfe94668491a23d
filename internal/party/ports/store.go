// Package ports defines the entity/party store contract the engine depends
// on. Adapters (HTTP client, postgres, memory fake) implement it; the engine
// never sees transport or storage detail.
package ports

import (
	"context"

	"onboard/internal/domain"
	id "onboard/pkg/domain"
)

// Store reads and writes the externally owned client record. Writes are keyed
// by entity id and must be idempotent so network-failure retries are safe.
type Store interface {
	// GetClient loads the full read model: status, outstanding work, parties.
	GetClient(ctx context.Context, clientID id.ClientID) (domain.ClientRecord, error)

	// SaveValues merges collected form values into the client record.
	SaveValues(ctx context.Context, clientID id.ClientID, values map[string]any) error

	// CreateParty appends a party instance and returns it with its assigned id.
	CreateParty(ctx context.Context, clientID id.ClientID, party domain.Party) (domain.Party, error)

	// UpdateParty replaces a party's roles, active flag, and values.
	UpdateParty(ctx context.Context, clientID id.ClientID, party domain.Party) error

	// SaveResponses overwrites stored answers for the given questions.
	SaveResponses(ctx context.Context, clientID id.ClientID, responses []domain.QuestionResponse) error

	// SaveAttestations records the confirmations given at flow completion.
	SaveAttestations(ctx context.Context, clientID id.ClientID, attestations []string) error
}
