// Package memory is the in-memory party store used in tests and local
// development. Seed it with fixtures, then point the engine at it.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"onboard/internal/domain"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

type Store struct {
	mu      sync.RWMutex
	clients map[id.ClientID]domain.ClientRecord
}

func NewStore() *Store {
	return &Store{clients: make(map[id.ClientID]domain.ClientRecord)}
}

// Seed installs or replaces a client fixture.
func (s *Store) Seed(client domain.ClientRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = cloneClient(client)
}

func (s *Store) GetClient(_ context.Context, clientID id.ClientID) (domain.ClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[clientID]
	if !ok {
		return domain.ClientRecord{}, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	return cloneClient(client), nil
}

func (s *Store) SaveValues(_ context.Context, clientID id.ClientID, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	if client.Values == nil {
		client.Values = make(map[string]any, len(values))
	}
	for k, v := range values {
		client.Values[k] = v
	}
	s.clients[clientID] = client
	return nil
}

func (s *Store) CreateParty(_ context.Context, clientID id.ClientID, party domain.Party) (domain.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[clientID]
	if !ok {
		return domain.Party{}, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	if party.ID == "" {
		party.ID = id.PartyID(uuid.NewString())
	}
	if party.Values == nil {
		party.Values = make(map[string]any)
	}
	client.Parties = append(client.Parties, party)
	s.clients[clientID] = client
	return party, nil
}

func (s *Store) UpdateParty(_ context.Context, clientID id.ClientID, party domain.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	for i, p := range client.Parties {
		if p.ID == party.ID {
			client.Parties[i] = party
			s.clients[clientID] = client
			return nil
		}
	}
	return fmt.Errorf("party %s on client %s: %w", party.ID, clientID, sentinel.ErrNotFound)
}

func (s *Store) SaveResponses(_ context.Context, clientID id.ClientID, responses []domain.QuestionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	for _, incoming := range responses {
		replaced := false
		for i, existing := range client.Responses {
			if existing.QuestionID == incoming.QuestionID {
				client.Responses[i] = incoming
				replaced = true
				break
			}
		}
		if !replaced {
			client.Responses = append(client.Responses, incoming)
		}
	}
	s.clients[clientID] = client
	return nil
}

func (s *Store) SaveAttestations(_ context.Context, clientID id.ClientID, attestations []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	client.Attestations = attestations
	s.clients[clientID] = client
	return nil
}

func cloneClient(c domain.ClientRecord) domain.ClientRecord {
	out := c
	out.Values = cloneValues(c.Values)
	out.Parties = make([]domain.Party, len(c.Parties))
	for i, p := range c.Parties {
		cp := p
		cp.Roles = append([]domain.PartyRole(nil), p.Roles...)
		cp.Values = cloneValues(p.Values)
		out.Parties[i] = cp
	}
	out.Responses = make([]domain.QuestionResponse, len(c.Responses))
	for i, r := range c.Responses {
		cr := r
		cr.Values = append([]string(nil), r.Values...)
		out.Responses[i] = cr
	}
	out.Outstanding.QuestionIDs = append([]id.QuestionID(nil), c.Outstanding.QuestionIDs...)
	out.Outstanding.DocumentRequestIDs = append([]id.DocumentRequestID(nil), c.Outstanding.DocumentRequestIDs...)
	out.Attestations = append([]string(nil), c.Attestations...)
	return out
}

func cloneValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
