// Package memory provides the in-memory audit store used by tests and the
// default wiring when no database is configured.
package memory

import (
	"context"
	"sync"

	id "onboard/pkg/domain"
	audit "onboard/pkg/platform/audit"
)

// Store keeps events in append order with a pending index so it can double as
// an Outbox in worker tests.
type Store struct {
	mu      sync.RWMutex
	events  []audit.Event
	pending map[string]struct{}
}

func New() *Store {
	return &Store{pending: make(map[string]struct{})}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.pending[event.ID] = struct{}{}
	return nil
}

func (s *Store) ListBySession(_ context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) NextBatch(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if len(out) >= limit {
			break
		}
		if _, ok := s.pending[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range eventIDs {
		delete(s.pending, id)
	}
	return nil
}

// All returns every stored event; test helper.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
