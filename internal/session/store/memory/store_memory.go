// Package memory provides an in-memory session store. It is the canonical
// fake for tests and the default backend when Redis is not configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"onboard/internal/session"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[id.SessionID]entry
}

type entry struct {
	state   *session.State
	savedAt time.Time
}

type Option func(*Store)

// WithTTL makes snapshots expire, matching the Redis backend's behavior.
// Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func NewStore(opts ...Option) *Store {
	s := &Store{sessions: make(map[id.SessionID]entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Save(_ context.Context, state *session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = entry{state: state.Clone(), savedAt: time.Now()}
	return nil
}

func (s *Store) Get(_ context.Context, sessionID id.SessionID) (*session.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if s.ttl > 0 && time.Since(e.savedAt) > s.ttl {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrExpired)
	}
	return e.state.Clone(), nil
}

func (s *Store) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
