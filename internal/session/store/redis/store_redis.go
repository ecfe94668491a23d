// Package redis persists session snapshots in Redis so a session survives
// process restarts and can be served by any instance behind the balancer.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"onboard/internal/session"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

const keyPrefix = "onboard:session:"

type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewStore snapshots sessions under onboard:session:<id> with the given TTL.
// Zero TTL stores without expiry.
func NewStore(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Save(ctx context.Context, state *session.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", state.SessionID, err)
	}
	if err := s.client.Set(ctx, key(state.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", state.SessionID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID id.SessionID) (*session.State, error) {
	payload, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var state session.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return state.Normalize(), nil
}

func (s *Store) Delete(ctx context.Context, sessionID id.SessionID) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func key(sessionID id.SessionID) string {
	return keyPrefix + sessionID.String()
}
