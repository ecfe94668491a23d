package session

import (
	"context"

	id "onboard/pkg/domain"
)

// Store persists session snapshots. Implementations return
// sentinel.ErrNotFound (wrapped) for unknown or expired sessions.
type Store interface {
	Save(ctx context.Context, state *State) error
	Get(ctx context.Context, sessionID id.SessionID) (*State, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}
