// Package postgres implements the audit store with a transactional outbox.
// Events are written to the outbox table in the same transaction as the
// business write and relayed to Kafka by the outbox worker, so the topic never
// sees an event whose originating write rolled back.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "onboard/pkg/domain"
	audit "onboard/pkg/platform/audit"
	txcontext "onboard/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// payload is the JSON structure relayed to Kafka. Field names match
// audit.Event so consumers deserialize without a mapping layer.
type payload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	SessionID string `json:"SessionID,omitempty"`
	ClientID  string `json:"ClientID,omitempty"`
	Action    string `json:"Action"`
	Section   string `json:"Section,omitempty"`
	Step      string `json:"Step,omitempty"`
	EntityRef string `json:"EntityRef,omitempty"`
	Detail    string `json:"Detail,omitempty"`
	Label     string `json:"Label,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

func toPayload(event audit.Event) payload {
	p := payload{
		ID:        event.ID,
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Section:   event.Section.String(),
		Step:      event.Step.String(),
		EntityRef: event.EntityRef,
		Detail:    event.Detail,
		Label:     event.Label,
		RequestID: event.RequestID,
	}
	if !event.SessionID.IsNil() {
		p.SessionID = event.SessionID.String()
	}
	if !event.ClientID.IsNil() {
		p.ClientID = event.ClientID.String()
	}
	return p
}

func fromPayload(p payload) (audit.Event, error) {
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse event timestamp: %w", err)
	}
	event := audit.Event{
		ID:        p.ID,
		Category:  audit.EventCategory(p.Category),
		Timestamp: ts,
		ClientID:  id.ClientID(p.ClientID),
		Action:    p.Action,
		Section:   id.SectionID(p.Section),
		Step:      id.StepID(p.Step),
		EntityRef: p.EntityRef,
		Detail:    p.Detail,
		Label:     p.Label,
		RequestID: p.RequestID,
	}
	if p.SessionID != "" {
		sid, err := id.ParseSessionID(p.SessionID)
		if err != nil {
			return audit.Event{}, fmt.Errorf("parse event session id: %w", err)
		}
		event.SessionID = sid
	}
	return event, nil
}

// Append writes one event to the outbox table. Participates in a caller
// transaction when one is present in context.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(toPayload(event))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO flow_event_outbox (id, session_id, category, action, payload, created_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL)`,
		event.ID,
		event.SessionID.String(),
		string(event.Category),
		event.Action,
		body,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM flow_event_outbox
		WHERE session_id = $1
		ORDER BY created_at ASC`,
		sessionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var p payload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		event, err := fromPayload(p)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// NextBatch returns unpublished events oldest-first. SKIP LOCKED lets several
// relay workers drain the outbox without double-delivery.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM flow_event_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox batch: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		var p payload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("unmarshal outbox row: %w", err)
		}
		event, err := fromPayload(p)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) MarkPublished(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE flow_event_outbox
		SET published_at = NOW()
		WHERE id = ANY($1)`,
		pq.Array(eventIDs),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
