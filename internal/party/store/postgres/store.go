// Package postgres backs the party store with relational tables: one row per
// client with a JSONB value bag, one row per party, one row per question
// response. Used when the engine owns its client data instead of calling an
// upstream service.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"onboard/internal/domain"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	txcontext "onboard/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (domain.ClientRecord, error) {
	q := s.querier(ctx)

	var (
		client       domain.ClientRecord
		valuesJSON   []byte
		questionIDs  pq.StringArray
		requestIDs   pq.StringArray
		attestations pq.StringArray
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, status, entity_type, jurisdiction, products, form_values,
		       outstanding_question_ids, outstanding_document_request_ids, attestations
		FROM clients WHERE id = $1`, clientID.String(),
	).Scan(
		&client.ID, &client.Status, &client.Context.EntityType, &client.Context.Jurisdiction,
		pq.Array(&client.Context.Products), &valuesJSON,
		&questionIDs, &requestIDs, &attestations,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ClientRecord{}, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	if err != nil {
		return domain.ClientRecord{}, fmt.Errorf("load client %s: %w", clientID, err)
	}

	if len(valuesJSON) > 0 {
		if err := json.Unmarshal(valuesJSON, &client.Values); err != nil {
			return domain.ClientRecord{}, fmt.Errorf("decode client %s values: %w", clientID, err)
		}
	}
	for _, qid := range questionIDs {
		client.Outstanding.QuestionIDs = append(client.Outstanding.QuestionIDs, id.QuestionID(qid))
	}
	for _, rid := range requestIDs {
		client.Outstanding.DocumentRequestIDs = append(client.Outstanding.DocumentRequestIDs, id.DocumentRequestID(rid))
	}
	client.Attestations = []string(attestations)

	if client.Parties, err = s.loadParties(ctx, q, clientID); err != nil {
		return domain.ClientRecord{}, err
	}
	if client.Responses, err = s.loadResponses(ctx, q, clientID); err != nil {
		return domain.ClientRecord{}, err
	}
	return client, nil
}

func (s *Store) loadParties(ctx context.Context, q dbQuerier, clientID id.ClientID) ([]domain.Party, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, party_type, roles, active, form_values
		FROM parties WHERE client_id = $1 ORDER BY created_at, id`, clientID.String())
	if err != nil {
		return nil, fmt.Errorf("load parties for %s: %w", clientID, err)
	}
	defer rows.Close()

	var parties []domain.Party
	for rows.Next() {
		var (
			p          domain.Party
			roles      pq.StringArray
			valuesJSON []byte
		)
		if err := rows.Scan(&p.ID, &p.Type, &roles, &p.Active, &valuesJSON); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		for _, r := range roles {
			p.Roles = append(p.Roles, domain.PartyRole(r))
		}
		if len(valuesJSON) > 0 {
			if err := json.Unmarshal(valuesJSON, &p.Values); err != nil {
				return nil, fmt.Errorf("decode party %s values: %w", p.ID, err)
			}
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

func (s *Store) loadResponses(ctx context.Context, q dbQuerier, clientID id.ClientID) ([]domain.QuestionResponse, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT question_id, response_values
		FROM question_responses WHERE client_id = $1 ORDER BY question_id`, clientID.String())
	if err != nil {
		return nil, fmt.Errorf("load responses for %s: %w", clientID, err)
	}
	defer rows.Close()

	var responses []domain.QuestionResponse
	for rows.Next() {
		var (
			r      domain.QuestionResponse
			values pq.StringArray
		)
		if err := rows.Scan(&r.QuestionID, &values); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.Values = []string(values)
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// SaveValues merges the submitted values into the client's JSONB bag. The
// merge happens server side so concurrent step submissions for different
// fields do not clobber each other.
func (s *Store) SaveValues(ctx context.Context, clientID id.ClientID, values map[string]any) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode values for %s: %w", clientID, err)
	}
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE clients SET form_values = COALESCE(form_values, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
		WHERE id = $1`, clientID.String(), payload)
	if err != nil {
		return fmt.Errorf("save values for %s: %w", clientID, err)
	}
	return affectedOrNotFound(res, "client "+clientID.String())
}

func (s *Store) CreateParty(ctx context.Context, clientID id.ClientID, party domain.Party) (domain.Party, error) {
	valuesJSON, err := json.Marshal(orEmpty(party.Values))
	if err != nil {
		return domain.Party{}, fmt.Errorf("encode party values: %w", err)
	}
	err = s.querier(ctx).QueryRowContext(ctx, `
		INSERT INTO parties (id, client_id, party_type, roles, active, form_values, created_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, NOW())
		RETURNING id`,
		party.ID.String(), clientID.String(), string(party.Type),
		pq.Array(roleStrings(party.Roles)), party.Active, valuesJSON,
	).Scan(&party.ID)
	if err != nil {
		return domain.Party{}, fmt.Errorf("create party on %s: %w", clientID, err)
	}
	return party, nil
}

func (s *Store) UpdateParty(ctx context.Context, clientID id.ClientID, party domain.Party) error {
	valuesJSON, err := json.Marshal(orEmpty(party.Values))
	if err != nil {
		return fmt.Errorf("encode party values: %w", err)
	}
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE parties SET roles = $3, active = $4, form_values = $5, updated_at = NOW()
		WHERE id = $1 AND client_id = $2`,
		party.ID.String(), clientID.String(),
		pq.Array(roleStrings(party.Roles)), party.Active, valuesJSON)
	if err != nil {
		return fmt.Errorf("update party %s: %w", party.ID, err)
	}
	return affectedOrNotFound(res, "party "+party.ID.String())
}

func (s *Store) SaveResponses(ctx context.Context, clientID id.ClientID, responses []domain.QuestionResponse) error {
	q := s.querier(ctx)
	for _, r := range responses {
		_, err := q.ExecContext(ctx, `
			INSERT INTO question_responses (client_id, question_id, response_values, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (client_id, question_id)
			DO UPDATE SET response_values = EXCLUDED.response_values, updated_at = NOW()`,
			clientID.String(), r.QuestionID.String(), pq.Array(r.Values))
		if err != nil {
			return fmt.Errorf("save response %s for %s: %w", r.QuestionID, clientID, err)
		}
	}
	return nil
}

func (s *Store) SaveAttestations(ctx context.Context, clientID id.ClientID, attestations []string) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE clients SET attestations = $2, updated_at = NOW() WHERE id = $1`,
		clientID.String(), pq.Array(attestations))
	if err != nil {
		return fmt.Errorf("save attestations for %s: %w", clientID, err)
	}
	return affectedOrNotFound(res, "client "+clientID.String())
}

func affectedOrNotFound(res sql.Result, subject string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", subject, sentinel.ErrNotFound)
	}
	return nil
}

func roleStrings(roles []domain.PartyRole) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func orEmpty(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}
