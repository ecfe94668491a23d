// Package httpclient adapts the upstream entity/party service to the store
// port. Calls are guarded by a circuit breaker: once the upstream keeps
// failing, the engine fails fast with an unavailable error instead of piling
// timeouts onto a sick dependency.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"onboard/internal/domain"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/circuit"
	"onboard/pkg/platform/sentinel"
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New("party-store"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// clientPayload is the upstream wire shape of a client record.
type clientPayload struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	EntityType   string            `json:"entityType"`
	Jurisdiction string            `json:"jurisdiction"`
	Products     []string          `json:"products"`
	Values       map[string]any    `json:"values"`
	Parties      []partyPayload    `json:"parties"`
	Responses    []responsePayload `json:"responses"`
	Outstanding  struct {
		QuestionIDs        []string `json:"questionIds"`
		DocumentRequestIDs []string `json:"documentRequestIds"`
	} `json:"outstanding"`
	Attestations []string `json:"attestations"`
}

type partyPayload struct {
	ID     string         `json:"id"`
	Type   string         `json:"partyType"`
	Roles  []string       `json:"roles"`
	Active bool           `json:"active"`
	Values map[string]any `json:"values"`
}

type responsePayload struct {
	QuestionID string   `json:"questionId"`
	Values     []string `json:"values"`
}

func (c *Client) GetClient(ctx context.Context, clientID id.ClientID) (domain.ClientRecord, error) {
	var payload clientPayload
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/clients/%s", clientID), nil, &payload)
	if err != nil {
		return domain.ClientRecord{}, err
	}
	return toDomain(payload), nil
}

func (c *Client) SaveValues(ctx context.Context, clientID id.ClientID, values map[string]any) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/clients/%s/values", clientID), values, nil)
}

func (c *Client) CreateParty(ctx context.Context, clientID id.ClientID, party domain.Party) (domain.Party, error) {
	var created partyPayload
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/clients/%s/parties", clientID), fromParty(party), &created)
	if err != nil {
		return domain.Party{}, err
	}
	return toParty(created), nil
}

func (c *Client) UpdateParty(ctx context.Context, clientID id.ClientID, party domain.Party) error {
	return c.do(ctx, http.MethodPut,
		fmt.Sprintf("/clients/%s/parties/%s", clientID, party.ID), fromParty(party), nil)
}

func (c *Client) SaveResponses(ctx context.Context, clientID id.ClientID, responses []domain.QuestionResponse) error {
	payload := make([]responsePayload, len(responses))
	for i, r := range responses {
		payload[i] = responsePayload{QuestionID: r.QuestionID.String(), Values: r.Values}
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/clients/%s/responses", clientID), payload, nil)
}

func (c *Client) SaveAttestations(ctx context.Context, clientID id.ClientID, attestations []string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/clients/%s/attestations", clientID), attestations, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.breaker.IsOpen() {
		return dErrors.Wrap(
			fmt.Errorf("party store circuit open: %w", sentinel.ErrUnavailable),
			dErrors.CodeTransport, "party store unavailable")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransport, "encode request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(err)
		return dErrors.Wrap(err, dErrors.CodeTransport, "call party store")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Not an upstream health problem; leave the breaker alone.
		c.recordSuccess()
		return fmt.Errorf("%s %s: %w", method, path, sentinel.ErrNotFound)
	case resp.StatusCode >= 500:
		err := fmt.Errorf("party store returned %d", resp.StatusCode)
		c.recordFailure(err)
		return dErrors.Wrap(err, dErrors.CodeTransport, "call party store")
	case resp.StatusCode >= 400:
		return dErrors.Wrap(fmt.Errorf("party store returned %d", resp.StatusCode),
			dErrors.CodeTransport, "call party store")
	}

	c.recordSuccess()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "decode party store response")
	}
	return nil
}

func (c *Client) recordFailure(err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("party store circuit opened", "error", err)
	}
}

func (c *Client) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("party store circuit closed")
	}
}

func toDomain(p clientPayload) domain.ClientRecord {
	client := domain.ClientRecord{
		ID:     id.ClientID(p.ID),
		Status: domain.ClientStatus(p.Status),
		Context: domain.EntityContext{
			EntityType:   domain.EntityType(p.EntityType),
			Jurisdiction: p.Jurisdiction,
			Products:     p.Products,
		},
		Values:       p.Values,
		Attestations: p.Attestations,
	}
	for _, party := range p.Parties {
		client.Parties = append(client.Parties, toParty(party))
	}
	for _, r := range p.Responses {
		client.Responses = append(client.Responses, domain.QuestionResponse{
			QuestionID: id.QuestionID(r.QuestionID),
			Values:     r.Values,
		})
	}
	for _, qid := range p.Outstanding.QuestionIDs {
		client.Outstanding.QuestionIDs = append(client.Outstanding.QuestionIDs, id.QuestionID(qid))
	}
	for _, rid := range p.Outstanding.DocumentRequestIDs {
		client.Outstanding.DocumentRequestIDs = append(client.Outstanding.DocumentRequestIDs, id.DocumentRequestID(rid))
	}
	return client
}

func toParty(p partyPayload) domain.Party {
	party := domain.Party{
		ID:     id.PartyID(p.ID),
		Type:   domain.PartyType(p.Type),
		Active: p.Active,
		Values: p.Values,
	}
	for _, r := range p.Roles {
		party.Roles = append(party.Roles, domain.PartyRole(r))
	}
	return party
}

func fromParty(p domain.Party) partyPayload {
	roles := make([]string, len(p.Roles))
	for i, r := range p.Roles {
		roles[i] = string(r)
	}
	return partyPayload{
		ID:     p.ID.String(),
		Type:   string(p.Type),
		Roles:  roles,
		Active: p.Active,
		Values: p.Values,
	}
}
