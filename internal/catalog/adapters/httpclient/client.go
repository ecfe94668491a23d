// Package httpclient adapts the upstream question catalog service to the
// catalog port, guarded by a circuit breaker like every collaborator call.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"onboard/internal/schema"
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
		breaker: circuit.New("question-catalog"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) QuestionsByIDs(ctx context.Context, ids []id.QuestionID) ([]schema.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if c.breaker.IsOpen() {
		return nil, dErrors.Wrap(
			fmt.Errorf("question catalog circuit open: %w", sentinel.ErrUnavailable),
			dErrors.CodeTransport, "question catalog unavailable")
	}

	raw := make([]string, len(ids))
	for i, qid := range ids {
		raw[i] = qid.String()
	}
	endpoint := c.baseURL + "/questions?ids=" + url.QueryEscape(strings.Join(raw, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(err)
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "call question catalog")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		err := fmt.Errorf("question catalog returned %d", resp.StatusCode)
		c.recordFailure(err)
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "call question catalog")
	}
	if resp.StatusCode >= 400 {
		return nil, dErrors.Wrap(fmt.Errorf("question catalog returned %d", resp.StatusCode),
			dErrors.CodeTransport, "call question catalog")
	}
	c.recordSuccess()

	var questions []schema.Question
	if err := json.NewDecoder(resp.Body).Decode(&questions); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "decode question catalog response")
	}
	return questions, nil
}

func (c *Client) recordFailure(err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("question catalog circuit opened", "error", err)
	}
}

func (c *Client) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("question catalog circuit closed")
	}
}
