// Package httpclient adapts the upstream document API to the docapi port.
// Uploads go out as multipart form data, one document per call.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"onboard/internal/documents"
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
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: circuit.New("document-api"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RequestsByIDs(ctx context.Context, ids []id.DocumentRequestID) ([]documents.Request, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, rid := range ids {
		raw[i] = rid.String()
	}
	endpoint := c.baseURL + "/document-requests?ids=" + url.QueryEscape(strings.Join(raw, ","))

	var requests []documents.Request
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, "", &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *Client) Upload(ctx context.Context, requestID id.DocumentRequestID, documentType, fileName string, content []byte) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("documentType", documentType); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "encode upload")
	}
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "encode upload")
	}
	if _, err := part.Write(content); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "encode upload")
	}
	if err := form.Close(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "encode upload")
	}

	endpoint := fmt.Sprintf("%s/document-requests/%s/documents", c.baseURL, requestID)
	return c.doJSON(ctx, http.MethodPost, endpoint, &buf, form.FormDataContentType(), nil)
}

func (c *Client) Submit(ctx context.Context, requestID id.DocumentRequestID) error {
	endpoint := fmt.Sprintf("%s/document-requests/%s/submit", c.baseURL, requestID)
	return c.doJSON(ctx, http.MethodPost, endpoint, nil, "", nil)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out any) error {
	if c.breaker.IsOpen() {
		return dErrors.Wrap(
			fmt.Errorf("document api circuit open: %w", sentinel.ErrUnavailable),
			dErrors.CodeTransport, "document api unavailable")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "build request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(err)
		return dErrors.Wrap(err, dErrors.CodeTransport, "call document api")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.recordSuccess()
		return fmt.Errorf("%s %s: %w", method, endpoint, sentinel.ErrNotFound)
	case resp.StatusCode >= 500:
		err := fmt.Errorf("document api returned %d", resp.StatusCode)
		c.recordFailure(err)
		return dErrors.Wrap(err, dErrors.CodeTransport, "call document api")
	case resp.StatusCode >= 400:
		return dErrors.Wrap(fmt.Errorf("document api returned %d", resp.StatusCode),
			dErrors.CodeTransport, "call document api")
	}

	c.recordSuccess()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, "decode document api response")
	}
	return nil
}

func (c *Client) recordFailure(err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("document api circuit opened", "error", err)
	}
}

func (c *Client) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("document api circuit closed")
	}
}
