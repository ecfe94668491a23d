// Package memory fakes the document API for tests and local development. It
// records uploads and submissions so assertions can inspect them.
package memory

import (
	"context"
	"fmt"
	"sync"

	"onboard/internal/documents"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

type Upload struct {
	RequestID    id.DocumentRequestID
	DocumentType string
	FileName     string
	Size         int
}

type API struct {
	mu        sync.RWMutex
	requests  map[id.DocumentRequestID]documents.Request
	uploads   []Upload
	submitted map[id.DocumentRequestID]bool

	// FailUploads makes Upload return an unavailable error, for exercising
	// retry paths.
	FailUploads bool
}

func NewAPI(requests ...documents.Request) *API {
	a := &API{
		requests:  make(map[id.DocumentRequestID]documents.Request, len(requests)),
		submitted: make(map[id.DocumentRequestID]bool),
	}
	for _, r := range requests {
		a.requests[r.ID] = r
	}
	return a
}

func (a *API) RequestsByIDs(_ context.Context, ids []id.DocumentRequestID) ([]documents.Request, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]documents.Request, 0, len(ids))
	for _, rid := range ids {
		r, ok := a.requests[rid]
		if !ok {
			return nil, fmt.Errorf("document request %s: %w", rid, sentinel.ErrNotFound)
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *API) Upload(_ context.Context, requestID id.DocumentRequestID, documentType, fileName string, content []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailUploads {
		return fmt.Errorf("document upload: %w", sentinel.ErrUnavailable)
	}
	if _, ok := a.requests[requestID]; !ok {
		return fmt.Errorf("document request %s: %w", requestID, sentinel.ErrNotFound)
	}
	a.uploads = append(a.uploads, Upload{
		RequestID:    requestID,
		DocumentType: documentType,
		FileName:     fileName,
		Size:         len(content),
	})
	return nil
}

func (a *API) Submit(_ context.Context, requestID id.DocumentRequestID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.requests[requestID]; !ok {
		return fmt.Errorf("document request %s: %w", requestID, sentinel.ErrNotFound)
	}
	a.submitted[requestID] = true
	return nil
}

// Uploads returns the recorded uploads in call order.
func (a *API) Uploads() []Upload {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Upload(nil), a.uploads...)
}

// Submitted reports whether a request was submitted.
func (a *API) Submitted(requestID id.DocumentRequestID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.submitted[requestID]
}
