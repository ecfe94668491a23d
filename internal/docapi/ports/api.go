// Package ports defines the external document API contract: upload one
// document at a time, submit a request once its requirements are satisfied.
// Both calls are idempotent from the engine's perspective, so retries after
// network failures are safe.
package ports

import (
	"context"

	"onboard/internal/documents"
	id "onboard/pkg/domain"
)

type API interface {
	// RequestsByIDs loads the outstanding document requests with their
	// ordered requirements.
	RequestsByIDs(ctx context.Context, ids []id.DocumentRequestID) ([]documents.Request, error)

	// Upload persists one (request, type, file) triple.
	Upload(ctx context.Context, requestID id.DocumentRequestID, documentType, fileName string, content []byte) error

	// Submit closes a fully collected request for upstream review.
	Submit(ctx context.Context, requestID id.DocumentRequestID) error
}
