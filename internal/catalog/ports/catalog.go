// Package ports defines the question catalog contract. The catalog is owned
// upstream; the engine reads definitions by id and treats them as immutable
// for the duration of a session.
package ports

import (
	"context"

	"onboard/internal/schema"
	id "onboard/pkg/domain"
)

type Catalog interface {
	// QuestionsByIDs resolves catalog definitions for the given ids,
	// including any dependent sub-questions their triggers reference.
	QuestionsByIDs(ctx context.Context, ids []id.QuestionID) ([]schema.Question, error)
}
