// Package memory is a seeded in-memory question catalog for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"onboard/internal/schema"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

type Catalog struct {
	mu        sync.RWMutex
	questions map[id.QuestionID]schema.Question
}

func NewCatalog(questions ...schema.Question) *Catalog {
	c := &Catalog{questions: make(map[id.QuestionID]schema.Question, len(questions))}
	for _, q := range questions {
		c.questions[q.ID] = q
	}
	return c
}

// Seed installs or replaces a question definition.
func (c *Catalog) Seed(q schema.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questions[q.ID] = q
}

// QuestionsByIDs resolves the requested ids plus every dependent question
// reachable through their triggers, in stable parent-before-child order.
func (c *Catalog) QuestionsByIDs(_ context.Context, ids []id.QuestionID) ([]schema.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[id.QuestionID]bool)
	var out []schema.Question

	queue := append([]id.QuestionID(nil), ids...)
	for len(queue) > 0 {
		qid := queue[0]
		queue = queue[1:]
		if seen[qid] {
			continue
		}
		q, ok := c.questions[qid]
		if !ok {
			return nil, fmt.Errorf("question %s: %w", qid, sentinel.ErrNotFound)
		}
		seen[qid] = true
		out = append(out, q)
		for _, trigger := range q.Triggers {
			queue = append(queue, trigger.QuestionIDs...)
		}
	}
	return out, nil
}
