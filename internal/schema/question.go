// Package schema compiles validation schemas at runtime from the external
// question catalog. Catalogs arrive per session and cannot be known at build
// time, so validation is a closed tagged-variant dispatch over item kinds
// returning composite validator values.
package schema

import (
	id "onboard/pkg/domain"
)

// ItemKind is the closed set of response value shapes a catalog question can
// declare. Adding a kind means extending the dispatch in compiler.go; the
// exhaustive switch there keeps the set honest.
type ItemKind string

const (
	KindBoolean ItemKind = "BOOLEAN"
	KindString  ItemKind = "STRING"
	KindInteger ItemKind = "INTEGER"
	KindDate    ItemKind = "DATE"
)

// SubQuestionTrigger names the child questions that become relevant when the
// parent's answer intersects AnyValues.
type SubQuestionTrigger struct {
	AnyValues   []string        `json:"anyValues"`
	QuestionIDs []id.QuestionID `json:"questionIds"`
}

// Question is one entry of the external question catalog. Read-only input for
// the duration of a session.
type Question struct {
	ID          id.QuestionID        `json:"id"`
	Description string               `json:"description,omitempty"`
	Kind        ItemKind             `json:"itemType"`
	EnumValues  []string             `json:"enumValues,omitempty"`
	Pattern     string               `json:"pattern,omitempty"`
	ParentID    id.QuestionID        `json:"parentQuestionId,omitempty"`
	Triggers    []SubQuestionTrigger `json:"subQuestions,omitempty"`
	MinItems    *int                 `json:"minItems,omitempty"`
	MaxItems    *int                 `json:"maxItems,omitempty"`
}

// IsRoot reports whether the question has no parent.
func (q Question) IsRoot() bool { return q.ParentID.IsNil() }

// ResponseSet is the document a compiled schema validates: ordered value
// lists keyed by question id. Single-valued questions carry one element.
type ResponseSet map[id.QuestionID][]string

// FieldErrors collects per-field validation messages keyed by field key.
type FieldErrors map[string][]string

// Add appends a message for a field.
func (e FieldErrors) Add(key, message string) {
	e[key] = append(e[key], message)
}

// Empty reports whether no field carries an error.
func (e FieldErrors) Empty() bool { return len(e) == 0 }

// FieldKey is the canonical field name for a question, matching the form key
// convention the UI layer uses.
func FieldKey(questionID id.QuestionID) string {
	return "question_" + questionID.String()
}
