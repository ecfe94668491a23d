// Package documents projects document-upload requirement satisfaction from
// the drafts collected in a session. Evaluation is a pure function of its
// inputs; persistence of uploads is the document API collaborator's job.
package documents

import (
	"fmt"
	"log/slog"

	"onboard/internal/schema"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	pstrings "onboard/pkg/platform/strings"
)

// Requirement is one slot within a document request: accept any of the listed
// type tags, at least MinRequired times. Requirements are immutable and
// ordered within their request.
type Requirement struct {
	AcceptedTypes []string `json:"acceptedTypes"`
	MinRequired   int      `json:"minRequired"`
}

func (r Requirement) Accepts(documentType string) bool {
	for _, t := range r.AcceptedTypes {
		if t == documentType {
			return true
		}
	}
	return false
}

// Request is an ordered list of requirements that must all be satisfied
// before the request may be submitted.
type Request struct {
	ID           id.DocumentRequestID `json:"id"`
	PartyID      id.PartyID           `json:"partyId"`
	Requirements []Requirement        `json:"requirements"`
}

// Draft is an uploaded (type, file) pair that lives in session state until
// the owning request is submitted. FieldKey names the form field whose
// validation errors gate whether the draft counts toward satisfaction.
type Draft struct {
	RequestID    id.DocumentRequestID `json:"requestId"`
	DocumentType string               `json:"documentType"`
	FileName     string               `json:"fileName"`
	ContentRef   string               `json:"contentRef"`
	FieldKey     string               `json:"fieldKey"`
}

// Result is the tracker's projection over one evaluation pass.
type Result struct {
	// SatisfiedTypes lists, per request, the distinct document types of the
	// validated drafts, in first-upload order.
	SatisfiedTypes map[id.DocumentRequestID][]string
	// ActiveByRequest holds the index of the requirement to present next.
	// A request with every requirement satisfied has no entry.
	ActiveByRequest map[id.DocumentRequestID]int
	// Complete is true iff every requirement of every request is satisfied.
	Complete bool
}

// ActiveRequirement resolves the active entry of a request, if any.
func (r Result) ActiveRequirement(req Request) (Requirement, bool) {
	idx, ok := r.ActiveByRequest[req.ID]
	if !ok || idx >= len(req.Requirements) {
		return Requirement{}, false
	}
	return req.Requirements[idx], true
}

type Tracker struct {
	logger *slog.Logger
}

type TrackerOption func(*Tracker)

func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Evaluate computes requirement satisfaction over the given drafts. Drafts
// whose form field currently carries a validation error never count. The
// active requirement of a request is the first unsatisfied one; requirements
// with MinRequired zero are satisfied from the start.
func (t *Tracker) Evaluate(requests []Request, drafts []Draft, fieldErrors schema.FieldErrors) Result {
	byRequest := make(map[id.DocumentRequestID][]Draft)
	for _, d := range drafts {
		if fieldErrors != nil && len(fieldErrors[d.FieldKey]) > 0 {
			continue
		}
		byRequest[d.RequestID] = append(byRequest[d.RequestID], d)
	}

	res := Result{
		SatisfiedTypes:  make(map[id.DocumentRequestID][]string, len(requests)),
		ActiveByRequest: make(map[id.DocumentRequestID]int),
		Complete:        true,
	}

	for _, req := range requests {
		validated := byRequest[req.ID]

		types := make([]string, 0, len(validated))
		for _, d := range validated {
			types = append(types, d.DocumentType)
		}
		res.SatisfiedTypes[req.ID] = pstrings.Dedupe(types)

		for i, requirement := range req.Requirements {
			if satisfied(requirement, validated) {
				continue
			}
			res.ActiveByRequest[req.ID] = i
			res.Complete = false
			break
		}
	}
	return res
}

func satisfied(r Requirement, drafts []Draft) bool {
	if r.MinRequired <= 0 {
		return true
	}
	count := 0
	for _, d := range drafts {
		if r.Accepts(d.DocumentType) {
			count++
		}
	}
	return count >= r.MinRequired
}

// EnsureSubmittable guards the submit call for a single request: it returns a
// requirement-unsatisfied error naming the first open requirement when the
// request is not fully collected.
func (t *Tracker) EnsureSubmittable(req Request, res Result) error {
	idx, ok := res.ActiveByRequest[req.ID]
	if !ok {
		return nil
	}
	requirement := req.Requirements[idx]
	t.logger.Info("document request not submittable",
		"documentRequestID", req.ID,
		"requirementIndex", idx,
		"acceptedTypes", requirement.AcceptedTypes,
	)
	return dErrors.New(dErrors.CodeRequirementUnsatisfied,
		fmt.Sprintf("document request %s requires at least %d document(s) of type %v",
			req.ID, requirement.MinRequired, requirement.AcceptedTypes))
}
