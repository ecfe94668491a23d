package documents

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"onboard/internal/schema"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

type TrackerSuite struct {
	suite.Suite
	tracker *Tracker
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.tracker = NewTracker()
}

func identityRequest() Request {
	return Request{
		ID:      "dr-1",
		PartyID: "p-1",
		Requirements: []Requirement{
			{AcceptedTypes: []string{"PASSPORT", "DRIVERS_LICENSE"}, MinRequired: 1},
			{AcceptedTypes: []string{"PROOF_OF_ADDRESS"}, MinRequired: 1},
		},
	}
}

func draft(requestID id.DocumentRequestID, docType string) Draft {
	return Draft{
		RequestID:    requestID,
		DocumentType: docType,
		FileName:     docType + ".pdf",
		FieldKey:     "document_" + string(requestID),
	}
}

// ============================================================================
// Requirement progression
// ============================================================================

func (s *TrackerSuite) TestProgressionThroughRequirements() {
	req := identityRequest()

	res := s.tracker.Evaluate([]Request{req}, nil, nil)
	s.Equal(0, res.ActiveByRequest[req.ID], "with no drafts the first requirement is active")
	s.False(res.Complete)

	res = s.tracker.Evaluate([]Request{req}, []Draft{draft(req.ID, "PASSPORT")}, nil)
	s.Equal(1, res.ActiveByRequest[req.ID], "identity satisfied, proof of address active")
	s.False(res.Complete)
	s.Equal([]string{"PASSPORT"}, res.SatisfiedTypes[req.ID])

	res = s.tracker.Evaluate([]Request{req}, []Draft{
		draft(req.ID, "PASSPORT"),
		draft(req.ID, "PROOF_OF_ADDRESS"),
	}, nil)
	_, active := res.ActiveByRequest[req.ID]
	s.False(active, "a fully collected request has no active requirement")
	s.True(res.Complete)
}

func (s *TrackerSuite) TestSingleActiveRequirement() {
	// A later draft never activates a later requirement while an earlier one
	// remains open.
	req := identityRequest()
	res := s.tracker.Evaluate([]Request{req}, []Draft{draft(req.ID, "PROOF_OF_ADDRESS")}, nil)

	s.Equal(0, res.ActiveByRequest[req.ID])
	s.Len(res.ActiveByRequest, 1)
	s.False(res.Complete)
}

func (s *TrackerSuite) TestZeroMinimumIsAlwaysSatisfied() {
	req := Request{ID: "dr-2", Requirements: []Requirement{
		{AcceptedTypes: []string{"OPTIONAL_EXTRA"}, MinRequired: 0},
		{AcceptedTypes: []string{"BANK_STATEMENT"}, MinRequired: 2},
	}}

	res := s.tracker.Evaluate([]Request{req}, nil, nil)
	s.Equal(1, res.ActiveByRequest[req.ID], "a zero-minimum requirement is skipped over")

	res = s.tracker.Evaluate([]Request{req}, []Draft{
		draft(req.ID, "BANK_STATEMENT"),
		draft(req.ID, "BANK_STATEMENT"),
	}, nil)
	s.True(res.Complete)
}

func (s *TrackerSuite) TestDraftsWithFieldErrorsNeverCount() {
	req := identityRequest()
	d := draft(req.ID, "PASSPORT")

	errs := make(schema.FieldErrors)
	errs.Add(d.FieldKey, "file too large")

	res := s.tracker.Evaluate([]Request{req}, []Draft{d}, errs)
	s.Equal(0, res.ActiveByRequest[req.ID])
	s.Empty(res.SatisfiedTypes[req.ID])
	s.False(res.Complete)
}

func (s *TrackerSuite) TestMultipleRequestsAllGateCompletion() {
	r1 := identityRequest()
	r2 := Request{ID: "dr-2", Requirements: []Requirement{
		{AcceptedTypes: []string{"ARTICLES_OF_INCORPORATION"}, MinRequired: 1},
	}}

	res := s.tracker.Evaluate([]Request{r1, r2}, []Draft{
		draft(r1.ID, "DRIVERS_LICENSE"),
		draft(r1.ID, "PROOF_OF_ADDRESS"),
	}, nil)
	s.False(res.Complete, "dr-2 still open")
	s.Equal(0, res.ActiveByRequest[r2.ID])

	res = s.tracker.Evaluate([]Request{r1, r2}, []Draft{
		draft(r1.ID, "DRIVERS_LICENSE"),
		draft(r1.ID, "PROOF_OF_ADDRESS"),
		draft(r2.ID, "ARTICLES_OF_INCORPORATION"),
	}, nil)
	s.True(res.Complete)
}

func (s *TrackerSuite) TestDuplicateTypesDeduplicated() {
	req := Request{ID: "dr-3", Requirements: []Requirement{
		{AcceptedTypes: []string{"BANK_STATEMENT"}, MinRequired: 2},
	}}
	res := s.tracker.Evaluate([]Request{req}, []Draft{
		draft(req.ID, "BANK_STATEMENT"),
		draft(req.ID, "BANK_STATEMENT"),
	}, nil)
	s.Equal([]string{"BANK_STATEMENT"}, res.SatisfiedTypes[req.ID])
	s.True(res.Complete)
}

func (s *TrackerSuite) TestStrayDraftsAreTolerated() {
	// Drafts for an unknown request (e.g. left over from an abandoned upload)
	// must not break evaluation.
	req := identityRequest()
	res := s.tracker.Evaluate([]Request{req}, []Draft{draft("dr-unknown", "PASSPORT")}, nil)
	s.Equal(0, res.ActiveByRequest[req.ID])
	s.False(res.Complete)
}

// ============================================================================
// Submit guard
// ============================================================================

func (s *TrackerSuite) TestEnsureSubmittable() {
	req := identityRequest()

	res := s.tracker.Evaluate([]Request{req}, []Draft{draft(req.ID, "PASSPORT")}, nil)
	err := s.tracker.EnsureSubmittable(req, res)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRequirementUnsatisfied))

	res = s.tracker.Evaluate([]Request{req}, []Draft{
		draft(req.ID, "PASSPORT"),
		draft(req.ID, "PROOF_OF_ADDRESS"),
	}, nil)
	s.NoError(s.tracker.EnsureSubmittable(req, res))
}

func (s *TrackerSuite) TestActiveRequirementLookup() {
	req := identityRequest()
	res := s.tracker.Evaluate([]Request{req}, nil, nil)

	requirement, ok := res.ActiveRequirement(req)
	s.True(ok)
	s.Equal([]string{"PASSPORT", "DRIVERS_LICENSE"}, requirement.AcceptedTypes)
}
