package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	catalogmem "onboard/internal/catalog/store/memory"
	docmem "onboard/internal/docapi/store/memory"
	"onboard/internal/documents"
	"onboard/internal/domain"
	"onboard/internal/flow"
	"onboard/internal/flow/fieldrules"
	partymem "onboard/internal/party/store/memory"
	"onboard/internal/progress"
	"onboard/internal/schema"
	"onboard/internal/session"
	sessionmem "onboard/internal/session/store/memory"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	auditmem "onboard/pkg/platform/audit/store/memory"
	"onboard/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
	parties *partymem.Store
	docs    *docmem.API
	events  *auditmem.Store
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

const clientID = id.ClientID("client-1")

func (s *ServiceSuite) SetupTest() {
	registry, err := flow.DefaultRegistry(fieldrules.NewDefaultResolver(), schema.NewCompiler())
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.parties = partymem.NewStore()
	s.parties.Seed(domain.ClientRecord{
		ID:     clientID,
		Status: domain.ClientStatusNew,
		Context: domain.EntityContext{
			EntityType:   domain.EntityTypeLLC,
			Jurisdiction: "US",
			Products:     []string{"EMBEDDED_PAYMENTS"},
		},
		Values: map[string]any{},
		Outstanding: domain.Outstanding{
			QuestionIDs:        []id.QuestionID{"30005"},
			DocumentRequestIDs: []id.DocumentRequestID{"dr-1"},
		},
	})

	catalog := catalogmem.NewCatalog(
		schema.Question{
			ID:          "30005",
			Description: "Does the business handle customer funds?",
			Kind:        schema.KindBoolean,
			Triggers: []schema.SubQuestionTrigger{
				{AnyValues: []string{"true"}, QuestionIDs: []id.QuestionID{"30006"}},
			},
		},
		schema.Question{ID: "30006", Kind: schema.KindString, ParentID: "30005"},
	)

	s.docs = docmem.NewAPI(documents.Request{
		ID:      "dr-1",
		PartyID: "p-1",
		Requirements: []documents.Requirement{
			{AcceptedTypes: []string{"PASSPORT", "DRIVERS_LICENSE"}, MinRequired: 1},
			{AcceptedTypes: []string{"PROOF_OF_ADDRESS"}, MinRequired: 1},
		},
	})

	s.events = auditmem.New()
	aggregator := progress.NewAggregator(registry)
	controller := session.NewController(registry, aggregator, sessionmem.NewStore(),
		session.WithAudit(audit.NewPublisher(s.events)))

	s.service = NewService(
		registry,
		schema.NewCompiler(),
		documents.NewTracker(),
		aggregator,
		controller,
		s.parties,
		catalog,
		s.docs,
		WithAudit(audit.NewPublisher(s.events)),
	)
}

func (s *ServiceSuite) start() *Snapshot {
	snap, err := s.service.Start(s.ctx, clientID)
	s.Require().NoError(err)
	return snap
}

// ============================================================================
// Session lifecycle
// ============================================================================

func (s *ServiceSuite) TestStartAssemblesSnapshot() {
	snap := s.start()

	s.Equal(clientID, snap.Client.ID)
	s.Len(snap.Questions, 2, "dependent question rides along with its parent")
	s.Require().Len(snap.Requests, 1)
	s.Equal(id.SectionID(flow.SectionBusiness), snap.State.CurrentSection)
	s.Equal(progress.StatusNotStarted, snap.Progress[id.SectionID(flow.SectionBusiness)])
	s.False(snap.Documents.Complete)
	s.Equal(0, snap.Documents.ActiveByRequest["dr-1"])
}

func (s *ServiceSuite) TestResumeAfterServerSideProgress() {
	snap := s.start()

	// Another channel completed the business section in the meantime.
	s.Require().NoError(s.parties.SaveValues(s.ctx, clientID, completeBusinessValues()))

	resumed, err := s.service.Resume(s.ctx, snap.State.SessionID)
	s.Require().NoError(err)
	s.Equal(id.SectionID(flow.SectionPersonal), resumed.State.CurrentSection)
	s.Equal(progress.StatusCompleted, resumed.Progress[id.SectionID(flow.SectionBusiness)])
}

// ============================================================================
// Step submission
// ============================================================================

func (s *ServiceSuite) TestSubmitStepRejectsInvalidValues() {
	snap := s.start()

	res, err := s.service.SubmitStep(s.ctx, snap.State.SessionID, flow.StepBusinessIdentity, map[string]any{
		"organizationDetails.organizationName": "Acme LLC",
	})
	s.Require().NoError(err)
	s.Contains(res.FieldErrors, "organizationDetails.organizationIds.ein")
	s.Equal(id.StepID(flow.StepBusinessIdentity), res.State.CurrentStep, "navigation did not advance")

	// The typing is stashed for reload.
	state, err := s.service.sessions.Current(s.ctx, snap.State.SessionID)
	s.Require().NoError(err)
	s.Equal("Acme LLC", state.ValuesFor(flow.StepBusinessIdentity)["organizationDetails.organizationName"])
}

func (s *ServiceSuite) TestSubmitStepPersistsAndAdvances() {
	snap := s.start()

	res, err := s.service.SubmitStep(s.ctx, snap.State.SessionID, flow.StepBusinessIdentity, map[string]any{
		"organizationDetails.organizationName":    "  Acme LLC ",
		"organizationDetails.yearOfFormation":     "2018",
		"organizationDetails.countryOfFormation":  "US",
		"organizationDetails.organizationIds.ein": "12-3456789",
	})
	s.Require().NoError(err)
	s.True(res.FieldErrors.Empty())
	s.Equal(id.StepID(flow.StepBusinessProfile), res.State.CurrentStep)

	client, err := s.parties.GetClient(s.ctx, clientID)
	s.Require().NoError(err)
	s.Equal("Acme LLC", client.Values["organizationDetails.organizationName"], "transform trimmed whitespace")

	s.Empty(res.State.ValuesFor(flow.StepBusinessIdentity), "stash cleared after acceptance")
}

func (s *ServiceSuite) TestSubmitStepKeepsValuesWhenUpstreamFails() {
	snap := s.start()

	failing := &failingPartyStore{Store: s.parties}
	s.service.parties = failing

	_, err := s.service.SubmitStep(s.ctx, snap.State.SessionID, flow.StepBusinessIdentity, map[string]any{
		"organizationDetails.organizationName":    "Acme LLC",
		"organizationDetails.yearOfFormation":     "2018",
		"organizationDetails.countryOfFormation":  "US",
		"organizationDetails.organizationIds.ein": "12-3456789",
	})
	s.Require().Error(err)

	state, err := s.service.sessions.Current(s.ctx, snap.State.SessionID)
	s.Require().NoError(err)
	s.Equal("Acme LLC", state.ValuesFor(flow.StepBusinessIdentity)["organizationDetails.organizationName"])
	s.Equal(id.StepID(flow.StepBusinessIdentity), state.CurrentStep)
}

func (s *ServiceSuite) TestSubmitPersonalStepCreatesPartyImplicitly() {
	snap := s.start()

	res, err := s.service.SubmitStep(s.ctx, snap.State.SessionID, flow.StepPersonalIdentity, map[string]any{
		"individualDetails.firstName":         "Ada",
		"individualDetails.lastName":          "Lovelace",
		"individualDetails.birthDate":         "1985-12-10",
		"individualDetails.individualIds.ssn": "123-45-6789",
	})
	s.Require().NoError(err)
	s.True(res.FieldErrors.Empty())

	client, err := s.parties.GetClient(s.ctx, clientID)
	s.Require().NoError(err)
	s.Require().Len(client.Parties, 1)
	s.True(client.Parties[0].HasRole(domain.RoleController))
	s.Equal("Ada", client.Parties[0].Values["individualDetails.firstName"])
}

// ============================================================================
// Questions
// ============================================================================

func (s *ServiceSuite) TestSubmitResponsesValidatesDependents() {
	snap := s.start()

	// Parent answered true activates the dependent, which is missing.
	res, err := s.service.SubmitResponses(s.ctx, snap.State.SessionID, schema.ResponseSet{
		"30005": {"true"},
	})
	s.Require().NoError(err)
	s.Contains(res.FieldErrors, schema.FieldKey("30006"))

	res, err = s.service.SubmitResponses(s.ctx, snap.State.SessionID, schema.ResponseSet{
		"30005": {"true"},
		"30006": {"Customer deposits held in FBO accounts"},
	})
	s.Require().NoError(err)
	s.True(res.FieldErrors.Empty())

	client, err := s.parties.GetClient(s.ctx, clientID)
	s.Require().NoError(err)
	s.Equal([]string{"true"}, client.ResponseFor("30005"))
	s.NotNil(client.ResponseFor("30006"))
}

// ============================================================================
// Owners
// ============================================================================

func (s *ServiceSuite) TestAddOwnerCreatesPartyAndEntersStepper() {
	snap := s.start()

	state, err := s.service.AddOwner(s.ctx, snap.State.SessionID)
	s.Require().NoError(err)

	s.Equal(id.SectionID(flow.SectionOwners), state.CurrentSection)
	s.Equal(id.StepID(flow.StepOwnerIdentity), state.CurrentStep)

	client, err := s.parties.GetClient(s.ctx, clientID)
	s.Require().NoError(err)
	s.Require().Len(client.Parties, 1)
	owner := client.Parties[0]
	s.True(owner.HasRole(domain.RoleBeneficialOwner))

	bound, ok := state.EditingParty(flow.StepOwnerIdentity)
	s.True(ok)
	s.Equal(owner.ID, bound)

	var actions []string
	for _, e := range s.events.All() {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(audit.EventOwnerAdded))
}

func (s *ServiceSuite) TestEditOwnerLandsOnFirstFailingStep() {
	snap := s.start()

	owner, err := s.parties.CreateParty(s.ctx, clientID, domain.Party{
		Type: domain.PartyTypeIndividual, Active: true,
		Roles: []domain.PartyRole{domain.RoleBeneficialOwner},
		Values: map[string]any{
			"individualDetails.firstName":         "Ada",
			"individualDetails.lastName":          "Lovelace",
			"individualDetails.birthDate":         "1985-12-10",
			"individualDetails.natureOfOwnership": "DIRECT",
		},
	})
	s.Require().NoError(err)

	state, err := s.service.EditOwner(s.ctx, snap.State.SessionID, owner.ID)
	s.Require().NoError(err)
	s.Equal(id.StepID(flow.StepOwnerAddress), state.CurrentStep)
}

func (s *ServiceSuite) TestRemoveOwnerDeactivates() {
	snap := s.start()

	owner, err := s.parties.CreateParty(s.ctx, clientID, domain.Party{
		Type: domain.PartyTypeIndividual, Active: true,
		Roles: []domain.PartyRole{domain.RoleBeneficialOwner},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.service.RemoveOwner(s.ctx, snap.State.SessionID, owner.ID))

	client, err := s.parties.GetClient(s.ctx, clientID)
	s.Require().NoError(err)
	s.False(client.Parties[0].Active)
}

// ============================================================================
// Documents
// ============================================================================

func (s *ServiceSuite) TestDocumentFlow() {
	snap := s.start()
	sessionID := snap.State.SessionID

	// Submitting before any uploads is blocked, not fatal.
	_, err := s.service.SubmitDocuments(s.ctx, sessionID, "dr-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRequirementUnsatisfied))

	_, err = s.service.UploadDraft(s.ctx, sessionID, documents.Draft{
		RequestID: "dr-1", DocumentType: "PASSPORT", FileName: "passport.pdf",
	}, []byte("binary"))
	s.Require().NoError(err)

	_, err = s.service.SubmitDocuments(s.ctx, sessionID, "dr-1")
	s.Require().Error(err, "proof of address still missing")

	_, err = s.service.UploadDraft(s.ctx, sessionID, documents.Draft{
		RequestID: "dr-1", DocumentType: "PROOF_OF_ADDRESS", FileName: "utility.pdf",
	}, []byte("binary"))
	s.Require().NoError(err)

	state, err := s.service.SubmitDocuments(s.ctx, sessionID, "dr-1")
	s.Require().NoError(err)
	s.Empty(state.DraftsFor("dr-1"), "drafts cleared after successful submission")
	s.True(s.docs.Submitted("dr-1"))
	s.Len(s.docs.Uploads(), 2)
}

func (s *ServiceSuite) TestFailedUploadKeepsDraftForRetry() {
	snap := s.start()
	s.docs.FailUploads = true

	state, err := s.service.UploadDraft(s.ctx, snap.State.SessionID, documents.Draft{
		RequestID: "dr-1", DocumentType: "PASSPORT", FileName: "passport.pdf",
	}, []byte("binary"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransport))
	s.Len(state.DraftsFor("dr-1"), 1, "draft survives the failed upload")
}

// ============================================================================
// Helpers
// ============================================================================

type failingPartyStore struct {
	*partymem.Store
}

func (f *failingPartyStore) SaveValues(context.Context, id.ClientID, map[string]any) error {
	return dErrors.Wrap(errors.Join(sentinel.ErrUnavailable), dErrors.CodeTransport, "party store down")
}

func completeBusinessValues() map[string]any {
	return map[string]any{
		"organizationDetails.organizationName":    "Acme LLC",
		"organizationDetails.yearOfFormation":     "2018",
		"organizationDetails.countryOfFormation":  "US",
		"organizationDetails.organizationIds.ein": "12-3456789",
		"organizationDetails.industryCode":        "5812",
		"organizationDetails.phone":               "+1 555 0100",
		"organizationDetails.address.line1":       "1 Main St",
		"organizationDetails.address.city":        "Austin",
		"organizationDetails.address.state":       "TX",
		"organizationDetails.address.postalCode":  "78701",
	}
}
