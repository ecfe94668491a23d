// Package onboarding is the application service tying the engine together:
// it loads collaborator data, runs step validation, persists accepted values,
// and drives the session controller.
package onboarding

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	catalogports "onboard/internal/catalog/ports"
	docports "onboard/internal/docapi/ports"
	"onboard/internal/documents"
	"onboard/internal/domain"
	"onboard/internal/flow"
	partyports "onboard/internal/party/ports"
	"onboard/internal/platform/metrics"
	"onboard/internal/progress"
	"onboard/internal/schema"
	"onboard/internal/session"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/sentinel"
)

var tracer = otel.Tracer("onboard.onboarding")

type Service struct {
	registry   *flow.Registry
	compiler   *schema.Compiler
	tracker    *documents.Tracker
	aggregator *progress.Aggregator
	sessions   *session.Controller
	parties    partyports.Store
	catalog    catalogports.Catalog
	docs       docports.API

	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	registry *flow.Registry,
	compiler *schema.Compiler,
	tracker *documents.Tracker,
	aggregator *progress.Aggregator,
	sessions *session.Controller,
	parties partyports.Store,
	catalog catalogports.Catalog,
	docs docports.API,
	opts ...Option,
) *Service {
	s := &Service{
		registry:   registry,
		compiler:   compiler,
		tracker:    tracker,
		aggregator: aggregator,
		sessions:   sessions,
		parties:    parties,
		catalog:    catalog,
		docs:       docs,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is the engine's full view handed to the transport layer: session
// position, entity data, compiled progress, and document status.
type Snapshot struct {
	State     *session.State
	Client    domain.ClientRecord
	Questions []schema.Question
	Requests  []documents.Request
	Progress  map[id.SectionID]progress.Status
	Documents documents.Result
}

// StepResult reports one step submission. A non-empty FieldErrors means the
// submission was rejected and navigation did not advance.
type StepResult struct {
	State       *session.State
	FieldErrors schema.FieldErrors
}

// Start opens a session for a client, loading the client record first and
// its question catalog and document requests concurrently after.
func (s *Service) Start(ctx context.Context, clientID id.ClientID) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "onboarding.start",
		trace.WithAttributes(attribute.String("client.id", clientID.String())))
	defer span.End()

	data, requests, err := s.loadEntity(ctx, clientID)
	if err != nil {
		return nil, err
	}
	state, err := s.sessions.Start(ctx, clientID, data)
	if err != nil {
		return nil, err
	}
	return s.snapshot(state, data, requests), nil
}

// Resume reloads a session; the landing position is recomputed from fresh
// entity data.
func (s *Service) Resume(ctx context.Context, sessionID id.SessionID) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "onboarding.resume")
	defer span.End()

	current, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, requests, err := s.loadEntity(ctx, current.ClientID)
	if err != nil {
		return nil, err
	}
	state, err := s.sessions.Resume(ctx, sessionID, data)
	if err != nil {
		return nil, err
	}
	return s.snapshot(state, data, requests), nil
}

// View returns the current snapshot without moving navigation.
func (s *Service) View(ctx context.Context, sessionID id.SessionID) (*Snapshot, error) {
	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, requests, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(state, data, requests), nil
}

// GoTo jumps to a section or step.
func (s *Service) GoTo(ctx context.Context, sessionID id.SessionID, target session.Target) (*session.State, error) {
	return s.sessions.GoTo(ctx, sessionID, target)
}

// Next advances navigation one position.
func (s *Service) Next(ctx context.Context, sessionID id.SessionID) (*session.State, error) {
	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, _, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Next(ctx, sessionID, data)
}

// Prev retreats navigation one position.
func (s *Service) Prev(ctx context.Context, sessionID id.SessionID) (*session.State, error) {
	return s.sessions.Prev(ctx, sessionID)
}

// SubmitStep validates and persists one step's values. Rejected values stay
// in session state so a reload does not lose them; accepted values are
// persisted upstream, the stash is cleared, and navigation advances.
func (s *Service) SubmitStep(ctx context.Context, sessionID id.SessionID, stepID id.StepID, values map[string]any) (*StepResult, error) {
	ctx, span := tracer.Start(ctx, "onboarding.submit_step",
		trace.WithAttributes(attribute.String("step.id", stepID.String())))
	defer span.End()

	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	section, step, err := s.registry.Step(stepID)
	if err != nil {
		return nil, err
	}
	data, _, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}

	if step.Transform != nil {
		values = step.Transform(values)
	}

	errs := step.Check(flow.ValidationInput{
		Context:              data.Client.Context,
		Values:               values,
		Questions:            data.Questions,
		Responses:            data.Responses(),
		OutstandingDocuments: len(data.Client.Outstanding.DocumentRequestIDs),
	})
	if !errs.Empty() {
		// Keep the typing for retry; navigation stays put.
		if _, err := s.sessions.SaveStepValues(ctx, sessionID, stepID, values); err != nil {
			return nil, err
		}
		s.recordSubmission("rejected")
		return &StepResult{State: state, FieldErrors: errs}, nil
	}

	if err := s.persistStep(ctx, state, section, step, data, values); err != nil {
		// The upstream write failed; stash the values so the user retries
		// without retyping.
		if _, saveErr := s.sessions.SaveStepValues(ctx, sessionID, stepID, values); saveErr != nil {
			s.logger.Warn("stash step values failed", "stepID", stepID, "error", saveErr)
		}
		s.recordSubmission("failed")
		return nil, err
	}

	if _, err := s.sessions.ClearStepValues(ctx, sessionID, stepID); err != nil {
		return nil, err
	}
	s.emit(ctx, state, audit.EventStepSubmitted, section.ID, stepID, "")
	s.recordSubmission("accepted")

	// Reload entity data so the advance sees the accepted values.
	data, _, err = s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}
	advanced, err := s.sessions.Next(ctx, sessionID, data)
	if err != nil {
		return nil, err
	}
	return &StepResult{State: advanced, FieldErrors: make(schema.FieldErrors)}, nil
}

// persistStep routes accepted values to the right upstream write: the party
// being edited for party-scoped sections, the client record otherwise. The
// attestation step additionally records the confirmations.
func (s *Service) persistStep(ctx context.Context, state *session.State, section flow.Section, step flow.Step, data progress.EntityData, values map[string]any) error {
	if section.PartyFilter != nil {
		party, err := s.resolveParty(ctx, state, section, step, data)
		if err != nil {
			return err
		}
		if party.Values == nil {
			party.Values = make(map[string]any, len(values))
		}
		for k, v := range values {
			party.Values[k] = v
		}
		return s.parties.UpdateParty(ctx, data.Client.ID, party)
	}

	if err := s.parties.SaveValues(ctx, data.Client.ID, values); err != nil {
		return err
	}
	if step.ID == id.StepID(flow.StepReviewAttest) {
		var confirmed []string
		for _, field := range step.Fields {
			confirmed = append(confirmed, field)
		}
		return s.parties.SaveAttestations(ctx, data.Client.ID, confirmed)
	}
	return nil
}

// resolveParty finds the party instance a step submission belongs to: the one
// bound in session state, else the only matching party, else a fresh instance
// created with the section's type and roles.
func (s *Service) resolveParty(ctx context.Context, state *session.State, section flow.Section, step flow.Step, data progress.EntityData) (domain.Party, error) {
	if partyID, ok := state.EditingParty(step.ID); ok {
		for _, p := range data.Client.Parties {
			if p.ID == partyID {
				return p, nil
			}
		}
		return domain.Party{}, dErrors.New(dErrors.CodeConfiguration,
			fmt.Sprintf("session edits unknown party %s", partyID))
	}

	matching := section.MatchingParties(data.Client)
	if len(matching) == 1 {
		return matching[0], nil
	}
	if len(matching) > 1 {
		return domain.Party{}, dErrors.New(dErrors.CodeConfiguration,
			fmt.Sprintf("step %s has %d candidate parties and no editing binding", step.ID, len(matching)))
	}

	created, err := s.parties.CreateParty(ctx, data.Client.ID, domain.Party{
		Type:   section.PartyFilter.PartyType,
		Roles:  section.PartyFilter.Roles,
		Active: true,
	})
	if err != nil {
		return domain.Party{}, err
	}
	if _, err := s.sessions.GoTo(ctx, state.SessionID, session.Target{Step: step.ID, Editing: created.ID}); err != nil {
		return domain.Party{}, err
	}
	return created, nil
}

// SubmitResponses validates answers against the compiled question schema and
// persists them when clean.
func (s *Service) SubmitResponses(ctx context.Context, sessionID id.SessionID, responses schema.ResponseSet) (*StepResult, error) {
	ctx, span := tracer.Start(ctx, "onboarding.submit_responses")
	defer span.End()

	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, _, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}

	compiled, err := s.compiler.Compile(data.Questions)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SchemaCompiles.Inc()
	}
	errs := compiled.Validate(responses)
	if !errs.Empty() {
		s.recordSubmission("rejected")
		return &StepResult{State: state, FieldErrors: errs}, nil
	}

	persisted := make([]domain.QuestionResponse, 0, len(responses))
	for _, q := range data.Questions {
		if values, ok := responses[q.ID]; ok {
			persisted = append(persisted, domain.QuestionResponse{QuestionID: q.ID, Values: values})
		}
	}
	if err := s.parties.SaveResponses(ctx, data.Client.ID, persisted); err != nil {
		s.recordSubmission("failed")
		return nil, err
	}

	s.emit(ctx, state, audit.EventStepSubmitted, state.CurrentSection, id.StepID(flow.StepQuestionForm), "")
	s.recordSubmission("accepted")
	return &StepResult{State: state, FieldErrors: make(schema.FieldErrors)}, nil
}

// AddOwner creates a beneficial-owner party and enters its first step.
func (s *Service) AddOwner(ctx context.Context, sessionID id.SessionID) (*session.State, error) {
	ctx, span := tracer.Start(ctx, "onboarding.add_owner")
	defer span.End()

	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, _, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}

	created, err := s.parties.CreateParty(ctx, data.Client.ID, domain.Party{
		Type:   domain.PartyTypeIndividual,
		Roles:  []domain.PartyRole{domain.RoleBeneficialOwner},
		Active: true,
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, state, audit.EventOwnerAdded, flow.SectionOwners, "", created.ID.String())

	return s.sessions.EnterOwner(ctx, sessionID, data, created.ID, created.Values)
}

// EditOwner jumps to the first step still failing for an existing owner.
func (s *Service) EditOwner(ctx context.Context, sessionID id.SessionID, partyID id.PartyID) (*session.State, error) {
	ctx, span := tracer.Start(ctx, "onboarding.edit_owner",
		trace.WithAttributes(attribute.String("party.id", partyID.String())))
	defer span.End()

	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, _, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}

	for _, p := range data.Client.Parties {
		if p.ID == partyID {
			return s.sessions.EnterOwner(ctx, sessionID, data, partyID, p.Values)
		}
	}
	return nil, fmt.Errorf("party %s on client %s: %w", partyID, data.Client.ID, sentinel.ErrNotFound)
}

// RemoveOwner deactivates an owner instance. The party record survives
// upstream; it just stops matching the owners section.
func (s *Service) RemoveOwner(ctx context.Context, sessionID id.SessionID, partyID id.PartyID) error {
	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return err
	}
	data, _, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return err
	}
	for _, p := range data.Client.Parties {
		if p.ID == partyID {
			p.Active = false
			return s.parties.UpdateParty(ctx, data.Client.ID, p)
		}
	}
	return fmt.Errorf("party %s on client %s: %w", partyID, data.Client.ID, sentinel.ErrNotFound)
}

// UploadDraft records a draft in session state and pushes the file upstream.
// When the upstream call fails the draft stays in the session, so the user
// retries without re-selecting the file.
func (s *Service) UploadDraft(ctx context.Context, sessionID id.SessionID, draft documents.Draft, content []byte) (*session.State, error) {
	ctx, span := tracer.Start(ctx, "onboarding.upload_draft",
		trace.WithAttributes(attribute.String("document.type", draft.DocumentType)))
	defer span.End()

	if draft.FieldKey == "" {
		draft.FieldKey = "document_" + draft.RequestID.String()
	}
	state, err := s.sessions.RecordDraft(ctx, sessionID, draft)
	if err != nil {
		return nil, err
	}
	if err := s.docs.Upload(ctx, draft.RequestID, draft.DocumentType, draft.FileName, content); err != nil {
		return state, dErrors.Wrap(err, dErrors.CodeTransport, "upload document")
	}
	s.emit(ctx, state, audit.EventDocumentUploaded, state.CurrentSection, state.CurrentStep, draft.DocumentType)
	return state, nil
}

// SubmitDocuments closes one document request once every requirement is
// satisfied. Unsatisfied requirements block with a recoverable error; drafts
// are cleared only after the upstream submit succeeds.
func (s *Service) SubmitDocuments(ctx context.Context, sessionID id.SessionID, requestID id.DocumentRequestID) (*session.State, error) {
	ctx, span := tracer.Start(ctx, "onboarding.submit_documents",
		trace.WithAttributes(attribute.String("request.id", requestID.String())))
	defer span.End()

	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	requests, err := s.docs.RequestsByIDs(ctx, []id.DocumentRequestID{requestID})
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("document request %s: %w", requestID, sentinel.ErrNotFound)
	}
	request := requests[0]

	result := s.tracker.Evaluate(requests, state.DraftsFor(requestID), nil)
	if err := s.tracker.EnsureSubmittable(request, result); err != nil {
		return nil, err
	}
	if err := s.docs.Submit(ctx, requestID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "submit document request")
	}

	state, err = s.sessions.ClearDrafts(ctx, sessionID, requestID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, state, audit.EventDocumentSubmitted, state.CurrentSection, state.CurrentStep, requestID.String())
	return state, nil
}

// Progress returns per-section status for the session's client.
func (s *Service) Progress(ctx context.Context, sessionID id.SessionID) (map[id.SectionID]progress.Status, error) {
	state, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, _, err := s.loadEntity(ctx, state.ClientID)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Status(data), nil
}

// loadEntity loads the client record, then its question catalog and document
// requests concurrently.
func (s *Service) loadEntity(ctx context.Context, clientID id.ClientID) (progress.EntityData, []documents.Request, error) {
	client, err := s.parties.GetClient(ctx, clientID)
	if err != nil {
		return progress.EntityData{}, nil, err
	}

	var (
		questions []schema.Question
		requests  []documents.Request
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		questions, err = s.catalog.QuestionsByIDs(gctx, client.Outstanding.QuestionIDs)
		return err
	})
	g.Go(func() error {
		var err error
		requests, err = s.docs.RequestsByIDs(gctx, client.Outstanding.DocumentRequestIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return progress.EntityData{}, nil, err
	}
	return progress.EntityData{Client: client, Questions: questions}, requests, nil
}

func (s *Service) snapshot(state *session.State, data progress.EntityData, requests []documents.Request) *Snapshot {
	return &Snapshot{
		State:     state,
		Client:    data.Client,
		Questions: data.Questions,
		Requests:  requests,
		Progress:  s.aggregator.Status(data),
		Documents: s.tracker.Evaluate(requests, state.Drafts, nil),
	}
}

func (s *Service) emit(ctx context.Context, state *session.State, action audit.FlowEvent, sectionID id.SectionID, stepID id.StepID, detail string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		SessionID: state.SessionID,
		ClientID:  state.ClientID,
		Action:    string(action),
		Section:   sectionID,
		Step:      stepID,
		EntityRef: "",
		Detail:    detail,
	})
	if err != nil {
		s.logger.Warn("emit flow event failed", "action", action, "error", err)
	}
}

func (s *Service) recordSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordStepSubmission(outcome)
	}
}
