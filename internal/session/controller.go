package session

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/documents"
	"onboard/internal/flow"
	"onboard/internal/platform/metrics"
	"onboard/internal/progress"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/requestcontext"
)

var tracer = otel.Tracer("onboard.session")

// Controller is the single writer of session state. Every transition goes
// through it: it mutates the state, persists the snapshot, and emits a
// step-changed event for host telemetry. Readers work off Clone()d snapshots.
type Controller struct {
	registry *flow.Registry
	progress *progress.Aggregator
	store    Store
	audit    *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu sync.Mutex
}

type ControllerOption func(*Controller)

func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

func WithAudit(p *audit.Publisher) ControllerOption {
	return func(c *Controller) { c.audit = p }
}

func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

func NewController(registry *flow.Registry, aggregator *progress.Aggregator, store Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		registry: registry,
		progress: aggregator,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens a new session for a client and lands it on the first section
// that still needs work.
func (c *Controller) Start(ctx context.Context, clientID id.ClientID, data progress.EntityData) (*State, error) {
	ctx, span := tracer.Start(ctx, "session.start",
		trace.WithAttributes(attribute.String("client.id", clientID.String())))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	state := newState(id.NewSessionID(), clientID, requestcontext.Now(ctx))
	c.land(state, data)

	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	if c.metrics != nil {
		c.metrics.SessionsStarted.Inc()
	}
	c.emit(ctx, state, audit.EventSessionStarted, "")
	c.logger.Info("session started",
		"sessionID", state.SessionID,
		"clientID", clientID,
		"section", state.CurrentSection,
		"step", state.CurrentStep,
	)
	return state.Clone(), nil
}

// Resume reloads a session and recomputes the landing position from entity
// completion status. The stored step pointer is deliberately not trusted:
// server-side data may have made it invalid or already satisfied.
func (c *Controller) Resume(ctx context.Context, sessionID id.SessionID, data progress.EntityData) (*State, error) {
	ctx, span := tracer.Start(ctx, "session.resume",
		trace.WithAttributes(attribute.String("session.id", sessionID.String())))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.land(state, data)

	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	if c.metrics != nil {
		c.metrics.SessionsResumed.Inc()
	}
	c.emit(ctx, state, audit.EventSessionResumed, "")
	return state.Clone(), nil
}

// Current returns a read-only snapshot without touching navigation state.
func (c *Controller) Current(ctx context.Context, sessionID id.SessionID) (*State, error) {
	return c.load(ctx, sessionID)
}

// load fetches a snapshot and repairs the maps a serializing store drops
// when they round-trip empty.
func (c *Controller) load(ctx context.Context, sessionID id.SessionID) (*State, error) {
	state, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return state.Normalize(), nil
}

// Target addresses a goTo destination: a section overview, a specific step,
// or a step scoped to one party instance.
type Target struct {
	Section id.SectionID
	Step    id.StepID
	// Editing binds the step to a sub-entity instance, e.g. owner #2.
	Editing id.PartyID
	// Label optionally overrides the destination's short label for breadcrumb
	// display. It rides along on the step-changed event and is not persisted.
	Label string
}

// GoTo moves directly to a section or step. Unknown targets are programming
// errors, not user-facing ones.
func (c *Controller) GoTo(ctx context.Context, sessionID id.SessionID, target Target) (*State, error) {
	ctx, span := tracer.Start(ctx, "session.goto")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case target.Step != "":
		section, _, err := c.registry.Step(target.Step)
		if err != nil {
			return nil, err
		}
		state.CurrentSection = section.ID
		state.CurrentStep = target.Step
		if target.Editing != "" {
			state.Editing[target.Step] = target.Editing
		}
	case target.Section != "":
		section, err := c.registry.Section(target.Section)
		if err != nil {
			return nil, err
		}
		state.CurrentSection = section.ID
		state.CurrentStep = ""
	default:
		return nil, dErrors.New(dErrors.CodeConfiguration, "goTo target has neither section nor step")
	}

	return c.commitLabeled(ctx, state, "", target.Label)
}

// Next advances one position in the current stepper. On the section overview
// it enters the first step; past the last step it moves to the next
// applicable section, or reports the flow complete when none remains.
func (c *Controller) Next(ctx context.Context, sessionID id.SessionID, data progress.EntityData) (*State, error) {
	ctx, span := tracer.Start(ctx, "session.next")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if state.CurrentStep == "" {
		first, err := c.registry.FirstStep(state.CurrentSection)
		if err != nil {
			return nil, err
		}
		state.CurrentStep = first.ID
		return c.commitTransition(ctx, state, "")
	}

	next, ok, err := c.registry.NextStep(state.CurrentStep)
	if err != nil {
		return nil, err
	}
	if ok {
		state.CurrentStep = next.ID
		return c.commitTransition(ctx, state, "")
	}

	// Last step of the section: move on, or finish.
	after, ok, err := c.registry.SectionAfter(state.CurrentSection, data.Client.Context)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !c.flowComplete(data) {
			// The stepper is exhausted but stored data still has gaps, e.g.
			// the attestation was never confirmed. Hold position; completion
			// fires only once every section reads completed.
			return state.Clone(), nil
		}
		if c.metrics != nil {
			c.metrics.FlowsCompleted.Inc()
		}
		c.emit(ctx, state, audit.EventFlowCompleted, "")
		c.logger.Info("flow completed", "sessionID", state.SessionID, "clientID", state.ClientID)
		return state.Clone(), nil
	}
	state.CurrentSection = after.ID
	state.CurrentStep = ""
	return c.commitTransition(ctx, state, "")
}

// Prev retreats one position; at the first step it exits to the section
// overview.
func (c *Controller) Prev(ctx context.Context, sessionID id.SessionID) (*State, error) {
	ctx, span := tracer.Start(ctx, "session.prev")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if state.CurrentStep == "" {
		return state.Clone(), nil
	}
	prev, ok, err := c.registry.PrevStep(state.CurrentStep)
	if err != nil {
		return nil, err
	}
	if ok {
		state.CurrentStep = prev.ID
	} else {
		state.CurrentStep = ""
	}
	return c.commitTransition(ctx, state, "")
}

// EnterOwner starts editing one owner instance. A fresh instance enters the
// first step; a returning one lands on its first failing step so the user
// picks up exactly where the data is still incomplete.
func (c *Controller) EnterOwner(ctx context.Context, sessionID id.SessionID, data progress.EntityData, partyID id.PartyID, values map[string]any) (*State, error) {
	ctx, span := tracer.Start(ctx, "session.enter_owner",
		trace.WithAttributes(attribute.String("party.id", partyID.String())))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	section, err := c.registry.Section(flow.SectionOwners)
	if err != nil {
		return nil, err
	}

	target := section.Steps[0]
	if failing, found, err := c.progress.FirstFailingStep(section.ID, data, values); err != nil {
		return nil, err
	} else if found {
		target = failing
	} else if n := len(section.Steps); n > 0 {
		// Everything passes: land on the check-answers step.
		target = section.Steps[n-1]
	}

	state.CurrentSection = section.ID
	state.CurrentStep = target.ID
	for _, step := range section.Steps {
		state.Editing[step.ID] = partyID
	}
	return c.commitTransition(ctx, state, partyID.String())
}

// SaveStepValues stashes unsubmitted form input so a failed submit or a page
// reload does not lose the user's typing.
func (c *Controller) SaveStepValues(ctx context.Context, sessionID id.SessionID, stepID id.StepID, values map[string]any) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, _, err := c.registry.Step(stepID); err != nil {
		return nil, err
	}
	state.SavedValues[stepID] = values
	state.UpdatedAt = requestcontext.Now(ctx)
	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	return state.Clone(), nil
}

// ClearStepValues drops the stash after a successful submit.
func (c *Controller) ClearStepValues(ctx context.Context, sessionID id.SessionID, stepID id.StepID) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	delete(state.SavedValues, stepID)
	state.UpdatedAt = requestcontext.Now(ctx)
	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	return state.Clone(), nil
}

// RecordDraft keeps an uploaded document in session state until its request
// is submitted.
func (c *Controller) RecordDraft(ctx context.Context, sessionID id.SessionID, draft documents.Draft) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.Drafts = append(state.Drafts, draft)
	state.UpdatedAt = requestcontext.Now(ctx)
	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	if c.metrics != nil {
		c.metrics.DocumentsUploads.Inc()
	}
	return state.Clone(), nil
}

// ClearDrafts drops the drafts of one request after a successful submission.
// Failed submissions keep drafts in place so the user retries without
// re-selecting files.
func (c *Controller) ClearDrafts(ctx context.Context, sessionID id.SessionID, requestID id.DocumentRequestID) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	kept := state.Drafts[:0]
	for _, d := range state.Drafts {
		if d.RequestID != requestID {
			kept = append(kept, d)
		}
	}
	state.Drafts = kept
	state.UpdatedAt = requestcontext.Now(ctx)
	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	return state.Clone(), nil
}

// SetFlag records a small session fact, e.g. that the controller confirmed
// they are also a beneficial owner.
func (c *Controller) SetFlag(ctx context.Context, sessionID id.SessionID, name string, value bool) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.Flags[name] = value
	state.UpdatedAt = requestcontext.Now(ctx)
	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	return state.Clone(), nil
}

// Discard removes the session snapshot, used on flow completion or an
// explicit reset.
func (c *Controller) Discard(ctx context.Context, sessionID id.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(ctx, sessionID)
}

// flowComplete reports whether every applicable section validates against
// stored entity data, including the terminal attestation.
func (c *Controller) flowComplete(data progress.EntityData) bool {
	for _, status := range c.progress.Status(data) {
		if status != progress.StatusCompleted {
			return false
		}
	}
	return true
}

// land recomputes the landing position from entity completion status.
func (c *Controller) land(state *State, data progress.EntityData) {
	section, _ := c.progress.LandingFor(data)
	state.CurrentSection = section.ID
	if section.Repeatable {
		// Repeatable sections land on the overview so the user picks or adds
		// an instance.
		state.CurrentStep = ""
		return
	}
	if len(section.Steps) > 0 {
		state.CurrentStep = section.Steps[0].ID
	}
}

func (c *Controller) commitTransition(ctx context.Context, state *State, entityRef string) (*State, error) {
	return c.commitLabeled(ctx, state, entityRef, "")
}

func (c *Controller) commitLabeled(ctx context.Context, state *State, entityRef, label string) (*State, error) {
	state.UpdatedAt = requestcontext.Now(ctx)
	if err := c.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "persist session")
	}
	if c.metrics != nil {
		c.metrics.StepTransitions.Inc()
	}
	c.emitEvent(ctx, state, audit.EventStepChanged, entityRef, "", label)
	return state.Clone(), nil
}

func (c *Controller) emit(ctx context.Context, state *State, action audit.FlowEvent, detail string) {
	c.emitEvent(ctx, state, action, "", detail, "")
}

func (c *Controller) emitEvent(ctx context.Context, state *State, action audit.FlowEvent, entityRef, detail, label string) {
	if c.audit == nil {
		return
	}
	err := c.audit.Emit(ctx, audit.Event{
		SessionID: state.SessionID,
		ClientID:  state.ClientID,
		Action:    string(action),
		Section:   state.CurrentSection,
		Step:      state.CurrentStep,
		EntityRef: entityRef,
		Detail:    detail,
		Label:     label,
	})
	if err != nil {
		// Telemetry must not fail navigation.
		c.logger.Warn("emit flow event failed", "action", action, "error", err)
	}
}
