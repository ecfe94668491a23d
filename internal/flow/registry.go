// Package flow holds the static flow definition: sections, steps, stepper
// sequences, inclusion predicates, and associated-party filters. The graph is
// built once at startup and never mutated; everything downstream (navigation,
// progress, transport) resolves against it.
package flow

import (
	"onboard/internal/domain"
	"onboard/internal/schema"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

// SectionKind distinguishes how a section presents its steps.
type SectionKind string

const (
	KindStepper      SectionKind = "stepper"
	KindSingleScreen SectionKind = "single-screen"
	KindReview       SectionKind = "review"
)

// StepKind distinguishes form steps from bespoke component screens and
// check-answers summaries.
type StepKind string

const (
	StepForm         StepKind = "form"
	StepComponent    StepKind = "component"
	StepCheckAnswers StepKind = "check-answers"
)

// PartyFilter scopes a section to parties of one type holding any of the
// given roles. Sections without a filter operate on the client record itself.
type PartyFilter struct {
	PartyType domain.PartyType
	Roles     []domain.PartyRole
}

// ValidationInput carries everything a step validator may need. Validators
// are pure: same input, same errors.
type ValidationInput struct {
	Context domain.EntityContext
	Values  map[string]any
	// Fields is the step's own field list; Step.Check fills it in before the
	// validator runs.
	Fields    []string
	Questions []schema.Question
	Responses schema.ResponseSet
	// OutstandingDocuments counts document requests the upstream review still
	// considers unsatisfied.
	OutstandingDocuments int
}

// Step is one screen within a section. Immutable; belongs to exactly one
// section.
type Step struct {
	ID          id.StepID
	Kind        StepKind
	Title       string
	Description string
	// Fields lists the logical field paths a form step collects. Empty for
	// component and check-answers steps.
	Fields []string
	// Validate is the step's validation-schema factory applied to an input.
	// Nil means the step imposes no constraints of its own.
	Validate func(in ValidationInput) schema.FieldErrors
	// Transform adjusts submitted values before they are persisted. Nil means
	// identity.
	Transform func(values map[string]any) map[string]any
}

// Check runs the step's validator with the step's own field list in scope.
// Steps without a validator impose no constraints.
func (s Step) Check(in ValidationInput) schema.FieldErrors {
	if s.Validate == nil {
		return make(schema.FieldErrors)
	}
	in.Fields = s.Fields
	return s.Validate(in)
}

// Section is a top-level grouping of the onboarding flow.
type Section struct {
	ID    id.SectionID
	Label string
	Kind  SectionKind
	// Include decides whether the section applies to an entity context. Nil
	// means always included.
	Include func(ctx domain.EntityContext) bool
	// PartyFilter scopes the section to matching parties; nil means the
	// section edits the client record.
	PartyFilter *PartyFilter
	// Repeatable sections run their stepper once per matching party instance.
	Repeatable bool
	Steps      []Step
}

// AppliesTo reports whether the section is part of the flow for the context.
func (s Section) AppliesTo(ctx domain.EntityContext) bool {
	if s.Include == nil {
		return true
	}
	return s.Include(ctx)
}

// MatchingParties returns the party instances this section repeats over.
func (s Section) MatchingParties(client domain.ClientRecord) []domain.Party {
	if s.PartyFilter == nil {
		return nil
	}
	return client.PartiesWithAnyRole(s.PartyFilter.PartyType, s.PartyFilter.Roles...)
}

type stepRef struct {
	sectionIdx int
	stepIdx    int
}

// Registry is the lookup surface over the section graph. Unknown ids are
// configuration errors: they mean the caller and the flow definition drifted
// apart, which must fail loudly rather than surface to users.
type Registry struct {
	sections  []Section
	bySection map[id.SectionID]int
	byStep    map[id.StepID]stepRef
}

// New indexes the sections. Duplicate section or step ids fail construction.
func New(sections ...Section) (*Registry, error) {
	r := &Registry{
		sections:  sections,
		bySection: make(map[id.SectionID]int, len(sections)),
		byStep:    make(map[id.StepID]stepRef),
	}
	for si, section := range sections {
		if _, dup := r.bySection[section.ID]; dup {
			return nil, dErrors.Newf(dErrors.CodeConfiguration, "duplicate section id %q", section.ID)
		}
		r.bySection[section.ID] = si
		for pi, step := range section.Steps {
			if _, dup := r.byStep[step.ID]; dup {
				return nil, dErrors.Newf(dErrors.CodeConfiguration, "duplicate step id %q", step.ID)
			}
			r.byStep[step.ID] = stepRef{sectionIdx: si, stepIdx: pi}
		}
	}
	return r, nil
}

// Sections returns all sections in declaration order.
func (r *Registry) Sections() []Section {
	return r.sections
}

// SectionsFor returns the sections included for an entity context, in
// declaration order.
func (r *Registry) SectionsFor(ctx domain.EntityContext) []Section {
	var out []Section
	for _, s := range r.sections {
		if s.AppliesTo(ctx) {
			out = append(out, s)
		}
	}
	return out
}

// Section looks up a section by id.
func (r *Registry) Section(sectionID id.SectionID) (Section, error) {
	idx, ok := r.bySection[sectionID]
	if !ok {
		return Section{}, dErrors.Newf(dErrors.CodeConfiguration, "unknown section id %q", sectionID)
	}
	return r.sections[idx], nil
}

// Step looks up a step by id, returning its owning section as well.
func (r *Registry) Step(stepID id.StepID) (Section, Step, error) {
	ref, ok := r.byStep[stepID]
	if !ok {
		return Section{}, Step{}, dErrors.Newf(dErrors.CodeConfiguration, "unknown step id %q", stepID)
	}
	section := r.sections[ref.sectionIdx]
	return section, section.Steps[ref.stepIdx], nil
}

// FirstStep returns the first step of a section.
func (r *Registry) FirstStep(sectionID id.SectionID) (Step, error) {
	section, err := r.Section(sectionID)
	if err != nil {
		return Step{}, err
	}
	if len(section.Steps) == 0 {
		return Step{}, dErrors.Newf(dErrors.CodeConfiguration, "section %q has no steps", sectionID)
	}
	return section.Steps[0], nil
}

// NextStep returns the step after stepID within its section. ok is false at
// the last position, which means the stepper completed.
func (r *Registry) NextStep(stepID id.StepID) (Step, bool, error) {
	ref, found := r.byStep[stepID]
	if !found {
		return Step{}, false, dErrors.Newf(dErrors.CodeConfiguration, "unknown step id %q", stepID)
	}
	steps := r.sections[ref.sectionIdx].Steps
	if ref.stepIdx+1 >= len(steps) {
		return Step{}, false, nil
	}
	return steps[ref.stepIdx+1], true, nil
}

// PrevStep returns the step before stepID within its section. ok is false at
// position 0, which means navigation exits to the section overview.
func (r *Registry) PrevStep(stepID id.StepID) (Step, bool, error) {
	ref, found := r.byStep[stepID]
	if !found {
		return Step{}, false, dErrors.Newf(dErrors.CodeConfiguration, "unknown step id %q", stepID)
	}
	if ref.stepIdx == 0 {
		return Step{}, false, nil
	}
	return r.sections[ref.sectionIdx].Steps[ref.stepIdx-1], true, nil
}

// SectionAfter returns the next included section following sectionID for the
// context, in declaration order. ok is false when sectionID is the last one.
func (r *Registry) SectionAfter(sectionID id.SectionID, ctx domain.EntityContext) (Section, bool, error) {
	idx, found := r.bySection[sectionID]
	if !found {
		return Section{}, false, dErrors.Newf(dErrors.CodeConfiguration, "unknown section id %q", sectionID)
	}
	for _, s := range r.sections[idx+1:] {
		if s.AppliesTo(ctx) {
			return s, true, nil
		}
	}
	return Section{}, false, nil
}
