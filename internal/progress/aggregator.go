// Package progress derives per-section completion status from the entity's
// stored data. The aggregator is a pure read model: it never mutates session
// state and is cheap enough to recompute on every transition.
package progress

import (
	"log/slog"

	"onboard/internal/domain"
	"onboard/internal/flow"
	"onboard/internal/schema"
	id "onboard/pkg/domain"
)

// Status is a section's completion state as rendered to the user.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// EntityData bundles the externally persisted inputs progress is computed
// from. Session drafts are deliberately absent: status reflects what the
// server has, not what the user typed and never submitted.
type EntityData struct {
	Client    domain.ClientRecord
	Questions []schema.Question
}

// Responses projects the client's stored answers into the schema's shape.
func (d EntityData) Responses() schema.ResponseSet {
	set := make(schema.ResponseSet, len(d.Client.Responses))
	for _, r := range d.Client.Responses {
		set[r.QuestionID] = r.Values
	}
	return set
}

type Aggregator struct {
	registry *flow.Registry
	logger   *slog.Logger
}

type AggregatorOption func(*Aggregator)

func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

func NewAggregator(registry *flow.Registry, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Status computes completion for every section that applies to the entity
// context. A stepper section is completed only when every step validates
// against stored data for every relevant party instance.
func (a *Aggregator) Status(data EntityData) map[id.SectionID]Status {
	out := make(map[id.SectionID]Status)
	for _, section := range a.registry.SectionsFor(data.Client.Context) {
		out[section.ID] = a.sectionStatus(section, data)
	}
	return out
}

// SectionStatus computes status for a single section.
func (a *Aggregator) SectionStatus(sectionID id.SectionID, data EntityData) (Status, error) {
	section, err := a.registry.Section(sectionID)
	if err != nil {
		return "", err
	}
	return a.sectionStatus(section, data), nil
}

func (a *Aggregator) sectionStatus(section flow.Section, data EntityData) Status {
	if section.PartyFilter != nil {
		return a.partySectionStatus(section, data)
	}

	satisfied, total := 0, 0
	for _, step := range section.Steps {
		// Check-answers steps carry no constraints of their own and say
		// nothing about progress.
		if step.Validate == nil {
			continue
		}
		total++
		if a.stepSatisfied(step, data, data.Client.Values) {
			satisfied++
		}
	}
	return statusOf(satisfied, total)
}

// partySectionStatus folds step satisfaction over every matching party. A
// repeatable section with no instances yet has not been started: the user
// still owes at least one entry.
func (a *Aggregator) partySectionStatus(section flow.Section, data EntityData) Status {
	parties := section.MatchingParties(data.Client)
	if len(parties) == 0 {
		return StatusNotStarted
	}

	satisfied, total := 0, 0
	for _, party := range parties {
		for _, step := range section.Steps {
			if step.Validate == nil {
				continue
			}
			total++
			if a.stepSatisfied(step, data, party.Values) {
				satisfied++
			}
		}
	}
	return statusOf(satisfied, total)
}

// StepSatisfied reports whether a step's validation passes against stored
// values. Used by the controller to decide where an edit should land.
func (a *Aggregator) StepSatisfied(stepID id.StepID, data EntityData, values map[string]any) (bool, error) {
	_, step, err := a.registry.Step(stepID)
	if err != nil {
		return false, err
	}
	return a.stepSatisfied(step, data, values), nil
}

func (a *Aggregator) stepSatisfied(step flow.Step, data EntityData, values map[string]any) bool {
	errs := step.Check(flow.ValidationInput{
		Context:              data.Client.Context,
		Values:               values,
		Questions:            data.Questions,
		Responses:            data.Responses(),
		OutstandingDocuments: len(data.Client.Outstanding.DocumentRequestIDs),
	})
	return errs.Empty()
}

// FirstFailingStep returns the first step of a section whose validation fails
// for the given values, so a returning user lands where they left off. The
// boolean is false when every step passes.
func (a *Aggregator) FirstFailingStep(sectionID id.SectionID, data EntityData, values map[string]any) (flow.Step, bool, error) {
	section, err := a.registry.Section(sectionID)
	if err != nil {
		return flow.Step{}, false, err
	}
	for _, step := range section.Steps {
		if !a.stepSatisfied(step, data, values) {
			return step, true, nil
		}
	}
	return flow.Step{}, false, nil
}

// LandingFor picks the resume target: the first applicable section in
// declaration order that is not yet completed. When everything is completed
// the last section (review) is returned so the user can attest or re-check.
func (a *Aggregator) LandingFor(data EntityData) (flow.Section, Status) {
	sections := a.registry.SectionsFor(data.Client.Context)
	statuses := a.Status(data)

	for _, section := range sections {
		if statuses[section.ID] != StatusCompleted {
			return section, statuses[section.ID]
		}
	}
	last := sections[len(sections)-1]
	return last, statuses[last.ID]
}

func statusOf(satisfied, total int) Status {
	switch {
	case total == 0 || satisfied == total:
		return StatusCompleted
	case satisfied > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}
