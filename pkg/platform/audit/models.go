package audit

import (
	"time"

	id "onboard/pkg/domain"
)

// EventCategory classifies flow events by their primary purpose. This enables
// different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: answers
	// submitted, documents uploaded, attestation confirmed. These require
	// durable storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and host-side
	// telemetry, such as navigation transitions. These can be sampled with
	// shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the flow engine to capture key actions. Kept
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	SessionID id.SessionID
	ClientID  id.ClientID
	Action    string
	// Section and Step locate the transition inside the flow definition.
	Section id.SectionID
	Step    id.StepID
	// EntityRef identifies the sub-entity instance in repeatable steppers
	// (e.g. the beneficial owner being edited). Empty for singleton steps.
	EntityRef string
	// Detail carries an action-specific summary such as the submitted
	// document type or the failing requirement.
	Detail string
	// Label is an optional short-label override for the destination,
	// carried on step-changed events so hosts can render breadcrumbs.
	Label string
	// RequestID is the correlation id from the HTTP request context.
	RequestID string
}

// FlowEvent names the actions the engine emits.
type FlowEvent string

const (
	EventSessionStarted    FlowEvent = "session_started"
	EventSessionResumed    FlowEvent = "session_resumed"
	EventStepChanged       FlowEvent = "step_changed"
	EventStepSubmitted     FlowEvent = "step_submitted"
	EventOwnerAdded        FlowEvent = "owner_added"
	EventDocumentUploaded  FlowEvent = "document_uploaded"
	EventDocumentSubmitted FlowEvent = "document_request_submitted"
	EventFlowCompleted     FlowEvent = "flow_completed"
)

// eventCategories is the source of truth for routing. Navigation noise is
// operational; anything that changes the compliance record is compliance.
var eventCategories = map[FlowEvent]EventCategory{
	EventSessionStarted:    CategoryOperations,
	EventSessionResumed:    CategoryOperations,
	EventStepChanged:       CategoryOperations,
	EventStepSubmitted:     CategoryCompliance,
	EventOwnerAdded:        CategoryCompliance,
	EventDocumentUploaded:  CategoryCompliance,
	EventDocumentSubmitted: CategoryCompliance,
	EventFlowCompleted:     CategoryCompliance,
}

// Category resolves the routing category for an action, defaulting to
// operations for unknown actions.
func (e FlowEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}
