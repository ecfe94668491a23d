// Package session owns the mutable per-session state of the onboarding flow
// and the controller that drives transitions over it. State is exclusively
// written by the controller; everything else reads snapshots.
package session

import (
	"time"

	"onboard/internal/documents"
	id "onboard/pkg/domain"
)

// State is the resumable snapshot of one onboarding session. It is
// JSON-serializable so stores can persist it wholesale. Everything in here is
// reconstructable from persisted entity data plus the user's unsubmitted
// input; losing it costs convenience, not correctness.
type State struct {
	SessionID      id.SessionID `json:"sessionId"`
	ClientID       id.ClientID  `json:"clientId"`
	CurrentSection id.SectionID `json:"currentSection"`
	// CurrentStep is empty when the user sits on the section overview.
	CurrentStep id.StepID `json:"currentStep,omitempty"`
	// Editing maps a step id to the party instance currently edited through
	// it, supporting repeatable sub-flows such as owner #2.
	Editing map[id.StepID]id.PartyID `json:"editing,omitempty"`
	// Flags holds small session facts such as "controller confirmed they are
	// also an owner".
	Flags map[string]bool `json:"flags,omitempty"`
	// SavedValues holds form input saved but not yet submitted, keyed by
	// step. A failed submit leaves the user's typing here for retry.
	SavedValues map[id.StepID]map[string]any `json:"savedValues,omitempty"`
	// Drafts are uploaded documents awaiting request submission.
	Drafts []documents.Draft `json:"drafts,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newState(sessionID id.SessionID, clientID id.ClientID, now time.Time) *State {
	return &State{
		SessionID:   sessionID,
		ClientID:    clientID,
		Editing:     make(map[id.StepID]id.PartyID),
		Flags:       make(map[string]bool),
		SavedValues: make(map[id.StepID]map[string]any),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Normalize re-initializes the maps a JSON round trip drops when they are
// empty, so the controller can assign into them unconditionally. Stores that
// serialize snapshots call this after decoding.
func (s *State) Normalize() *State {
	if s.Editing == nil {
		s.Editing = make(map[id.StepID]id.PartyID)
	}
	if s.Flags == nil {
		s.Flags = make(map[string]bool)
	}
	if s.SavedValues == nil {
		s.SavedValues = make(map[id.StepID]map[string]any)
	}
	return s
}

// EditingParty returns the party instance bound to a step, if any.
func (s *State) EditingParty(stepID id.StepID) (id.PartyID, bool) {
	p, ok := s.Editing[stepID]
	return p, ok
}

// ValuesFor returns the saved-but-unsubmitted values for a step, or nil.
func (s *State) ValuesFor(stepID id.StepID) map[string]any {
	return s.SavedValues[stepID]
}

// DraftsFor filters the session's drafts down to one document request.
func (s *State) DraftsFor(requestID id.DocumentRequestID) []documents.Draft {
	var out []documents.Draft
	for _, d := range s.Drafts {
		if d.RequestID == requestID {
			out = append(out, d)
		}
	}
	return out
}

// Clone deep-copies the state so readers can hold a snapshot while the
// controller keeps mutating the original.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Editing = make(map[id.StepID]id.PartyID, len(s.Editing))
	for k, v := range s.Editing {
		out.Editing[k] = v
	}
	out.Flags = make(map[string]bool, len(s.Flags))
	for k, v := range s.Flags {
		out.Flags[k] = v
	}
	out.SavedValues = make(map[id.StepID]map[string]any, len(s.SavedValues))
	for step, values := range s.SavedValues {
		copied := make(map[string]any, len(values))
		for k, v := range values {
			copied[k] = v
		}
		out.SavedValues[step] = copied
	}
	out.Drafts = append([]documents.Draft(nil), s.Drafts...)
	return &out
}
