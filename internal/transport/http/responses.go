package http

import (
	"onboard/internal/documents"
	"onboard/internal/onboarding"
	"onboard/internal/progress"
	"onboard/internal/schema"
	"onboard/internal/session"
	id "onboard/pkg/domain"
)

// sessionView is the wire shape of a session snapshot.
type sessionView struct {
	SessionID      string                       `json:"sessionId"`
	ClientID       string                       `json:"clientId"`
	CurrentSection string                       `json:"currentSection"`
	CurrentStep    string                       `json:"currentStep,omitempty"`
	Editing        map[id.StepID]id.PartyID     `json:"editing,omitempty"`
	SavedValues    map[id.StepID]map[string]any `json:"savedValues,omitempty"`
	Flags          map[string]bool              `json:"flags,omitempty"`
}

func toSessionView(state *session.State) sessionView {
	return sessionView{
		SessionID:      state.SessionID.String(),
		ClientID:       state.ClientID.String(),
		CurrentSection: state.CurrentSection.String(),
		CurrentStep:    state.CurrentStep.String(),
		Editing:        state.Editing,
		SavedValues:    state.SavedValues,
		Flags:          state.Flags,
	}
}

type documentsView struct {
	SatisfiedTypes  map[id.DocumentRequestID][]string `json:"satisfiedTypes"`
	ActiveByRequest map[id.DocumentRequestID]int      `json:"activeByRequest"`
	Complete        bool                              `json:"complete"`
}

func toDocumentsView(r documents.Result) documentsView {
	return documentsView{
		SatisfiedTypes:  r.SatisfiedTypes,
		ActiveByRequest: r.ActiveByRequest,
		Complete:        r.Complete,
	}
}

type snapshotResponse struct {
	Session   sessionView                      `json:"session"`
	Progress  map[id.SectionID]progress.Status `json:"progress"`
	Questions []schema.Question                `json:"questions"`
	Requests  []documents.Request              `json:"documentRequests"`
	Documents documentsView                    `json:"documents"`
}

func toSnapshotResponse(snap *onboarding.Snapshot) snapshotResponse {
	return snapshotResponse{
		Session:   toSessionView(snap.State),
		Progress:  snap.Progress,
		Questions: snap.Questions,
		Requests:  snap.Requests,
		Documents: toDocumentsView(snap.Documents),
	}
}

type stepResultResponse struct {
	Session     sessionView         `json:"session"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

type startRequest struct {
	ClientID string `json:"clientId"`
}

type navigateRequest struct {
	Section string `json:"section,omitempty"`
	Step    string `json:"step,omitempty"`
	PartyID string `json:"partyId,omitempty"`
	// Label lets the caller override the destination's breadcrumb label.
	Label string `json:"label,omitempty"`
}

type submitStepRequest struct {
	Values map[string]any `json:"values"`
}

type submitResponsesRequest struct {
	Responses map[string][]string `json:"responses"`
}
