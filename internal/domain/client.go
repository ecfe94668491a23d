package domain

import (
	id "onboard/pkg/domain"
)

// ClientStatus tracks where the client record sits in the upstream review
// pipeline. Owned by the external entity store; the engine only reads it.
type ClientStatus string

const (
	ClientStatusNew                  ClientStatus = "NEW"
	ClientStatusReviewInProgress     ClientStatus = "REVIEW_IN_PROGRESS"
	ClientStatusInformationRequested ClientStatus = "INFORMATION_REQUESTED"
	ClientStatusApproved             ClientStatus = "APPROVED"
	ClientStatusDeclined             ClientStatus = "DECLINED"
)

// PartyType distinguishes individual from organization parties.
type PartyType string

const (
	PartyTypeIndividual   PartyType = "INDIVIDUAL"
	PartyTypeOrganization PartyType = "ORGANIZATION"
)

// PartyRole is a responsibility a party holds on the client.
type PartyRole string

const (
	RoleClient          PartyRole = "CLIENT"
	RoleBeneficialOwner PartyRole = "BENEFICIAL_OWNER"
	RoleController      PartyRole = "CONTROLLER"
	RoleDecisionMaker   PartyRole = "DECISION_MAKER"
)

// Party is one individual or organization attached to a client record.
// Values holds the collected form fields keyed by field path (e.g.
// "individualDetails.firstName"); the schema for those paths lives in the
// flow definition, not here.
type Party struct {
	ID     id.PartyID
	Type   PartyType
	Roles  []PartyRole
	Active bool
	Values map[string]any
}

// HasRole reports whether the party holds the given role.
func (p Party) HasRole(role PartyRole) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the party holds at least one of the given roles.
func (p Party) HasAnyRole(roles ...PartyRole) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// ClientRecord is the engine's read model of the external client entity:
// status, outstanding work, and the party list with roles.
type ClientRecord struct {
	ID           id.ClientID
	Status       ClientStatus
	Context      EntityContext
	Parties      []Party
	Values       map[string]any
	Responses    []QuestionResponse
	Outstanding  Outstanding
	Attestations []string
}

// Outstanding lists work the upstream review still expects from the user.
type Outstanding struct {
	QuestionIDs        []id.QuestionID
	DocumentRequestIDs []id.DocumentRequestID
}

// QuestionResponse is one answered catalog question. Values is ordered; most
// questions carry a single element, multi-valued questions carry several.
type QuestionResponse struct {
	QuestionID id.QuestionID
	Values     []string
}

// PartiesWithAnyRole returns active parties of the given type holding at
// least one of the roles, preserving record order. Used by the flow registry's
// associated-party filters.
func (c ClientRecord) PartiesWithAnyRole(partyType PartyType, roles ...PartyRole) []Party {
	var out []Party
	for _, p := range c.Parties {
		if !p.Active || p.Type != partyType {
			continue
		}
		if p.HasAnyRole(roles...) {
			out = append(out, p)
		}
	}
	return out
}

// ResponseFor returns the stored values for a question, or nil when
// unanswered.
func (c ClientRecord) ResponseFor(questionID id.QuestionID) []string {
	for _, r := range c.Responses {
		if r.QuestionID == questionID {
			return r.Values
		}
	}
	return nil
}
