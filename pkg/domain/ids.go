// Package domain holds typed id primitives shared across bounded contexts.
// Construct via the Parse functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
)

// ClientID identifies the legal entity being onboarded. Assigned by the
// external entity store; opaque to this engine.
type ClientID string

func (id ClientID) String() string { return string(id) }
func (id ClientID) IsNil() bool    { return id == "" }

// ParseClientID validates external input into a ClientID.
func ParseClientID(s string) (ClientID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "client id cannot be empty")
	}
	return ClientID(s), nil
}

// PartyID identifies an individual or organization party attached to a client.
type PartyID string

func (id PartyID) String() string { return string(id) }
func (id PartyID) IsNil() bool    { return id == "" }

func ParsePartyID(s string) (PartyID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "party id cannot be empty")
	}
	return PartyID(s), nil
}

// SessionID identifies one onboarding session. Minted by this engine as a UUID.
type SessionID uuid.UUID

// NewSessionID mints a fresh session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseSessionID validates external input into a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "session id must be a valid UUID")
	}
	if u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id cannot be the nil UUID")
	}
	return SessionID(u), nil
}

// QuestionID identifies a compliance question in the external catalog.
// Catalog ids are numeric strings (e.g. "30005") but the engine treats them as
// opaque.
type QuestionID string

func (id QuestionID) String() string { return string(id) }
func (id QuestionID) IsNil() bool    { return id == "" }

func ParseQuestionID(s string) (QuestionID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "question id cannot be empty")
	}
	return QuestionID(s), nil
}

// DocumentRequestID identifies one document request owned by the document API.
type DocumentRequestID string

func (id DocumentRequestID) String() string { return string(id) }
func (id DocumentRequestID) IsNil() bool    { return id == "" }

func ParseDocumentRequestID(s string) (DocumentRequestID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document request id cannot be empty")
	}
	return DocumentRequestID(s), nil
}

// SectionID and StepID identify nodes in the flow definition registry. These
// are build-time constants; parsing exists for route parameters only.
type (
	SectionID string
	StepID    string
)

func (id SectionID) String() string { return string(id) }
func (id SectionID) IsNil() bool    { return id == "" }
func (id StepID) String() string    { return string(id) }
func (id StepID) IsNil() bool       { return id == "" }
