// Package http exposes the onboarding engine over a JSON API. Handlers stay
// thin: decode, delegate to the service, translate errors.
package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboard/internal/documents"
	"onboard/internal/onboarding"
	"onboard/internal/progress"
	"onboard/internal/schema"
	"onboard/internal/session"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

// maxUploadBytes bounds one document upload.
const maxUploadBytes = 25 << 20

// Service is the engine surface the transport depends on.
type Service interface {
	Start(ctx context.Context, clientID id.ClientID) (*onboarding.Snapshot, error)
	Resume(ctx context.Context, sessionID id.SessionID) (*onboarding.Snapshot, error)
	View(ctx context.Context, sessionID id.SessionID) (*onboarding.Snapshot, error)
	GoTo(ctx context.Context, sessionID id.SessionID, target session.Target) (*session.State, error)
	Next(ctx context.Context, sessionID id.SessionID) (*session.State, error)
	Prev(ctx context.Context, sessionID id.SessionID) (*session.State, error)
	SubmitStep(ctx context.Context, sessionID id.SessionID, stepID id.StepID, values map[string]any) (*onboarding.StepResult, error)
	SubmitResponses(ctx context.Context, sessionID id.SessionID, responses schema.ResponseSet) (*onboarding.StepResult, error)
	AddOwner(ctx context.Context, sessionID id.SessionID) (*session.State, error)
	EditOwner(ctx context.Context, sessionID id.SessionID, partyID id.PartyID) (*session.State, error)
	RemoveOwner(ctx context.Context, sessionID id.SessionID, partyID id.PartyID) error
	UploadDraft(ctx context.Context, sessionID id.SessionID, draft documents.Draft, content []byte) (*session.State, error)
	SubmitDocuments(ctx context.Context, sessionID id.SessionID, requestID id.DocumentRequestID) (*session.State, error)
	Progress(ctx context.Context, sessionID id.SessionID) (map[id.SectionID]progress.Status, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the onboarding API on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/onboarding/sessions", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(h.sessionContext)
			r.Get("/", h.HandleView)
			r.Post("/resume", h.HandleResume)
			r.Get("/progress", h.HandleProgress)
			r.Post("/navigate", h.HandleNavigate)
			r.Post("/next", h.HandleNext)
			r.Post("/prev", h.HandlePrev)
			r.Post("/steps/{stepID}", h.HandleSubmitStep)
			r.Post("/responses", h.HandleSubmitResponses)
			r.Post("/owners", h.HandleAddOwner)
			r.Post("/owners/{partyID}/edit", h.HandleEditOwner)
			r.Delete("/owners/{partyID}", h.HandleRemoveOwner)
			r.Post("/document-requests/{requestID}/drafts", h.HandleUploadDraft)
			r.Post("/document-requests/{requestID}/submit", h.HandleSubmitDocuments)
		})
	})
}

// HandleStart handles POST /onboarding/sessions.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "clientId is required"))
		return
	}

	snap, err := h.service.Start(r.Context(), id.ClientID(req.ClientID))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "start session failed", "clientID", req.ClientID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSnapshotResponse(snap))
}

// HandleResume handles POST /onboarding/sessions/{sessionID}/resume.
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Resume(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

// HandleView handles GET /onboarding/sessions/{sessionID}.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.View(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

// HandleProgress handles GET /onboarding/sessions/{sessionID}/progress.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	statuses, err := h.service.Progress(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"progress": statuses})
}

// HandleNavigate handles POST /onboarding/sessions/{sessionID}/navigate.
func (h *Handler) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid navigate body"))
		return
	}
	if req.Section == "" && req.Step == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "section or step is required"))
		return
	}

	state, err := h.service.GoTo(r.Context(), sessionID, session.Target{
		Section: id.SectionID(req.Section),
		Step:    id.StepID(req.Step),
		Editing: id.PartyID(req.PartyID),
		Label:   req.Label,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"session": toSessionView(state)})
}

// HandleNext handles POST /onboarding/sessions/{sessionID}/next.
func (h *Handler) HandleNext(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Next)
}

// HandlePrev handles POST /onboarding/sessions/{sessionID}/prev.
func (h *Handler) HandlePrev(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Prev)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, move func(context.Context, id.SessionID) (*session.State, error)) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := move(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"session": toSessionView(state)})
}

// HandleSubmitStep handles POST /onboarding/sessions/{sessionID}/steps/{stepID}.
func (h *Handler) HandleSubmitStep(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	stepID := id.StepID(chi.URLParam(r, "stepID"))

	var req submitStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid step body"))
		return
	}

	result, err := h.service.SubmitStep(r.Context(), sessionID, stepID, req.Values)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "step submission failed",
			"sessionID", sessionID, "stepID", stepID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.writeStepResult(w, result)
}

// HandleSubmitResponses handles POST /onboarding/sessions/{sessionID}/responses.
func (h *Handler) HandleSubmitResponses(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req submitResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid responses body"))
		return
	}

	responses := make(schema.ResponseSet, len(req.Responses))
	for qid, values := range req.Responses {
		responses[id.QuestionID(qid)] = values
	}

	result, err := h.service.SubmitResponses(r.Context(), sessionID, responses)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeStepResult(w, result)
}

// writeStepResult renders an accepted submission as 200 and a rejected one as
// 422 with the per-field messages.
func (h *Handler) writeStepResult(w http.ResponseWriter, result *onboarding.StepResult) {
	status := http.StatusOK
	if !result.FieldErrors.Empty() {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, stepResultResponse{
		Session:     toSessionView(result.State),
		FieldErrors: result.FieldErrors,
	})
}

// HandleAddOwner handles POST /onboarding/sessions/{sessionID}/owners.
func (h *Handler) HandleAddOwner(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.service.AddOwner(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"session": toSessionView(state)})
}

// HandleEditOwner handles POST /onboarding/sessions/{sessionID}/owners/{partyID}/edit.
func (h *Handler) HandleEditOwner(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.service.EditOwner(r.Context(), sessionID, id.PartyID(chi.URLParam(r, "partyID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"session": toSessionView(state)})
}

// HandleRemoveOwner handles DELETE /onboarding/sessions/{sessionID}/owners/{partyID}.
func (h *Handler) HandleRemoveOwner(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveOwner(r.Context(), sessionID, id.PartyID(chi.URLParam(r, "partyID"))); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadDraft handles multipart POST
// /onboarding/sessions/{sessionID}/document-requests/{requestID}/drafts.
func (h *Handler) HandleUploadDraft(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	requestID := id.DocumentRequestID(chi.URLParam(r, "requestID"))

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body"))
		return
	}
	documentType := r.FormValue("documentType")
	if documentType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "documentType is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "read upload"))
		return
	}

	state, err := h.service.UploadDraft(r.Context(), sessionID, documents.Draft{
		RequestID:    requestID,
		DocumentType: documentType,
		FileName:     header.Filename,
	}, content)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"session": toSessionView(state)})
}

// HandleSubmitDocuments handles POST
// /onboarding/sessions/{sessionID}/document-requests/{requestID}/submit.
func (h *Handler) HandleSubmitDocuments(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.service.SubmitDocuments(r.Context(), sessionID, id.DocumentRequestID(chi.URLParam(r, "requestID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"session": toSessionView(state)})
}

// sessionContext stamps the parsed session id onto the request context so
// audit events correlate even when a handler never threads it explicitly.
func (h *Handler) sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid, err := id.ParseSessionID(chi.URLParam(r, "sessionID")); err == nil {
			r = r.WithContext(requestcontext.WithSessionID(r.Context(), sid))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return id.SessionID{}, false
	}
	return sessionID, true
}
