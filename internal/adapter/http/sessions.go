package http

import (
	"encoding/json"
	"net/http"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/service"
)

// SessionsHandler serves the native (non-A2A) session-creation and
// introspection surface: POST /sessions streams the Session Lifecycle's
// progress as NDJSON, the pattern the teacher's own streaming admin
// endpoints use (encoding/json.Encoder written straight to a flushed
// http.ResponseWriter, no SSE framing), and GET /sessions/{id}/state
// exposes the same JSON snapshot the MCP get_session_state tool reads.
type SessionsHandler struct {
	lifecycle *service.Lifecycle
	registry  *service.SessionRegistry
}

// NewSessionsHandler returns a handler allocating sessions through
// lifecycle and registering them in registry.
func NewSessionsHandler(lifecycle *service.Lifecycle, registry *service.SessionRegistry) *SessionsHandler {
	return &SessionsHandler{lifecycle: lifecycle, registry: registry}
}

type createSessionRequest struct {
	AgentID          string                        `json:"agentId"`
	UserID           string                        `json:"userId"`
	ProjectType      agentsession.ProjectType       `json:"projectType"`
	Query            string                        `json:"query"`
	Hostname         string                        `json:"hostname"`
	TemplateName     string                        `json:"templateName,omitempty"`
	InferenceContext string                        `json:"inferenceContext,omitempty"`
	WorkflowMetadata *agentsession.WorkflowMetadata `json:"workflowMetadata,omitempty"`
}

// HandleCreate implements POST /sessions. It writes one NDJSON line per
// lifecycle milestone; a client that only cares about the final result
// can simply read to EOF and parse the last line.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createSessionRequest](w, r, 1<<16)
	if !ok {
		return
	}
	if !requireField(w, string(req.ProjectType), "projectType") {
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	writeLine := func(v any) {
		_ = enc.Encode(v)
		if flusher != nil {
			flusher.Flush()
		}
	}

	writeLine(map[string]string{"status": "initializing"})

	sess, err := h.lifecycle.Initialize(r.Context(), service.InitializeArgs{
		AgentID:          req.AgentID,
		UserID:           req.UserID,
		ProjectType:      req.ProjectType,
		Query:            req.Query,
		Hostname:         req.Hostname,
		TemplateName:     req.TemplateName,
		InferenceContext: req.InferenceContext,
		WorkflowMetadata: req.WorkflowMetadata,
	})
	if err != nil {
		writeLine(map[string]string{"status": "failed", "error": err.Error()})
		return
	}
	h.registry.Put(sess.ID, sess)

	writeLine(map[string]string{"status": "ready", "sessionId": sess.ID})
}

// HandleGetState implements GET /sessions/{id}/state.
func (h *SessionsHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	sess := h.registry.Get(id)
	if sess == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	snapshot, err := sess.Dispatch.State()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snapshot)
}
