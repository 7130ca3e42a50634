// Package a2a adapts the Agent-to-Agent protocol surface onto the session
// runtime: POST /a2a/tasks allocates a real session through the Session
// Lifecycle (C16) and kicks off generation exactly as the `generate_all`
// control frame does, GET /a2a/tasks/{id} reflects the live controller
// state rather than a static placeholder, and /.well-known/agent.json
// serves the static agent card. Grounded on the teacher's own
// internal/port/a2a.Handler (the same three routes, the same in-memory
// task-by-id bookkeeping for tasks this instance has actually seen), but
// rewired so handleCreateTask drives a real Session instead of recording
// a "queued" stub that nothing ever advances.
package a2a

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/a2a"
	"github.com/Strob0t/CodeForge/internal/service"
)

// skillProjectType maps an A2A skill id to the session variant it drives.
// Unknown skills default to an app session.
var skillProjectType = map[string]agentsession.ProjectType{
	"code-task": agentsession.ProjectTypeApp,
	"decompose": agentsession.ProjectTypeWorkflow,
}

// task is this instance's bookkeeping for one A2A task: which session it
// is bound to, so handleGetTask can translate a task id into a live
// dispatcher lookup.
type task struct {
	sessionID string
}

// Handler serves the A2A protocol endpoints over a real session runtime.
type Handler struct {
	baseURL    string
	lifecycle  *service.Lifecycle
	registry   *service.SessionRegistry
	log        *slog.Logger

	mu    sync.RWMutex
	tasks map[string]*task
}

// NewHandler returns a Handler that allocates sessions through lifecycle
// and registers them in registry, the same registry the WS control
// handler and MCP introspection tools consult.
func NewHandler(baseURL string, lifecycle *service.Lifecycle, registry *service.SessionRegistry, log *slog.Logger) *Handler {
	return &Handler{
		baseURL:   baseURL,
		lifecycle: lifecycle,
		registry:  registry,
		log:       log,
		tasks:     make(map[string]*task),
	}
}

// MountRoutes registers A2A routes on the given chi router. These are
// mounted at the root level, not under /api/v1, per the A2A convention of
// a well-known discovery document at the host root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", h.handleAgentCard)
	r.Post("/a2a/tasks", h.handleCreateTask)
	r.Get("/a2a/tasks/{id}", h.handleGetTask)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	card := a2a.BuildAgentCard(h.baseURL)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(card)
}

// handleCreateTask allocates a new session via the Session Lifecycle,
// scoped to the skill's project type, and starts generation immediately
// (the A2A caller has no separate "start" step the way the control
// channel's generate_all frame does). The task id the caller supplied is
// recorded against the resulting session id so handleGetTask can look the
// session back up.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req a2a.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	h.mu.RLock()
	_, exists := h.tasks[req.ID]
	h.mu.RUnlock()
	if exists {
		writeError(w, http.StatusConflict, "task id already in use")
		return
	}

	projectType, ok := skillProjectType[req.Skill]
	if !ok {
		projectType = agentsession.ProjectTypeApp
	}

	args := service.InitializeArgs{
		AgentID:     stringInput(req.Context, "agentId", "a2a"),
		UserID:      stringInput(req.Context, "userId", "a2a"),
		ProjectType: projectType,
		Query:       stringInput(req.Input, "query", stringInput(req.Input, "prompt", "")),
		Hostname:    stringInput(req.Context, "hostname", ""),
	}
	if projectType == agentsession.ProjectTypeWorkflow {
		md := agentsession.WorkflowMetadata{}
		if name := stringInput(req.Input, "workflowName", ""); name != "" {
			md.Name = name
		}
		args.WorkflowMetadata = &md
	}

	sess, err := h.lifecycle.Initialize(r.Context(), args)
	if err != nil {
		h.log.Error("a2a: session initialize failed", "task_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to initialize session")
		return
	}
	h.registry.Put(sess.ID, sess)

	h.mu.Lock()
	h.tasks[req.ID] = &task{sessionID: sess.ID}
	h.mu.Unlock()

	go func() {
		ctx := context.Background()
		if err := sess.Dispatch.GenerateAll(ctx); err != nil {
			sess.Log.Error("a2a: generate_all failed", "task_id", req.ID, "error", err)
		}
	}()

	h.log.Info("a2a task created", "task_id", req.ID, "session_id", sess.ID, "skill", req.Skill)

	resp := a2a.TaskResponse{ID: req.ID, Status: "running"}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleGetTask reports the bound session's live DevState/DeploymentStatus
// as the task's status, rather than a value this instance invented at
// creation time.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.RLock()
	t, ok := h.tasks[id]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	sess := h.registry.Get(t.sessionID)
	if sess == nil {
		writeError(w, http.StatusNotFound, "task's session is no longer registered")
		return
	}

	snapshot, err := sess.Dispatch.State()
	if err != nil {
		resp := a2a.TaskResponse{ID: id, Status: "failed", Error: err.Error()}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	var output map[string]any
	if err := json.Unmarshal(snapshot, &output); err != nil {
		output = nil
	}

	resp := a2a.TaskResponse{ID: id, Status: taskStatus(output), Output: output}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// taskStatus derives a coarse A2A status from a state snapshot's devState
// or deploymentStatus field, defaulting to "running" when neither is the
// idle value.
func taskStatus(state map[string]any) string {
	if v, ok := state["currentDevState"].(string); ok {
		if v == "IDLE" {
			return "completed"
		}
		return "running"
	}
	if v, ok := state["deploymentStatus"].(string); ok {
		if v == "idle" || v == "deployed" {
			return "completed"
		}
		if v == "failed" {
			return "failed"
		}
		return "running"
	}
	return "running"
}

// stringInput reads a string field out of an A2A input/context map,
// falling back to def when absent or not a string.
func stringInput(m map[string]any, key, def string) string {
	if m == nil {
		return def
	}
	v, ok := m[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
