// Package a2a defines the wire types for the Agent-to-Agent protocol
// surface (§6 expansion): the static agent card served at
// /.well-known/agent.json and the task request/response shapes
// POST /a2a/tasks and GET /a2a/tasks/{id} exchange. Grounded on the
// teacher's own internal/port/a2a package, which defines the identical
// shapes; kept here as a pure-data port with no I/O so that
// internal/adapter/a2a can depend on it without pulling in chi or the
// service layer.
package a2a

// AgentCard describes an agent's capabilities per the A2A protocol.
type AgentCard struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	URL          string  `json:"url"`
	Version      string  `json:"version"`
	Skills       []Skill `json:"skills"`
	Capabilities struct {
		Streaming bool `json:"streaming"`
	} `json:"capabilities"`
}

// Skill describes a single capability of the agent.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	InputModes  []string `json:"inputModes"`
	OutputModes []string `json:"outputModes"`
}

// TaskRequest represents an incoming A2A task request. Skill selects
// which kind of session the task drives ("code-task" for an app session,
// "decompose" for a workflow session); Input carries the free-form
// parameters a caller supplies for that skill.
type TaskRequest struct {
	ID      string         `json:"id"`
	Skill   string         `json:"skill"`
	Input   map[string]any `json:"input"`             //nolint:gosec // A2A protocol requires flexible input
	Context map[string]any `json:"context,omitempty"` //nolint:gosec // A2A protocol requires flexible context
}

// TaskResponse represents an A2A task response.
type TaskResponse struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`           // "queued", "running", "completed", "failed"
	Output map[string]any `json:"output,omitempty"` //nolint:gosec // A2A protocol requires flexible output
	Error  string         `json:"error,omitempty"`
}
