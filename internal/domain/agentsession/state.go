// Package agentsession defines the session state model shared by the app
// and workflow controllers: the project type, the base state every session
// carries, and the two variant extensions.
package agentsession

import "time"

// ProjectType selects which controller owns a session. Immutable after
// session creation.
type ProjectType string

const (
	ProjectTypeApp      ProjectType = "app"
	ProjectTypeWorkflow ProjectType = "workflow"
)

// Valid reports whether t is a known project type.
func (t ProjectType) Valid() bool {
	switch t {
	case ProjectTypeApp, ProjectTypeWorkflow:
		return true
	}
	return false
}

// AgentMode controls how deterministically the controller drives generation.
type AgentMode string

const (
	AgentModeDeterministic AgentMode = "deterministic"
	AgentModeSmart         AgentMode = "smart"
)

// DevState is the Phasic App Controller's state machine position.
type DevState string

const (
	DevStateIdle               DevState = "IDLE"
	DevStatePhaseGenerating    DevState = "PHASE_GENERATING"
	DevStatePhaseImplementing  DevState = "PHASE_IMPLEMENTING"
	DevStateReviewing          DevState = "REVIEWING"
	DevStateFinalizing         DevState = "FINALIZING"
)

// DeploymentStatus tracks a workflow session's external-cloud deploy state.
type DeploymentStatus string

const (
	DeploymentStatusIdle      DeploymentStatus = "idle"
	DeploymentStatusDeploying DeploymentStatus = "deploying"
	DeploymentStatusDeployed  DeploymentStatus = "deployed"
	DeploymentStatusFailed    DeploymentStatus = "failed"
)

// FileRecord is one entry of generatedFilesMap. A commit in the VCS store
// containing its path must exist for every record the next successful
// File Manager save returns.
type FileRecord struct {
	FilePath     string `json:"filePath"`
	FileContents string `json:"fileContents"`
	FilePurpose  string `json:"filePurpose,omitempty"`
	LastDiff     string `json:"lastDiff,omitempty"`
}

// PhaseRecord is one unit of app-generation work tracked by the Phasic App
// Controller.
type PhaseRecord struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// BlueprintStep is one planned unit of work in an app blueprint.
type BlueprintStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Blueprint is the structured project plan produced by PHASE_GENERATING.
type Blueprint struct {
	Summary string          `json:"summary"`
	Steps   []BlueprintStep `json:"steps"`
}

// ResourceKind enumerates the Cloudflare binding kinds a workflow may
// declare.
type ResourceKind string

const (
	ResourceKindKV    ResourceKind = "kv"
	ResourceKindR2    ResourceKind = "r2"
	ResourceKindD1    ResourceKind = "d1"
	ResourceKindQueue ResourceKind = "queue"
	ResourceKindAI    ResourceKind = "ai"
)

// ResourceBinding declares one Cloudflare resource binding.
type ResourceBinding struct {
	Name string       `json:"name"`
	Kind ResourceKind `json:"kind"`
	// ID is the underlying resource identifier (namespace id, bucket name,
	// database id, queue name); empty for kinds that need none (e.g. "ai").
	ID string `json:"id,omitempty"`
}

// WorkflowMetadata is the workflow's declared name/description/schema plus
// its environment, secret, and resource bindings. Merged field-by-field by
// the Agentic Workflow Controller: maps are add-or-overwrite, scalars are
// last-writer-wins. There is no deletion semantics (§9 of the spec this
// module implements leaves this an open question).
type WorkflowMetadata struct {
	Name         string                     `json:"name"`
	Description  string                     `json:"description"`
	ParamsSchema map[string]any             `json:"paramsSchema,omitempty"`
	EnvVars      map[string]string          `json:"envVars,omitempty"`
	Secrets      map[string]string          `json:"secrets,omitempty"`
	Resources    map[string]ResourceBinding `json:"resources,omitempty"`
}

// Merge applies update onto m following the field union / last-writer-wins
// rule and returns the result. m is not mutated.
func (m WorkflowMetadata) Merge(update WorkflowMetadata) WorkflowMetadata {
	out := m
	if update.Name != "" {
		out.Name = update.Name
	}
	if update.Description != "" {
		out.Description = update.Description
	}
	if update.ParamsSchema != nil {
		out.ParamsSchema = update.ParamsSchema
	}
	out.EnvVars = mergeStringMap(m.EnvVars, update.EnvVars)
	out.Secrets = mergeStringMap(m.Secrets, update.Secrets)
	out.Resources = mergeResourceMap(m.Resources, update.Resources)
	return out
}

func mergeStringMap(base, update map[string]string) map[string]string {
	if len(update) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func mergeResourceMap(base, update map[string]ResourceBinding) map[string]ResourceBinding {
	if len(update) == 0 {
		return base
	}
	out := make(map[string]ResourceBinding, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

// BaseState is the state common to app and workflow sessions. It is held
// exclusively through the State Store (C1); no component mutates it
// directly.
type BaseState struct {
	// identity
	ProjectName  string `json:"projectName"`
	Query        string `json:"query"`
	SessionID    string `json:"sessionId"`
	Hostname     string `json:"hostname"`
	TemplateName string `json:"templateName"`

	// compact conversation log; the full log lives out-of-band in C2.
	CompactConversationID string `json:"compactConversationId"`

	// generation control
	ShouldBeGenerating bool      `json:"shouldBeGenerating"`
	AgentMode          AgentMode `json:"agentMode"`

	// files
	GeneratedFilesMap map[string]FileRecord `json:"generatedFilesMap"`

	// infra
	SandboxInstanceID string   `json:"sandboxInstanceId,omitempty"`
	CommandsHistory   []string `json:"commandsHistory"`
	LastPackageJSON   string   `json:"lastPackageJson,omitempty"`

	// pending work awaiting a safe merge point
	PendingUserInputs   []string `json:"pendingUserInputs"`
	ProjectUpdateNotes  []string `json:"projectUpdateNotes"`

	LastDeepDebugTranscript string `json:"lastDeepDebugTranscript,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of s so a caller holding a snapshot cannot
// observe later mutation of the live state.
func (s BaseState) Clone() BaseState {
	out := s
	out.GeneratedFilesMap = make(map[string]FileRecord, len(s.GeneratedFilesMap))
	for k, v := range s.GeneratedFilesMap {
		out.GeneratedFilesMap[k] = v
	}
	out.CommandsHistory = append([]string(nil), s.CommandsHistory...)
	out.PendingUserInputs = append([]string(nil), s.PendingUserInputs...)
	out.ProjectUpdateNotes = append([]string(nil), s.ProjectUpdateNotes...)
	return out
}

// AppState extends BaseState with the Phasic App Controller's fields.
type AppState struct {
	BaseState

	Blueprint          *Blueprint    `json:"blueprint,omitempty"`
	GeneratedPhases    []PhaseRecord `json:"generatedPhases"`
	MVPGenerated       bool          `json:"mvpGenerated"`
	ReviewingInitiated bool          `json:"reviewingInitiated"`
	PhasesCounter      int           `json:"phasesCounter"`
	CurrentDevState    DevState      `json:"currentDevState"`
	CurrentPhase       string        `json:"currentPhase,omitempty"`
	ReviewCycles       int           `json:"reviewCycles"`
}

// Clone returns a deep copy of s.
func (s AppState) Clone() AppState {
	out := s
	out.BaseState = s.BaseState.Clone()
	out.GeneratedPhases = append([]PhaseRecord(nil), s.GeneratedPhases...)
	if s.Blueprint != nil {
		bp := *s.Blueprint
		bp.Steps = append([]BlueprintStep(nil), s.Blueprint.Steps...)
		out.Blueprint = &bp
	}
	return out
}

// WorkflowState extends BaseState with the Agentic Workflow Controller's
// fields. Workflow code is never stored here: it is always derived from
// BaseState.GeneratedFilesMap["src/index.ts"] (see §9 "Workflow code
// duplication" — variant (b)).
type WorkflowState struct {
	BaseState

	WorkflowMetadata *WorkflowMetadata `json:"workflowMetadata,omitempty"`
	DeploymentURL    string            `json:"deploymentUrl,omitempty"`
	DeploymentStatus DeploymentStatus  `json:"deploymentStatus"`
	DeploymentError  string            `json:"deploymentError,omitempty"`
}

// Clone returns a deep copy of s.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.BaseState = s.BaseState.Clone()
	if s.WorkflowMetadata != nil {
		md := *s.WorkflowMetadata
		out.WorkflowMetadata = &md
	}
	return out
}

// WorkflowCode returns the derived workflow source, read from
// generatedFilesMap["src/index.ts"], and whether that file exists. It does
// not extract the exported class name.
func (s WorkflowState) WorkflowCode() (code string, ok bool) {
	rec, ok := s.GeneratedFilesMap["src/index.ts"]
	if !ok {
		return "", false
	}
	return rec.FileContents, true
}
