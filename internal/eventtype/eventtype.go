// Package eventtype defines the closed set of outbound Event Bus (C5)
// event types (§6), shared by the controllers that emit them
// (internal/service) and the transport that carries them
// (internal/adapter/ws) without either depending on the other.
package eventtype

const (
	GenerationStarted   = "generation_started"
	GenerationCompleted = "generation_completed"
	GenerationStopped   = "generation_stopped"
	GenerationResumed   = "generation_resumed"

	PhaseGenerating   = "phase_generating"
	PhaseGenerated    = "phase_generated"
	PhaseImplementing = "phase_implementing"
	PhaseImplemented  = "phase_implemented"

	FileGenerating     = "file_generating"
	FileChunkGenerated = "file_chunk_generated"
	FileGenerated      = "file_generated"

	DeploymentStarted   = "deployment_started"
	DeploymentCompleted = "deployment_completed"
	DeploymentFailed    = "deployment_failed"

	CloudflareDeploymentStarted   = "cloudflare_deployment_started"
	CloudflareDeploymentCompleted = "cloudflare_deployment_completed"
	CloudflareDeploymentError     = "cloudflare_deployment_error"

	PreviewForceRefresh   = "preview_force_refresh"
	RuntimeErrorFound     = "runtime_error_found"
	StaticAnalysisResults = "static_analysis_results"

	ConversationCleared = "conversation_cleared"
	ConversationState   = "conversation_state"
	ProjectNameUpdated  = "project_name_updated"

	GithubExportStarted   = "github_export_started"
	GithubExportProgress  = "github_export_progress"
	GithubExportCompleted = "github_export_completed"
	GithubExportError     = "github_export_error"

	TextDelta = "text_delta"
	Error     = "error"
)
