package ws

import "github.com/Strob0t/CodeForge/internal/eventtype"

// Outbound event types (§6), re-exported from internal/eventtype so both
// the controllers that emit them and this transport share one definition.
const (
	EventGenerationStarted   = eventtype.GenerationStarted
	EventGenerationCompleted = eventtype.GenerationCompleted
	EventGenerationStopped   = eventtype.GenerationStopped
	EventGenerationResumed   = eventtype.GenerationResumed

	EventPhaseGenerating   = eventtype.PhaseGenerating
	EventPhaseGenerated    = eventtype.PhaseGenerated
	EventPhaseImplementing = eventtype.PhaseImplementing
	EventPhaseImplemented  = eventtype.PhaseImplemented

	EventFileGenerating     = eventtype.FileGenerating
	EventFileChunkGenerated = eventtype.FileChunkGenerated
	EventFileGenerated      = eventtype.FileGenerated

	EventDeploymentStarted   = eventtype.DeploymentStarted
	EventDeploymentCompleted = eventtype.DeploymentCompleted
	EventDeploymentFailed    = eventtype.DeploymentFailed

	EventCloudflareDeploymentStarted   = eventtype.CloudflareDeploymentStarted
	EventCloudflareDeploymentCompleted = eventtype.CloudflareDeploymentCompleted
	EventCloudflareDeploymentError     = eventtype.CloudflareDeploymentError

	EventPreviewForceRefresh   = eventtype.PreviewForceRefresh
	EventRuntimeErrorFound     = eventtype.RuntimeErrorFound
	EventStaticAnalysisResults = eventtype.StaticAnalysisResults

	EventConversationCleared = eventtype.ConversationCleared
	EventConversationState   = eventtype.ConversationState
	EventProjectNameUpdated  = eventtype.ProjectNameUpdated

	EventGithubExportStarted   = eventtype.GithubExportStarted
	EventGithubExportProgress  = eventtype.GithubExportProgress
	EventGithubExportCompleted = eventtype.GithubExportCompleted
	EventGithubExportError     = eventtype.GithubExportError

	EventTextDelta = eventtype.TextDelta
	EventError     = eventtype.Error
)

// Inbound frame types (§6), the closed set the Control-Message Handler
// switches on.
const (
	InGenerateAll          = "generate_all"
	InPreview              = "preview"
	InDeploy               = "deploy"
	InCaptureScreenshot    = "capture_screenshot"
	InStopGeneration       = "stop_generation"
	InResumeGeneration     = "resume_generation"
	InUserSuggestion       = "user_suggestion"
	InClearConversation    = "clear_conversation"
	InGetConversationState = "get_conversation_state"
	InGetModelConfigs      = "get_model_configs"
	InGithubExport         = "github_export"
)
