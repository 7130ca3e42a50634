package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/domain/conversation"
	"github.com/Strob0t/CodeForge/internal/eventtype"
	"github.com/Strob0t/CodeForge/internal/port/broadcast"
	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/port/scaffold"
	"github.com/Strob0t/CodeForge/internal/service/tools"
)

// WorkflowController is the Agentic Workflow Controller (C11): a single
// LLM dialogue over the workflow tool set that must produce both
// `generate_files` output (src/index.ts) and a `configure_workflow_metadata`
// call, then regenerates the template scaffold so wrangler.jsonc/README.md
// reflect the merged metadata (§4.10). Grounded on the same multi-turn
// tool-calling shape as AppController's planning step, simplified to one
// dialogue instead of a phase state machine since a workflow has no
// multi-phase plan.
type WorkflowController struct {
	sessionID string
	states    *StateStore[agentsession.WorkflowState]
	conv      *ConversationStore
	files     *FileManager[agentsession.WorkflowState]
	cancel    *CancellationController
	toolset   *tools.Registry
	llmc      llm.Client
	scaffold  scaffold.Provider
	deploy    *DeploymentManager[agentsession.WorkflowState]
	events    broadcast.Broadcaster
	log       *slog.Logger
}

// NewWorkflowController wires C11 from its collaborators.
func NewWorkflowController(
	sessionID string,
	states *StateStore[agentsession.WorkflowState],
	conv *ConversationStore,
	files *FileManager[agentsession.WorkflowState],
	cancel *CancellationController,
	toolset *tools.Registry,
	llmc llm.Client,
	scaffoldProvider scaffold.Provider,
	deploy *DeploymentManager[agentsession.WorkflowState],
	events broadcast.Broadcaster,
	log *slog.Logger,
) *WorkflowController {
	return &WorkflowController{
		sessionID: sessionID, states: states, conv: conv, files: files,
		cancel: cancel, toolset: toolset, llmc: llmc, scaffold: scaffoldProvider,
		deploy: deploy, events: events, log: log,
	}
}

// Preview invokes deployToSandbox with an empty files list, the `preview`
// control frame's contract (§4.13).
func (w *WorkflowController) Preview(ctx context.Context) (string, error) {
	var previewURL string
	err := w.deploy.DeployToSandbox(ctx, nil, false, "", false, DeploymentCallbacks{
		OnCompleted: func(url string) { previewURL = url },
	})
	return previewURL, err
}

// Deploy invokes deployToCloudflare, the `deploy` control frame's
// contract (§4.13), and records the outcome into deploymentStatus /
// deploymentUrl / deploymentError — the scenario 4 end-to-end contract
// ("deploymentStatus='failed', deploymentError set" on a missing-credential
// deploy) has nowhere else to be satisfied from, since DeployToCloudflare
// itself only knows DeploymentCallbacks, not this controller's state shape.
func (w *WorkflowController) Deploy(ctx context.Context) (string, error) {
	w.states.UpdateField(ctx, func(s *agentsession.WorkflowState) {
		s.DeploymentStatus = agentsession.DeploymentStatusDeploying
		s.DeploymentError = ""
	})
	url, err := w.deploy.DeployToCloudflare(ctx, CloudflareDeployOptions{}, DeploymentCallbacks{})
	w.states.UpdateField(ctx, func(s *agentsession.WorkflowState) {
		if err != nil {
			s.DeploymentStatus = agentsession.DeploymentStatusFailed
			s.DeploymentError = err.Error()
			return
		}
		s.DeploymentStatus = agentsession.DeploymentStatusDeployed
		s.DeploymentURL = url
		s.DeploymentError = ""
	})
	return url, err
}

// ProjectType reports this controller's variant, satisfying the
// dispatcher's Controller interface (C13).
func (w *WorkflowController) ProjectType() agentsession.ProjectType {
	return agentsession.ProjectTypeWorkflow
}

// State marshals the current State Store snapshot, satisfying the
// dispatcher's Controller interface (C13) for the MCP read-only
// introspection surface (§6).
func (w *WorkflowController) State() (json.RawMessage, error) {
	return json.Marshal(w.states.Get())
}

// GenerateAll runs the single tool-calling dialogue to completion: the LLM
// keeps issuing tool calls (generate_files, configure_workflow_metadata,
// and the common set) until it stops or cancellation is observed (§4.10).
func (w *WorkflowController) GenerateAll(ctx context.Context) error {
	state := w.states.Get()
	if state.ShouldBeGenerating {
		return nil
	}
	w.states.UpdateField(ctx, func(s *agentsession.WorkflowState) {
		s.ShouldBeGenerating = true
	})
	w.events.BroadcastEvent(ctx, eventtype.GenerationStarted, map[string]any{"sessionId": w.sessionID})

	runCtx, _ := w.cancel.GetOrCreate(ctx)
	metadataConfigured := false
	filesGenerated := false

	messages := []llm.Message{{Role: "user", Content: state.Query}}
	for {
		if runCtx.Err() != nil {
			break
		}
		result, err := w.llmc.ExecuteInference(runCtx, llm.InferenceRequest{
			Messages: messages,
			Tools:    w.toolDefs(),
		})
		if err != nil {
			w.log.Error("workflow controller: inference failed", "session_id", w.sessionID, "error", err)
			w.events.BroadcastEvent(ctx, eventtype.Error, map[string]string{"message": err.Error()})
			break
		}
		if result.Text != "" {
			w.conv.AddMessage(ctx, conversation.Message{
				ConversationID: fmt.Sprintf("%s-%d", w.sessionID, len(messages)),
				Role:           conversation.RoleAssistant,
				Content:        result.Text,
			})
			messages = append(messages, llm.Message{Role: "assistant", Content: result.Text})
		}
		if len(result.ToolCalls) == 0 {
			break // the LLM stopped issuing tool calls: generation is complete
		}
		for _, call := range result.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal(call.Args, &args)
			_, toolErr := w.toolset.Dispatch(runCtx, call.Name, args)
			if toolErr != nil {
				w.log.Warn("workflow controller: tool call failed", "session_id", w.sessionID, "tool", call.Name, "error", toolErr)
				continue
			}
			switch call.Name {
			case "generate_files":
				filesGenerated = true
			case "configure_workflow_metadata":
				metadataConfigured = true
			}
		}
		if metadataConfigured && filesGenerated {
			break
		}
	}

	completed := runCtx.Err() == nil
	if completed && metadataConfigured {
		if err := w.regenerateScaffold(ctx); err != nil {
			w.log.Error("workflow controller: scaffold regeneration failed", "session_id", w.sessionID, "error", err)
		}
	}

	w.states.UpdateField(ctx, func(s *agentsession.WorkflowState) {
		if completed {
			s.ShouldBeGenerating = false
		}
	})
	if completed {
		w.events.BroadcastEvent(ctx, eventtype.GenerationCompleted, map[string]any{"sessionId": w.sessionID})
	}
	return nil
}

// regenerateScaffold re-derives wrangler.jsonc/README.md from the current
// metadata and workflow code, per §4.10's "template scaffold is
// regenerated" and §4.17's scaffold contract.
func (w *WorkflowController) regenerateScaffold(ctx context.Context) error {
	state := w.states.Get()
	if state.WorkflowMetadata == nil {
		return nil
	}
	code, _ := state.WorkflowCode()

	result, err := w.scaffold.Render(scaffold.Request{
		ProjectType:  agentsession.ProjectTypeWorkflow,
		WorkflowName: state.WorkflowMetadata.Name,
		WorkflowCode: code,
		Metadata:     state.WorkflowMetadata,
	})
	if err != nil {
		return fmt.Errorf("scaffold render: %w", err)
	}

	records := make([]agentsession.FileRecord, 0, len(result.AllFiles))
	for path, contents := range result.AllFiles {
		records = append(records, agentsession.FileRecord{FilePath: path, FileContents: contents, FilePurpose: "scaffold"})
	}
	_, err = w.files.SaveGeneratedFiles(ctx, records, "regenerate scaffold from workflow metadata")
	return err
}

func (w *WorkflowController) toolDefs() []llm.ToolDef {
	defs := w.toolset.Definitions()
	out := make([]llm.ToolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolDef{Name: d.Name, Description: d.Description, JSONSchema: d.Schema()})
	}
	return out
}

// StopGeneration cancels the current token. Workflow sessions have no
// separate shouldBeGenerating-clearing rule beyond the main loop noticing
// cancellation (§4.13 only calls out app-only clearing).
func (w *WorkflowController) StopGeneration(ctx context.Context) error {
	w.cancel.Cancel()
	return nil
}
