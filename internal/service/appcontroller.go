package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/domain/conversation"
	"github.com/Strob0t/CodeForge/internal/eventtype"
	"github.com/Strob0t/CodeForge/internal/port/broadcast"
	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/service/tools"
)

// AppController is the Phasic App Controller (C10): drives AppState's
// currentDevState through IDLE -> PHASE_GENERATING -> PHASE_IMPLEMENTING
// (looped once per blueprint step) -> REVIEWING -> FINALIZING -> IDLE
// (§4.9). Grounded on the teacher's own multi-stage generation pipeline
// shape (plan/implement/review stages chained through its own internal
// service layer), reworked onto agentsession.DevState's transition table.
type AppController struct {
	sessionID string
	states    *StateStore[agentsession.AppState]
	conv      *ConversationStore
	cancel    *CancellationController
	toolset   *tools.Registry
	llmc      llm.Client
	deploy    *DeploymentManager[agentsession.AppState]
	events    broadcast.Broadcaster
	log       *slog.Logger
}

// NewAppController wires C10 from its collaborators.
func NewAppController(
	sessionID string,
	states *StateStore[agentsession.AppState],
	conv *ConversationStore,
	cancel *CancellationController,
	toolset *tools.Registry,
	llmc llm.Client,
	deploy *DeploymentManager[agentsession.AppState],
	events broadcast.Broadcaster,
	log *slog.Logger,
) *AppController {
	return &AppController{
		sessionID: sessionID, states: states, conv: conv,
		cancel: cancel, toolset: toolset, llmc: llmc, deploy: deploy, events: events, log: log,
	}
}

// Preview invokes deployToSandbox with an empty files list, the `preview`
// control frame's contract (§4.13).
func (a *AppController) Preview(ctx context.Context) (string, error) {
	var previewURL string
	err := a.deploy.DeployToSandbox(ctx, nil, false, "", false, DeploymentCallbacks{
		OnCompleted: func(url string) { previewURL = url },
	})
	return previewURL, err
}

// Deploy invokes deployToCloudflare, the `deploy` control frame's
// contract (§4.13).
func (a *AppController) Deploy(ctx context.Context) (string, error) {
	return a.deploy.DeployToCloudflare(ctx, CloudflareDeployOptions{}, DeploymentCallbacks{})
}

// CaptureScreenshot is app-only (§4.13); not yet backed by a sandbox
// screenshot capability in C8's contract, so it reports not-implemented
// rather than silently succeeding.
func (a *AppController) CaptureScreenshot(ctx context.Context) (string, error) {
	return "", fmt.Errorf("capture_screenshot: not implemented")
}

// GetModelConfigs is app-only (§4.13); model configuration is an external
// LLM-gateway concern this controller has no handle to yet.
func (a *AppController) GetModelConfigs(ctx context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

// ProjectType reports this controller's variant, satisfying the
// dispatcher's Controller interface (C13).
func (a *AppController) ProjectType() agentsession.ProjectType { return agentsession.ProjectTypeApp }

// State marshals the current State Store snapshot, satisfying the
// dispatcher's Controller interface (C13) for the MCP read-only
// introspection surface (§6).
func (a *AppController) State() (json.RawMessage, error) {
	return json.Marshal(a.states.Get())
}

// GenerateAll is the controller's generate entry point (`generate_all`,
// §4.13). If generation is already in flight it is a no-op, per the
// Control-Message Handler's contract for that frame type.
func (a *AppController) GenerateAll(ctx context.Context) error {
	state := a.states.Get()
	if state.ShouldBeGenerating && state.CurrentDevState != agentsession.DevStateIdle {
		return nil
	}

	a.states.UpdateField(ctx, func(s *agentsession.AppState) {
		s.ShouldBeGenerating = true
	})

	runCtx, _ := a.cancel.GetOrCreate(ctx)
	completed := a.runStateMachine(runCtx)

	a.states.UpdateField(ctx, func(s *agentsession.AppState) {
		if completed {
			s.ShouldBeGenerating = false
		}
	})
	return nil
}

// runStateMachine drives the phase loop from whatever devState is actually
// stored — not always from IDLE — until FINALIZING->IDLE completes or
// runCtx is cancelled. A resume after a mid-phase cancellation (§4.9's
// "left with completed=false") lands here with CurrentDevState already at
// PHASE_IMPLEMENTING, so it falls straight into runImplementationLoop
// without replaying runPlanning and its alter_blueprint call, which would
// otherwise discard the in-progress blueprint on every resume. Returns
// true only if generation ran to completion.
func (a *AppController) runStateMachine(runCtx context.Context) bool {
	state := a.states.Get()

	if state.CurrentDevState == agentsession.DevStateIdle {
		if !a.advance(runCtx, agentsession.DevStateIdle, agentsession.DevStatePhaseGenerating) {
			return false
		}
		a.events.BroadcastEvent(runCtx, eventtype.PhaseGenerating, map[string]any{"sessionId": a.sessionID})

		if err := a.runPlanning(runCtx); err != nil {
			a.log.Error("app controller: planning failed", "session_id", a.sessionID, "error", err)
			a.events.BroadcastEvent(runCtx, eventtype.Error, map[string]string{"message": err.Error()})
			return false
		}
		a.events.BroadcastEvent(runCtx, eventtype.PhaseGenerated, map[string]any{"sessionId": a.sessionID})

		if !a.advance(runCtx, agentsession.DevStatePhaseGenerating, agentsession.DevStatePhaseImplementing) {
			return false
		}
		state.CurrentDevState = agentsession.DevStatePhaseImplementing
	}

	if state.CurrentDevState == agentsession.DevStatePhaseImplementing {
		if runCtx.Err() != nil {
			return false
		}
		if !a.runImplementationLoop(runCtx) {
			return false
		}
		if !a.advance(runCtx, agentsession.DevStatePhaseImplementing, agentsession.DevStateReviewing) {
			return false
		}
		state.CurrentDevState = agentsession.DevStateReviewing
	}

	if state.CurrentDevState == agentsession.DevStateReviewing {
		if err := a.runReview(runCtx); err != nil {
			a.log.Error("app controller: review failed", "session_id", a.sessionID, "error", err)
			return false
		}
		if !a.advance(runCtx, agentsession.DevStateReviewing, agentsession.DevStateFinalizing) {
			return false
		}
		state.CurrentDevState = agentsession.DevStateFinalizing
	}

	if state.CurrentDevState == agentsession.DevStateFinalizing {
		if !a.advance(runCtx, agentsession.DevStateFinalizing, agentsession.DevStateIdle) {
			return false
		}
	}
	return true
}

// advance validates and commits one devState transition against the
// actually-stored CurrentDevState, not just the literal from/to the caller
// passes: the check and the write happen under the same StateStore lock, so
// a transition whose "from" no longer matches what is stored (another
// caller already moved it, or the caller's own assumption about where the
// state machine is is stale) is refused rather than blindly applied. A
// cancelled runCtx also blocks the transition (the in-flight unit is left
// incomplete) and reports non-advance rather than an error, per §4.5's
// "cancelled outcome, not an error" rule.
func (a *AppController) advance(runCtx context.Context, from, to agentsession.DevState) bool {
	if runCtx.Err() != nil {
		return false
	}
	advanced := false
	a.states.UpdateField(runCtx, func(s *agentsession.AppState) {
		if s.CurrentDevState != from {
			return
		}
		if agentsession.ValidateTransition(from, to) != nil {
			return
		}
		s.CurrentDevState = to
		advanced = true
	})
	if !advanced {
		a.log.Error("app controller: illegal transition", "session_id", a.sessionID,
			"stored_state", a.states.Get().CurrentDevState, "expected_from", from, "to", to)
	}
	return advanced
}

// runPlanning invokes the LLM with the common+app tool set to produce a
// blueprint via alter_blueprint, then drains any pending user inputs
// queued before the first phase boundary.
func (a *AppController) runPlanning(ctx context.Context) error {
	state := a.states.Get()
	result, err := a.llmc.ExecuteInference(ctx, llm.InferenceRequest{
		Messages: []llm.Message{{Role: "user", Content: state.Query}},
		Tools:    a.toolDefs(),
	})
	if err != nil {
		return fmt.Errorf("plan inference: %w", err)
	}
	a.recordAssistantTurn(ctx, result)
	a.dispatchToolCalls(ctx, result.ToolCalls)
	a.drainPendingInputs(ctx)
	return nil
}

// runImplementationLoop executes one implement step per remaining
// blueprint step, dispatching the tool calls each step's inference returns
// (file commits come from those calls, e.g. generate_files; a step whose
// inference issues none commits nothing), resuming from the first
// non-completed phase and enforcing agentsession.MaxPhases.
func (a *AppController) runImplementationLoop(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		state := a.states.Get()
		if state.Blueprint == nil {
			return true
		}

		// The first non-completed phase is either a record already in
		// GeneratedPhases left at Completed=false by a prior cancellation
		// (resume case), or one past the end of GeneratedPhases (first
		// attempt). len() alone would always point past an interrupted
		// record and silently skip retrying it forever.
		idx := len(state.GeneratedPhases)
		resuming := idx > 0 && !state.GeneratedPhases[idx-1].Completed
		if resuming {
			idx--
		}
		if idx >= len(state.Blueprint.Steps) {
			return true
		}
		if state.PhasesCounter >= agentsession.MaxPhases {
			a.log.Warn("app controller: max phases reached", "session_id", a.sessionID)
			return true
		}

		step := state.Blueprint.Steps[idx]

		if resuming {
			a.states.UpdateField(ctx, func(s *agentsession.AppState) {
				s.CurrentPhase = step.Name
			})
		} else {
			a.states.UpdateField(ctx, func(s *agentsession.AppState) {
				s.CurrentPhase = step.Name
				s.GeneratedPhases = append(s.GeneratedPhases, agentsession.PhaseRecord{Name: step.Name, Completed: false})
			})
		}
		a.events.BroadcastEvent(ctx, eventtype.PhaseImplementing, map[string]any{"phase": step.Name})

		result, err := a.llmc.ExecuteInference(ctx, llm.InferenceRequest{
			Messages: []llm.Message{{Role: "user", Content: step.Description}},
			Tools:    a.toolDefs(),
		})
		if err != nil {
			a.log.Error("app controller: implement step failed", "session_id", a.sessionID, "phase", step.Name, "error", err)
			return false
		}
		a.recordAssistantTurn(ctx, result)
		a.dispatchToolCalls(ctx, result.ToolCalls)

		if ctx.Err() != nil {
			return false // leaves this phase's Completed=false, per §4.9
		}

		a.states.UpdateField(ctx, func(s *agentsession.AppState) {
			s.GeneratedPhases[idx].Completed = true
			s.PhasesCounter++
			if idx == len(s.Blueprint.Steps)-1 {
				s.MVPGenerated = true
			}
		})
		a.events.BroadcastEvent(ctx, eventtype.PhaseImplemented, map[string]any{"phase": step.Name})
		a.drainPendingInputs(ctx)
	}
}

func (a *AppController) runReview(ctx context.Context) error {
	a.states.UpdateField(ctx, func(s *agentsession.AppState) {
		s.ReviewingInitiated = true
		s.ReviewCycles++
	})
	return nil
}

// drainPendingInputs appends queued user suggestions to the conversation
// and clears the pending queue; called only at phase boundaries, per
// §4.9's "drained at the next phase boundary".
func (a *AppController) drainPendingInputs(ctx context.Context) {
	state := a.states.Get()
	if len(state.PendingUserInputs) == 0 {
		return
	}
	for _, text := range state.PendingUserInputs {
		a.conv.AddMessage(ctx, conversation.Message{
			ConversationID: fmt.Sprintf("%s-pending-%s", a.sessionID, uuid.NewString()),
			Role:           conversation.RoleUser,
			Content:        text,
		})
	}
	a.states.UpdateField(ctx, func(s *agentsession.AppState) {
		s.PendingUserInputs = nil
	})
}

func (a *AppController) recordAssistantTurn(ctx context.Context, result llm.InferenceResult) {
	if result.Text == "" {
		return
	}
	a.conv.AddMessage(ctx, conversation.Message{
		ConversationID: fmt.Sprintf("%s-%d", a.sessionID, a.states.Get().PhasesCounter),
		Role:           conversation.RoleAssistant,
		Content:        result.Text,
	})
}

func (a *AppController) dispatchToolCalls(ctx context.Context, calls []llm.ToolCall) {
	for _, call := range calls {
		var args map[string]any
		_ = json.Unmarshal(call.Args, &args)
		_, toolErr := a.toolset.Dispatch(ctx, call.Name, args)
		if toolErr != nil {
			a.log.Warn("app controller: tool call failed", "session_id", a.sessionID, "tool", call.Name, "error", toolErr)
		}
	}
}

func (a *AppController) toolDefs() []llm.ToolDef {
	defs := a.toolset.Definitions()
	out := make([]llm.ToolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolDef{Name: d.Name, Description: d.Description, JSONSchema: d.Schema()})
	}
	return out
}

// UserSuggestion appends text to pendingUserInputs for later draining
// (`user_suggestion`, app-only per §4.13).
func (a *AppController) UserSuggestion(ctx context.Context, text string) error {
	a.states.UpdateField(ctx, func(s *agentsession.AppState) {
		s.PendingUserInputs = append(s.PendingUserInputs, text)
	})
	return nil
}

// StopGeneration cancels the current token and clears shouldBeGenerating,
// the app-session half of `stop_generation` (§4.13).
func (a *AppController) StopGeneration(ctx context.Context) error {
	a.cancel.Cancel()
	a.states.UpdateField(ctx, func(s *agentsession.AppState) {
		s.ShouldBeGenerating = false
	})
	return nil
}

// ResumeGeneration restarts the state machine from the first
// non-completed phase (`resume_generation`, app-only per §4.13).
func (a *AppController) ResumeGeneration(ctx context.Context) error {
	state := a.states.Get()
	if state.ShouldBeGenerating {
		return nil
	}
	return a.GenerateAll(ctx)
}
