package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/service/tools"
)

func newTestAppController(t *testing.T, llmc llm.Client) (*AppController, *StateStore[agentsession.AppState], *fakeBroadcaster) {
	t.Helper()
	getBase, setBase := appBaseAccessors()
	initial := newTestAppState("sess-1")
	initial.BaseState.Query = "make a counter"
	states := NewStateStore("sess-1", string(agentsession.ProjectTypeApp), initial, nil, discardLogger())
	conv := NewConversationStore(context.Background(), "sess-1", nil, discardLogger())
	cancel := NewCancellationController()
	registry := tools.NewRegistry()
	deployMgr := NewDeploymentManager[agentsession.AppState]("sess-1", states, newFakeSandbox(), nil, nil, nil, 0, discardLogger(), getBase, setBase)
	events := &fakeBroadcaster{}

	ctrl := NewAppController("sess-1", states, conv, cancel, registry, llmc, deployMgr, events, discardLogger())
	return ctrl, states, events
}

func TestAppControllerGenerateAllRunsPhasesToIdle(t *testing.T) {
	llmc := &fakeLLM{results: []llm.InferenceResult{{Text: "planning done"}}}
	ctrl, states, events := newTestAppController(t, llmc)

	require.NoError(t, ctrl.GenerateAll(context.Background()))

	final := states.Get()
	assert.False(t, final.ShouldBeGenerating)
	assert.Equal(t, agentsession.DevStateIdle, final.CurrentDevState)
	assert.Contains(t, events.types(), "phase_generating")
}

func TestAppControllerGenerateAllIsNoOpWhileAlreadyGenerating(t *testing.T) {
	llmc := &fakeLLM{results: []llm.InferenceResult{{Text: "x"}}}
	ctrl, states, _ := newTestAppController(t, llmc)

	states.UpdateField(context.Background(), func(s *agentsession.AppState) {
		s.ShouldBeGenerating = true
		s.CurrentDevState = agentsession.DevStatePhaseImplementing
	})

	require.NoError(t, ctrl.GenerateAll(context.Background()))
	assert.Equal(t, 0, llmc.calls, "a second generate_all while one is in flight must not call the model")
}

func TestAppControllerStopGenerationCancelsAndClearsFlag(t *testing.T) {
	ctrl, states, _ := newTestAppController(t, &fakeLLM{})
	states.UpdateField(context.Background(), func(s *agentsession.AppState) {
		s.ShouldBeGenerating = true
	})

	require.NoError(t, ctrl.StopGeneration(context.Background()))

	assert.False(t, states.Get().ShouldBeGenerating)
}

func TestAppControllerUserSuggestionQueuesPendingInput(t *testing.T) {
	ctrl, states, _ := newTestAppController(t, &fakeLLM{})

	require.NoError(t, ctrl.UserSuggestion(context.Background(), "add dark mode"))

	assert.Equal(t, []string{"add dark mode"}, states.Get().PendingUserInputs)
}

func TestAppControllerResumeGenerationIsNoOpWhileAlreadyGenerating(t *testing.T) {
	ctrl, states, _ := newTestAppController(t, &fakeLLM{})
	states.UpdateField(context.Background(), func(s *agentsession.AppState) {
		s.ShouldBeGenerating = true
	})

	require.NoError(t, ctrl.ResumeGeneration(context.Background()))
}

func TestAppControllerResumeGenerationContinuesInterruptedPhaseWithoutReplanning(t *testing.T) {
	llmc := &fakeLLM{results: []llm.InferenceResult{{Text: "step one redone"}, {Text: "step two"}}}
	ctrl, states, events := newTestAppController(t, llmc)

	blueprint := &agentsession.Blueprint{
		Summary: "original plan",
		Steps: []agentsession.BlueprintStep{
			{Name: "step-one", Description: "do step one"},
			{Name: "step-two", Description: "do step two"},
		},
	}
	states.UpdateField(context.Background(), func(s *agentsession.AppState) {
		s.CurrentDevState = agentsession.DevStatePhaseImplementing
		s.Blueprint = blueprint
		// simulates a cancellation mid-step-one, left with completed=false per §4.9
		s.GeneratedPhases = []agentsession.PhaseRecord{{Name: "step-one", Completed: false}}
	})

	require.NoError(t, ctrl.ResumeGeneration(context.Background()))

	final := states.Get()
	assert.Equal(t, agentsession.DevStateIdle, final.CurrentDevState)
	assert.False(t, final.ShouldBeGenerating)
	require.NotNil(t, final.Blueprint)
	assert.Equal(t, "original plan", final.Blueprint.Summary, "resuming must not replace the in-progress blueprint")
	require.Len(t, final.GeneratedPhases, 2, "the interrupted phase must be retried, not skipped")
	assert.True(t, final.GeneratedPhases[0].Completed)
	assert.True(t, final.GeneratedPhases[1].Completed)
	assert.NotContains(t, events.types(), "phase_generating", "resuming mid-implementation must not re-enter PHASE_GENERATING")
}

func TestAppControllerCaptureScreenshotReportsNotImplemented(t *testing.T) {
	ctrl, _, _ := newTestAppController(t, &fakeLLM{})

	_, err := ctrl.CaptureScreenshot(context.Background())
	assert.Error(t, err)
}

func TestAppControllerProjectTypeReportsApp(t *testing.T) {
	ctrl, _, _ := newTestAppController(t, &fakeLLM{})
	assert.Equal(t, agentsession.ProjectTypeApp, ctrl.ProjectType())
}
