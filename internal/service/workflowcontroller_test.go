package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/CodeForge/internal/adapter/scaffoldstatic"
	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/service/tools"
	"github.com/Strob0t/CodeForge/internal/vcs"
)

func newTestWorkflowController(t *testing.T, llmc llm.Client) (*WorkflowController, *StateStore[agentsession.WorkflowState], *FileManager[agentsession.WorkflowState], *fakeBroadcaster) {
	t.Helper()
	getBase, setBase := workflowBaseAccessors()
	initial := agentsession.WorkflowState{
		BaseState: agentsession.BaseState{
			SessionID:         "sess-1",
			Query:             "send a slack message on a schedule",
			GeneratedFilesMap: make(map[string]agentsession.FileRecord),
		},
		DeploymentStatus: agentsession.DeploymentStatusIdle,
	}
	states := NewStateStore("sess-1", string(agentsession.ProjectTypeWorkflow), initial, nil, discardLogger())
	conv := NewConversationStore(context.Background(), "sess-1", nil, discardLogger())
	files := NewFileManager(states, vcs.New(), getWorkflowFiles, setWorkflowFiles)
	cancel := NewCancellationController()
	registry := tools.NewRegistry()
	deployMgr := NewDeploymentManager[agentsession.WorkflowState]("sess-1", states, newFakeSandbox(), nil, nil, nil, 0, discardLogger(), getBase, setBase)
	events := &fakeBroadcaster{}

	ctrl := NewWorkflowController("sess-1", states, conv, files, cancel, registry, llmc, scaffoldstatic.NewProvider(), deployMgr, events, discardLogger())
	return ctrl, states, files, events
}

func TestWorkflowControllerGenerateAllCompletesWhenModelStopsCalling(t *testing.T) {
	llmc := &fakeLLM{results: []llm.InferenceResult{{Text: "done, no more tool calls"}}}
	ctrl, states, _, events := newTestWorkflowController(t, llmc)

	require.NoError(t, ctrl.GenerateAll(context.Background()))

	assert.False(t, states.Get().ShouldBeGenerating)
	assert.Contains(t, events.types(), "generation_started")
	assert.Contains(t, events.types(), "generation_completed")
}

func TestWorkflowControllerGenerateAllIsNoOpWhileAlreadyGenerating(t *testing.T) {
	llmc := &fakeLLM{results: []llm.InferenceResult{{Text: "x"}}}
	ctrl, states, _, _ := newTestWorkflowController(t, llmc)
	states.UpdateField(context.Background(), func(s *agentsession.WorkflowState) {
		s.ShouldBeGenerating = true
	})

	require.NoError(t, ctrl.GenerateAll(context.Background()))
	assert.Equal(t, 0, llmc.calls)
}

func TestWorkflowControllerStopGenerationCancelsToken(t *testing.T) {
	ctrl, _, _, _ := newTestWorkflowController(t, &fakeLLM{})
	runCtx, _ := ctrl.cancel.GetOrCreate(context.Background())
	require.NoError(t, ctrl.StopGeneration(context.Background()))
	assert.Error(t, runCtx.Err(), "the live token must be cancelled")
}

func TestWorkflowControllerRegenerateScaffoldIncludesDeclaredBindingsInWrangler(t *testing.T) {
	ctrl, states, files, _ := newTestWorkflowController(t, &fakeLLM{})

	_, err := files.SaveGeneratedFile(context.Background(), agentsession.FileRecord{
		FilePath:     "src/index.ts",
		FileContents: "export class MyWorkflow extends WorkflowEntrypoint {}",
	}, "seed workflow code")
	require.NoError(t, err)

	states.UpdateField(context.Background(), func(s *agentsession.WorkflowState) {
		s.WorkflowMetadata = &agentsession.WorkflowMetadata{
			Name: "scheduled-slack-notifier",
			Resources: map[string]agentsession.ResourceBinding{
				"CACHE": {Name: "CACHE", Kind: agentsession.ResourceKindKV, ID: "kv-id-1"},
			},
		}
	})

	require.NoError(t, ctrl.regenerateScaffold(context.Background()))

	rec, ok := files.GetGeneratedFile("wrangler.jsonc")
	require.True(t, ok)
	assert.Contains(t, rec.FileContents, "kv_namespaces")
	assert.Contains(t, rec.FileContents, "kv-id-1")
}

func TestWorkflowControllerProjectTypeReportsWorkflow(t *testing.T) {
	ctrl, _, _, _ := newTestWorkflowController(t, &fakeLLM{})
	assert.Equal(t, agentsession.ProjectTypeWorkflow, ctrl.ProjectType())
}

func TestWorkflowControllerDeployWithoutDeployerRecordsFailedStatus(t *testing.T) {
	getBase, setBase := workflowBaseAccessors()
	initial := agentsession.WorkflowState{
		BaseState:        agentsession.BaseState{SessionID: "sess-1", GeneratedFilesMap: make(map[string]agentsession.FileRecord)},
		DeploymentStatus: agentsession.DeploymentStatusIdle,
	}
	states := NewStateStore("sess-1", string(agentsession.ProjectTypeWorkflow), initial, nil, discardLogger())
	conv := NewConversationStore(context.Background(), "sess-1", nil, discardLogger())
	files := NewFileManager(states, vcs.New(), getWorkflowFiles, setWorkflowFiles)
	deployMgr := NewDeploymentManager[agentsession.WorkflowState]("sess-1", states, newFakeSandbox(), nil, nil, nil, 0, discardLogger(), getBase, setBase)
	ctrl := NewWorkflowController("sess-1", states, conv, files, NewCancellationController(), tools.NewRegistry(), &fakeLLM{}, scaffoldstatic.NewProvider(), deployMgr, &fakeBroadcaster{}, discardLogger())

	_, err := ctrl.Deploy(context.Background())
	require.Error(t, err)

	final := states.Get()
	assert.Equal(t, agentsession.DeploymentStatusFailed, final.DeploymentStatus)
	assert.NotEmpty(t, final.DeploymentError)
}
