package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/CodeForge/internal/adapter/scaffoldstatic"
	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/broadcast"
	"github.com/Strob0t/CodeForge/internal/port/llm"
)

func newTestCollaborators(db *fakeDB) Collaborators {
	return Collaborators{
		DB:       db,
		Sandbox:  newFakeSandbox(),
		LLM:      &fakeLLM{results: []llm.InferenceResult{{Text: "ok"}}},
		Scaffold: scaffoldstatic.NewProvider(),
		Events:   func(string) broadcast.Broadcaster { return &fakeBroadcaster{} },
	}
}

func TestLifecycleInitializeRejectsInvalidProjectType(t *testing.T) {
	lc := NewLifecycle(newTestCollaborators(newFakeDB()), discardLogger())

	_, err := lc.Initialize(context.Background(), InitializeArgs{ProjectType: "bogus"})
	assert.Error(t, err)
}

func TestLifecycleInitializeAppSeedsScaffoldAndDeploysInitialSandbox(t *testing.T) {
	lc := NewLifecycle(newTestCollaborators(newFakeDB()), discardLogger())

	sess, err := lc.Initialize(context.Background(), InitializeArgs{
		ProjectType: agentsession.ProjectTypeApp,
		Query:       "make a counter",
	})
	require.NoError(t, err)
	require.NotNil(t, sess)

	raw, err := sess.Dispatch.State()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"projectName"`)
	assert.NotEmpty(t, sess.VCS.AllCommits())
}

func TestLifecycleInitializeWorkflowWithMetadataRendersBindings(t *testing.T) {
	lc := NewLifecycle(newTestCollaborators(newFakeDB()), discardLogger())

	sess, err := lc.Initialize(context.Background(), InitializeArgs{
		ProjectType: agentsession.ProjectTypeWorkflow,
		Query:       "send a slack message on a schedule",
		WorkflowMetadata: &agentsession.WorkflowMetadata{
			Name: "scheduled-slack-notifier",
		},
	})
	require.NoError(t, err)

	raw, err := sess.Dispatch.State()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "scheduled-slack-notifier")
}

func TestLifecycleInitializeSeedsInferenceContextIntoConversation(t *testing.T) {
	lc := NewLifecycle(newTestCollaborators(newFakeDB()), discardLogger())

	sess, err := lc.Initialize(context.Background(), InitializeArgs{
		ProjectType:      agentsession.ProjectTypeApp,
		Query:            "make a counter",
		InferenceContext: "the user is a beginner",
	})
	require.NoError(t, err)

	st := sess.Conv.GetState()
	require.Len(t, st.Full.Messages(), 1)
	assert.Equal(t, "the user is a beginner", st.Full.Messages()[0].Content)
}

func TestLifecycleRehydrateWithoutDurableStoreErrors(t *testing.T) {
	lc := NewLifecycle(Collaborators{}, discardLogger())

	_, err := lc.Rehydrate(context.Background(), "sess-1", "agent-1", "user-1")
	assert.Error(t, err)
}

func TestLifecycleRehydrateRestoresAppSessionFromDurableState(t *testing.T) {
	db := newFakeDB()
	lc := NewLifecycle(newTestCollaborators(db), discardLogger())

	original, err := lc.Initialize(context.Background(), InitializeArgs{
		ProjectType: agentsession.ProjectTypeApp,
		Query:       "make a counter",
	})
	require.NoError(t, err)
	sessionID := original.ID

	rehydrated, err := lc.Rehydrate(context.Background(), sessionID, "agent-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, sessionID, rehydrated.ID)
	assert.Equal(t, agentsession.ProjectTypeApp, rehydrated.Dispatch.ProjectType())
	assert.Equal(t, len(original.VCS.AllCommits()), len(rehydrated.VCS.AllCommits()))
}

func TestLifecycleRehydrateStartsWithEmptyInMemoryCachesPerSpec(t *testing.T) {
	db := newFakeDB()
	lc := NewLifecycle(newTestCollaborators(db), discardLogger())

	original, err := lc.Initialize(context.Background(), InitializeArgs{
		ProjectType: agentsession.ProjectTypeApp,
		Query:       "make a counter",
	})
	require.NoError(t, err)

	rehydrated, err := lc.Rehydrate(context.Background(), original.ID, "agent-1", "user-1")
	require.NoError(t, err)

	freshCtx, _ := rehydrated.Cancel.GetOrCreate(context.Background())
	assert.NoError(t, freshCtx.Err(), "a rehydrated session must start with a fresh, uncancelled token")
}
