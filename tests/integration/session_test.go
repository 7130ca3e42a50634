// Package integration_test drives the Session Lifecycle (C16) and its
// assembled controllers end to end, the way _examples/Strob0t-CodeForge's
// own tests/integration/integration_test.go drives its HTTP handlers
// against a real store: here the "real" collaborators are the in-process
// ones (the State Store, Conversation Store, VCS Store, scaffoldstatic
// Provider) and only the genuinely external boundaries (sandbox, LLM,
// Cloudflare deploy, credentials) are faked, since those are the pieces a
// session has no way to exercise without a live network dependency.
package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/CodeForge/internal/adapter/scaffoldstatic"
	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/domain/conversation"
	"github.com/Strob0t/CodeForge/internal/port/broadcast"
	"github.com/Strob0t/CodeForge/internal/port/deploy"
	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/port/sandbox"
	"github.com/Strob0t/CodeForge/internal/port/secrets"
	"github.com/Strob0t/CodeForge/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes: the external boundaries no in-process component can stand in for ---

type stubLLM struct {
	mu      sync.Mutex
	results []llm.InferenceResult
	calls   int
}

func (s *stubLLM) ExecuteInference(context.Context, llm.InferenceRequest) (llm.InferenceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx], nil
}

type stubSandbox struct {
	mu           sync.Mutex
	instances    int
	writtenFiles map[string]map[string]string
}

func newStubSandbox() *stubSandbox {
	return &stubSandbox{writtenFiles: make(map[string]map[string]string)}
}

func (s *stubSandbox) CreateInstance(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances++
	id := "instance-1"
	s.writtenFiles[id] = make(map[string]string)
	return id, nil
}

func (s *stubSandbox) GetFiles(context.Context, string, []string) (sandbox.FilesResult, error) {
	return sandbox.FilesResult{Result: sandbox.Result{Success: true}}, nil
}

func (s *stubSandbox) WriteFiles(_ context.Context, instanceID string, files map[string]string) (sandbox.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, c := range files {
		s.writtenFiles[instanceID][p] = c
	}
	return sandbox.Result{Success: true}, nil
}

func (s *stubSandbox) ExecuteCommands(context.Context, string, []string, int) (sandbox.Result, error) {
	return sandbox.Result{Success: true}, nil
}

func (s *stubSandbox) GetLogs(context.Context, string, bool, int) (sandbox.LogsResult, error) {
	return sandbox.LogsResult{Result: sandbox.Result{Success: true}}, nil
}

func (s *stubSandbox) RunStaticAnalysis(context.Context, string, []string) (sandbox.AnalysisResult, error) {
	return sandbox.AnalysisResult{Result: sandbox.Result{Success: true}}, nil
}

func (s *stubSandbox) FetchRuntimeErrors(context.Context, string, bool) (sandbox.RuntimeErrorsResult, error) {
	return sandbox.RuntimeErrorsResult{Result: sandbox.Result{Success: true}}, nil
}

func (s *stubSandbox) UpdateProjectName(context.Context, string, string) (sandbox.Result, error) {
	return sandbox.Result{Success: true}, nil
}

func (s *stubSandbox) Deploy(context.Context, string) (sandbox.DeployResult, error) {
	return sandbox.DeployResult{Result: sandbox.Result{Success: true}, PreviewURL: "https://preview.example.dev"}, nil
}

func (s *stubSandbox) PreviewStatus(context.Context, string) (sandbox.PreviewStatusResult, error) {
	return sandbox.PreviewStatusResult{Result: sandbox.Result{Success: true}, Ready: true}, nil
}

type stubBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *stubBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, eventType)
}

func (b *stubBroadcaster) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.types...)
}

var _ broadcast.Broadcaster = (*stubBroadcaster)(nil)

type stubDeployer struct {
	result deploy.Result
	err    error
}

func (d *stubDeployer) Deploy(context.Context, deploy.Request) (deploy.Result, error) {
	if d.err != nil {
		return deploy.Result{}, d.err
	}
	return d.result, nil
}

type noCredentials struct{}

func (noCredentials) GetCloudflareCredentials(context.Context, string) (*secrets.CloudflareCredentials, error) {
	return nil, nil
}

func newCollaborators(events *stubBroadcaster, llmResults []llm.InferenceResult) service.Collaborators {
	return service.Collaborators{
		Sandbox:  newStubSandbox(),
		LLM:      &stubLLM{results: llmResults},
		Scaffold: scaffoldstatic.NewProvider(),
		Secrets:  noCredentials{},
		Events:   func(string) broadcast.Broadcaster { return events },
	}
}

func decodeState(t *testing.T, raw json.RawMessage, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, out))
}

// Scenario 1: happy-path app generation, one phase, preview.
func TestHappyPathAppGenerationProducesPreviewAndCompletesGeneration(t *testing.T) {
	events := &stubBroadcaster{}
	deps := newCollaborators(events, []llm.InferenceResult{{Text: "planned"}})
	lc := service.NewLifecycle(deps, discardLogger())

	sess, err := lc.Initialize(context.Background(), service.InitializeArgs{
		ProjectType: agentsession.ProjectTypeApp,
		Query:       "make a counter",
	})
	require.NoError(t, err)

	require.NoError(t, sess.Dispatch.GenerateAll(context.Background()))

	raw, err := sess.Dispatch.State()
	require.NoError(t, err)

	var state agentsession.AppState
	decodeState(t, raw, &state)

	assert.Contains(t, events.snapshot(), "phase_generating")
	assert.False(t, state.ShouldBeGenerating)
}

// Scenario 2: stop_generation on a freshly initialized app session, with
// no generation in flight, returns no error and leaves it not generating.
func TestStopGenerationOnIdleAppSessionReturnsWithoutError(t *testing.T) {
	events := &stubBroadcaster{}
	deps := newCollaborators(events, []llm.InferenceResult{{Text: "planned"}})
	lc := service.NewLifecycle(deps, discardLogger())

	sess, err := lc.Initialize(context.Background(), service.InitializeArgs{
		ProjectType: agentsession.ProjectTypeApp,
		Query:       "make a counter",
	})
	require.NoError(t, err)

	require.NoError(t, sess.Dispatch.StopGeneration(context.Background()))

	raw, err := sess.Dispatch.State()
	require.NoError(t, err)
	var state agentsession.AppState
	decodeState(t, raw, &state)
	assert.False(t, state.ShouldBeGenerating)
}

// Scenario 3: workflow metadata set ahead of generation renders its
// declared bindings into the regenerated wrangler.jsonc.
func TestWorkflowGenerationWithMetadataRegeneratesScaffoldBindings(t *testing.T) {
	events := &stubBroadcaster{}
	deps := newCollaborators(events, []llm.InferenceResult{{Text: "done"}})
	lc := service.NewLifecycle(deps, discardLogger())

	sess, err := lc.Initialize(context.Background(), service.InitializeArgs{
		ProjectType: agentsession.ProjectTypeWorkflow,
		Query:       "send a slack message on a schedule",
		WorkflowMetadata: &agentsession.WorkflowMetadata{
			Name: "scheduled-slack-notifier",
			Resources: map[string]agentsession.ResourceBinding{
				"CACHE": {Name: "CACHE", Kind: agentsession.ResourceKindKV, ID: "kv-id-1"},
			},
		},
	})
	require.NoError(t, err)

	raw, err := sess.Dispatch.State()
	require.NoError(t, err)
	var state agentsession.WorkflowState
	decodeState(t, raw, &state)
	require.NotNil(t, state.WorkflowMetadata)
	assert.Equal(t, "scheduled-slack-notifier", state.WorkflowMetadata.Name)

	rec, ok := state.GeneratedFilesMap["wrangler.jsonc"]
	require.True(t, ok, "Initialize must render and commit the scaffold, including wrangler.jsonc")
	assert.Contains(t, rec.FileContents, "kv_namespaces")
	assert.Contains(t, rec.FileContents, "kv-id-1")
}

// Scenario 4: deploying without a configured deployer fails and records
// deploymentStatus=failed with a non-empty deploymentError.
func TestWorkflowDeployWithoutCredentialsReportsFailure(t *testing.T) {
	events := &stubBroadcaster{}
	deps := newCollaborators(events, []llm.InferenceResult{{Text: "done"}})
	lc := service.NewLifecycle(deps, discardLogger())

	sess, err := lc.Initialize(context.Background(), service.InitializeArgs{
		ProjectType: agentsession.ProjectTypeWorkflow,
		Query:       "send a slack message on a schedule",
	})
	require.NoError(t, err)

	_, err = sess.Dispatch.Deploy(context.Background())
	require.Error(t, err)

	raw, err := sess.Dispatch.State()
	require.NoError(t, err)
	var state agentsession.WorkflowState
	decodeState(t, raw, &state)
	assert.Equal(t, agentsession.DeploymentStatusFailed, state.DeploymentStatus)
	assert.NotEmpty(t, state.DeploymentError)
}

// Scenario 5: clear_conversation empties the running log but leaves the
// full log, and any later restore, untouched.
func TestClearConversationEmptiesRunningLogLeavesFullLogIntact(t *testing.T) {
	events := &stubBroadcaster{}
	deps := newCollaborators(events, []llm.InferenceResult{{Text: "done"}})
	lc := service.NewLifecycle(deps, discardLogger())

	sess, err := lc.Initialize(context.Background(), service.InitializeArgs{
		ProjectType: agentsession.ProjectTypeApp,
		Query:       "make a counter",
	})
	require.NoError(t, err)

	for _, id := range []string{"m1", "m2", "m3"} {
		sess.Conv.AddMessage(context.Background(), conversation.Message{
			ConversationID: id, Role: conversation.RoleUser, Content: id,
		})
	}

	sess.Conv.ClearCompact(context.Background())

	st := sess.Conv.GetState()
	assert.Empty(t, st.Running.Messages())
	require.Len(t, st.Full.Messages(), 3)
}

// Scenario 6: saving the same generated file contents twice produces no
// second content change — the tree after the redundant commit equals the
// tree after the first.
func TestIdempotentFileCommitLeavesContentsUnchangedOnSecondIdenticalSave(t *testing.T) {
	events := &stubBroadcaster{}
	deps := newCollaborators(events, []llm.InferenceResult{{Text: "done"}})
	lc := service.NewLifecycle(deps, discardLogger())

	sess, err := lc.Initialize(context.Background(), service.InitializeArgs{
		ProjectType: agentsession.ProjectTypeApp,
		Query:       "make a counter",
	})
	require.NoError(t, err)

	raw, err := sess.Dispatch.State()
	require.NoError(t, err)
	var state agentsession.AppState
	decodeState(t, raw, &state)
	scaffold := make(map[string]string, len(state.GeneratedFilesMap))
	for path, rec := range state.GeneratedFilesMap {
		scaffold[path] = rec.FileContents
	}
	scaffold["src/App.tsx"] = "export default function App() { return null }"

	first := sess.VCS.Commit(context.Background(), scaffold, "add App", fixedTime())
	second := sess.VCS.Commit(context.Background(), scaffold, "add App again", fixedTime())

	assert.Equal(t, first.TreeHash, second.TreeHash, "resubmitting identical file contents must not change the tree")
}

func fixedTime() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}
