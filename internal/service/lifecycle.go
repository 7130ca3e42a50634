package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/domain/conversation"
	"github.com/Strob0t/CodeForge/internal/port/broadcast"
	"github.com/Strob0t/CodeForge/internal/port/cache"
	"github.com/Strob0t/CodeForge/internal/port/database"
	"github.com/Strob0t/CodeForge/internal/port/deploy"
	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/port/sandbox"
	"github.com/Strob0t/CodeForge/internal/port/scaffold"
	"github.com/Strob0t/CodeForge/internal/port/secrets"
	"github.com/Strob0t/CodeForge/internal/service/tools"
	"github.com/Strob0t/CodeForge/internal/vcs"
)

// Collaborators bundles every external port the Session Lifecycle (C16)
// needs to assemble a session. A nil DB, Previews, Deployer or Secrets
// disables the concern it backs (e.g. a nil DB means an in-memory-only
// session with no durable mirror) — the same optional-collaborator shape
// StateStore and ConversationStore already use for db. Scaffold is
// required: Initialize returns an error without it. Sandbox, LLM and
// Events are not checked for nil and are called unconditionally.
type Collaborators struct {
	DB       database.Store
	Sandbox  sandbox.Client
	Previews cache.Cache
	Deployer deploy.Client
	Secrets  secrets.Provider
	LLM      llm.Client
	Scaffold scaffold.Provider

	// Events builds the broadcaster a session's controller pushes its
	// eventtype frames through. It is a factory rather than a single
	// shared instance because broadcast.Broadcaster carries no session
	// id of its own (§4.13/§6): the composition root scopes each
	// session's broadcaster to that session's own Hub connections (and,
	// when a cross-instance relay is configured, that session's relay
	// subject) by closing over sessionID here.
	Events func(sessionID string) broadcast.Broadcaster

	// PreviewWaitTimeout bounds how long DeploymentManager.WaitForPreview
	// polls the sandbox before giving up, independent of whatever
	// deadline (if any) the caller's own context carries. Zero disables
	// the bound and leaves the caller's context as the only limit.
	PreviewWaitTimeout time.Duration
}

// InitializeArgs carries the caller-supplied inputs to Initialize (§4.15).
type InitializeArgs struct {
	AgentID          string
	UserID           string
	ProjectType      agentsession.ProjectType
	Query            string
	Hostname         string
	InferenceContext string
	TemplateName     string
	WorkflowMetadata *agentsession.WorkflowMetadata
}

// Lifecycle is the Session Lifecycle (C16): builds a brand-new Session
// from InitializeArgs, or rebuilds one from durable state on a cold start.
// Grounded on the teacher's own composition-root wiring (internal/app or
// equivalent constructor chains that thread one concrete client set
// through every service), generalized here into a single reusable
// constructor since a session is built more than once per process
// lifetime (every new session, every rehydration) rather than once at
// startup.
type Lifecycle struct {
	deps Collaborators
	log  *slog.Logger
}

// NewLifecycle returns a Lifecycle wired to deps.
func NewLifecycle(deps Collaborators, log *slog.Logger) *Lifecycle {
	return &Lifecycle{deps: deps, log: log}
}

// Initialize runs the six-step contract of §4.15: allocate identity,
// assemble initial state, commit the rendered scaffold as the session's
// first VCS commit, save it through the File Manager, deploy it to a
// fresh sandbox instance, and return the assembled Session. redeploy is
// always false and clearLogs is always true for this initial deploy, per
// spec.
func (l *Lifecycle) Initialize(ctx context.Context, args InitializeArgs) (*Session, error) {
	if !args.ProjectType.Valid() {
		return nil, fmt.Errorf("lifecycle: invalid project type %q", args.ProjectType)
	}

	sessionID := uuid.NewString()
	log := l.log.With("agent_id", args.AgentID, "session_id", sessionID, "user_id", args.UserID)

	projectName, err := newProjectName(args.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}

	now := time.Now()
	base := agentsession.BaseState{
		ProjectName:       projectName,
		Query:             args.Query,
		SessionID:         sessionID,
		Hostname:          args.Hostname,
		TemplateName:      args.TemplateName,
		AgentMode:         agentsession.AgentModeSmart,
		GeneratedFilesMap: make(map[string]agentsession.FileRecord),
		CommandsHistory:   nil,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	conv := NewConversationStore(ctx, sessionID, l.deps.DB, log)
	if args.InferenceContext != "" {
		conv.AddMessage(ctx, conversation.Message{
			ConversationID: sessionID + "-inference-context",
			Role:            conversation.RoleSystem,
			Content:         args.InferenceContext,
		})
	}

	cancel := NewCancellationController()
	plugins := NewPluginManager(sessionID, log)

	vcsStore := vcs.New()
	if l.deps.DB != nil {
		vcsStore.SetPersistence(l.deps.DB, sessionID, log)
	}

	var dispatcher *Dispatcher
	switch args.ProjectType {
	case agentsession.ProjectTypeApp:
		dispatcher, err = l.initializeApp(ctx, sessionID, base, args, vcsStore, conv, cancel, plugins, log)
	case agentsession.ProjectTypeWorkflow:
		dispatcher, err = l.initializeWorkflow(ctx, sessionID, base, args, vcsStore, conv, cancel, plugins, log)
	}
	if err != nil {
		return nil, err
	}

	if err := plugins.OnInitialize(ctx); err != nil {
		log.Warn("lifecycle: onInitialize hook error", "error", err)
	}

	return &Session{
		ID:       sessionID,
		Dispatch: dispatcher,
		Conv:     conv,
		Cancel:   cancel,
		Plugins:  plugins,
		VCS:      vcsStore,
		Log:      log,
	}, nil
}

func (l *Lifecycle) initializeApp(
	ctx context.Context,
	sessionID string,
	base agentsession.BaseState,
	args InitializeArgs,
	vcsStore *vcs.Store,
	conv *ConversationStore,
	cancel *CancellationController,
	plugins *PluginManager,
	log *slog.Logger,
) (*Dispatcher, error) {
	getBase, setBase := appBaseAccessors()

	initial := agentsession.AppState{BaseState: base, CurrentDevState: agentsession.DevStateIdle}

	scaffoldResult, err := l.renderAndCommit(ctx, vcsStore, scaffold.Request{ProjectType: agentsession.ProjectTypeApp})
	if err != nil {
		return nil, err
	}
	initial.GeneratedFilesMap = fileRecordsFromScaffold(scaffoldResult.AllFiles)

	states := NewStateStore(sessionID, string(agentsession.ProjectTypeApp), initial, l.deps.DB, log)
	states.SetObservers(plugins, getBase)

	files := NewFileManager(states, vcsStore, getAppFiles, setAppFiles)
	deployMgr := NewDeploymentManager(sessionID, states, l.deps.Sandbox, l.deps.Previews, l.deps.Deployer, l.deps.Secrets, l.deps.PreviewWaitTimeout, log, getBase, setBase)
	deepDebug := NewDeepDebugAssistant(sessionID, states, l.deps.Sandbox, l.deps.LLM, log, getBase, setBase)

	toolDeps := buildToolDeps(files, deployMgr, deepDebug, conv, vcsStore, getBase, setBase, states)
	toolDeps.AlterBlueprint = func(ctx context.Context, summary string, steps []string) error {
		blueprintSteps := make([]agentsession.BlueprintStep, len(steps))
		for i, s := range steps {
			blueprintSteps[i] = agentsession.BlueprintStep{Name: fmt.Sprintf("step-%d", i+1), Description: s}
		}
		states.UpdateField(ctx, func(s *agentsession.AppState) {
			s.Blueprint = &agentsession.Blueprint{Summary: summary, Steps: blueprintSteps}
		})
		return nil
	}
	toolDeps.RegenerateFile = func(ctx context.Context, path, instructions string) error {
		rec, ok := files.GetGeneratedFile(path)
		if !ok {
			return fmt.Errorf("regenerate_file: %q not found", path)
		}
		rec.LastDiff = instructions
		_, err := files.SaveGeneratedFile(ctx, rec, fmt.Sprintf("regenerate %s: %s", path, instructions))
		return err
	}

	registry := tools.NewRegistry(append(tools.CommonDefinitions(toolDeps), tools.AppOnlyDefinitions(toolDeps)...)...)

	controller := NewAppController(sessionID, states, conv, cancel, registry, l.deps.LLM, deployMgr, l.deps.Events(sessionID), log)

	if _, err := files.SaveGeneratedFiles(ctx, fileRecordsToSlice(initial.GeneratedFilesMap), "initial scaffold"); err != nil {
		return nil, fmt.Errorf("lifecycle: save initial scaffold: %w", err)
	}

	if err := deployMgr.DeployToSandbox(ctx, scaffoldResult.AllFiles, false, "", true, DeploymentCallbacks{}); err != nil {
		log.Warn("lifecycle: initial sandbox deploy failed", "error", err)
	}

	dispatcher := NewDispatcher()
	if err := dispatcher.Attach(ctx, controller); err != nil {
		return nil, fmt.Errorf("lifecycle: attach controller: %w", err)
	}
	return dispatcher, nil
}

func (l *Lifecycle) initializeWorkflow(
	ctx context.Context,
	sessionID string,
	base agentsession.BaseState,
	args InitializeArgs,
	vcsStore *vcs.Store,
	conv *ConversationStore,
	cancel *CancellationController,
	plugins *PluginManager,
	log *slog.Logger,
) (*Dispatcher, error) {
	getBase, setBase := workflowBaseAccessors()

	initial := agentsession.WorkflowState{BaseState: base, DeploymentStatus: agentsession.DeploymentStatusIdle}
	if args.WorkflowMetadata != nil {
		md := *args.WorkflowMetadata
		initial.WorkflowMetadata = &md
	}

	scaffoldReq := scaffold.Request{ProjectType: agentsession.ProjectTypeWorkflow}
	if initial.WorkflowMetadata != nil {
		scaffoldReq.WorkflowName = initial.WorkflowMetadata.Name
		scaffoldReq.Metadata = initial.WorkflowMetadata
	}
	scaffoldResult, err := l.renderAndCommit(ctx, vcsStore, scaffoldReq)
	if err != nil {
		return nil, err
	}
	initial.GeneratedFilesMap = fileRecordsFromScaffold(scaffoldResult.AllFiles)

	states := NewStateStore(sessionID, string(agentsession.ProjectTypeWorkflow), initial, l.deps.DB, log)
	states.SetObservers(plugins, getBase)

	files := NewFileManager(states, vcsStore, getWorkflowFiles, setWorkflowFiles)
	deployMgr := NewDeploymentManager(sessionID, states, l.deps.Sandbox, l.deps.Previews, l.deps.Deployer, l.deps.Secrets, l.deps.PreviewWaitTimeout, log, getBase, setBase)
	deepDebug := NewDeepDebugAssistant(sessionID, states, l.deps.Sandbox, l.deps.LLM, log, getBase, setBase)

	toolDeps := buildToolDeps(files, deployMgr, deepDebug, conv, vcsStore, getBase, setBase, states)
	toolDeps.ConfigureWorkflowMetadata = func(ctx context.Context, jsonMetadata string) error {
		update, err := parseWorkflowMetadata(jsonMetadata)
		if err != nil {
			return err
		}
		states.UpdateField(ctx, func(s *agentsession.WorkflowState) {
			merged := update
			if s.WorkflowMetadata != nil {
				merged = s.WorkflowMetadata.Merge(update)
			}
			s.WorkflowMetadata = &merged
		})
		return nil
	}

	registry := tools.NewRegistry(append(tools.CommonDefinitions(toolDeps), tools.WorkflowOnlyDefinitions(toolDeps)...)...)

	controller := NewWorkflowController(sessionID, states, conv, files, cancel, registry, l.deps.LLM, l.deps.Scaffold, deployMgr, l.deps.Events(sessionID), log)

	if _, err := files.SaveGeneratedFiles(ctx, fileRecordsToSlice(initial.GeneratedFilesMap), "initial scaffold"); err != nil {
		return nil, fmt.Errorf("lifecycle: save initial scaffold: %w", err)
	}

	if err := deployMgr.DeployToSandbox(ctx, scaffoldResult.AllFiles, false, "", true, DeploymentCallbacks{}); err != nil {
		log.Warn("lifecycle: initial sandbox deploy failed", "error", err)
	}

	dispatcher := NewDispatcher()
	if err := dispatcher.Attach(ctx, controller); err != nil {
		return nil, fmt.Errorf("lifecycle: attach controller: %w", err)
	}
	return dispatcher, nil
}

// renderAndCommit renders req through the Scaffold Provider and commits
// the result as the session's first VCS revision.
func (l *Lifecycle) renderAndCommit(ctx context.Context, vcsStore *vcs.Store, req scaffold.Request) (scaffold.Result, error) {
	if l.deps.Scaffold == nil {
		return scaffold.Result{}, fmt.Errorf("lifecycle: no scaffold provider configured")
	}
	result, err := l.deps.Scaffold.Render(req)
	if err != nil {
		return scaffold.Result{}, fmt.Errorf("lifecycle: render scaffold: %w", err)
	}
	vcsStore.Commit(ctx, result.AllFiles, "initial scaffold", time.Now())
	return result, nil
}

// Rehydrate rebuilds a Session from durable state on a cold start (§4.15).
// Durable session state and the durable VCS mirror drive reconstruction;
// in-memory-only caches (the cancellation token, the deep-debug join, any
// preview URL cache entry, pending images) are never restored — they
// start empty, exactly as if the session had just been created.
func (l *Lifecycle) Rehydrate(ctx context.Context, sessionID, agentID, userID string) (*Session, error) {
	if l.deps.DB == nil {
		return nil, fmt.Errorf("lifecycle: rehydrate requires a durable store")
	}
	log := l.log.With("agent_id", agentID, "session_id", sessionID, "user_id", userID)

	projectType, data, err := l.deps.DB.LoadSessionState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load session state: %w", err)
	}

	vcsStore := vcs.New()
	vcsStore.SetPersistence(l.deps.DB, sessionID, log)
	rows, err := l.deps.DB.LoadVCSObjects(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load vcs objects: %w", err)
	}
	head, _, err := l.deps.DB.LoadHead(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load vcs head: %w", err)
	}
	if err := vcsStore.Restore(rows, head); err != nil {
		return nil, fmt.Errorf("lifecycle: restore vcs: %w", err)
	}

	conv := NewConversationStore(ctx, sessionID, l.deps.DB, log)
	cancel := NewCancellationController()
	plugins := NewPluginManager(sessionID, log)

	var dispatcher *Dispatcher
	switch agentsession.ProjectType(projectType) {
	case agentsession.ProjectTypeApp:
		dispatcher, err = l.attachApp(sessionID, data, vcsStore, conv, cancel, plugins, log)
	case agentsession.ProjectTypeWorkflow:
		dispatcher, err = l.attachWorkflow(sessionID, data, vcsStore, conv, cancel, plugins, log)
	default:
		return nil, fmt.Errorf("lifecycle: unknown persisted project type %q", projectType)
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:       sessionID,
		Dispatch: dispatcher,
		Conv:     conv,
		Cancel:   cancel,
		Plugins:  plugins,
		VCS:      vcsStore,
		Log:      log,
	}, nil
}

func (l *Lifecycle) attachApp(
	sessionID string,
	data []byte,
	vcsStore *vcs.Store,
	conv *ConversationStore,
	cancel *CancellationController,
	plugins *PluginManager,
	log *slog.Logger,
) (*Dispatcher, error) {
	initial, err := unmarshalAppState(data)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: unmarshal app state: %w", err)
	}
	getBase, setBase := appBaseAccessors()

	states := NewStateStore(sessionID, string(agentsession.ProjectTypeApp), initial, l.deps.DB, log)
	states.SetObservers(plugins, getBase)

	files := NewFileManager(states, vcsStore, getAppFiles, setAppFiles)
	deployMgr := NewDeploymentManager(sessionID, states, l.deps.Sandbox, l.deps.Previews, l.deps.Deployer, l.deps.Secrets, l.deps.PreviewWaitTimeout, log, getBase, setBase)
	deepDebug := NewDeepDebugAssistant(sessionID, states, l.deps.Sandbox, l.deps.LLM, log, getBase, setBase)

	toolDeps := buildToolDeps(files, deployMgr, deepDebug, conv, vcsStore, getBase, setBase, states)
	toolDeps.AlterBlueprint = func(ctx context.Context, summary string, steps []string) error {
		blueprintSteps := make([]agentsession.BlueprintStep, len(steps))
		for i, s := range steps {
			blueprintSteps[i] = agentsession.BlueprintStep{Name: fmt.Sprintf("step-%d", i+1), Description: s}
		}
		states.UpdateField(ctx, func(s *agentsession.AppState) {
			s.Blueprint = &agentsession.Blueprint{Summary: summary, Steps: blueprintSteps}
		})
		return nil
	}
	toolDeps.RegenerateFile = func(ctx context.Context, path, instructions string) error {
		rec, ok := files.GetGeneratedFile(path)
		if !ok {
			return fmt.Errorf("regenerate_file: %q not found", path)
		}
		rec.LastDiff = instructions
		_, err := files.SaveGeneratedFile(ctx, rec, fmt.Sprintf("regenerate %s: %s", path, instructions))
		return err
	}

	registry := tools.NewRegistry(append(tools.CommonDefinitions(toolDeps), tools.AppOnlyDefinitions(toolDeps)...)...)
	controller := NewAppController(sessionID, states, conv, cancel, registry, l.deps.LLM, deployMgr, l.deps.Events(sessionID), log)

	dispatcher := NewDispatcher()
	if err := dispatcher.Attach(context.Background(), controller); err != nil {
		return nil, fmt.Errorf("lifecycle: attach controller: %w", err)
	}
	return dispatcher, nil
}

func (l *Lifecycle) attachWorkflow(
	sessionID string,
	data []byte,
	vcsStore *vcs.Store,
	conv *ConversationStore,
	cancel *CancellationController,
	plugins *PluginManager,
	log *slog.Logger,
) (*Dispatcher, error) {
	initial, err := unmarshalWorkflowState(data)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: unmarshal workflow state: %w", err)
	}
	getBase, setBase := workflowBaseAccessors()

	states := NewStateStore(sessionID, string(agentsession.ProjectTypeWorkflow), initial, l.deps.DB, log)
	states.SetObservers(plugins, getBase)

	files := NewFileManager(states, vcsStore, getWorkflowFiles, setWorkflowFiles)
	deployMgr := NewDeploymentManager(sessionID, states, l.deps.Sandbox, l.deps.Previews, l.deps.Deployer, l.deps.Secrets, l.deps.PreviewWaitTimeout, log, getBase, setBase)
	deepDebug := NewDeepDebugAssistant(sessionID, states, l.deps.Sandbox, l.deps.LLM, log, getBase, setBase)

	toolDeps := buildToolDeps(files, deployMgr, deepDebug, conv, vcsStore, getBase, setBase, states)
	toolDeps.ConfigureWorkflowMetadata = func(ctx context.Context, jsonMetadata string) error {
		update, err := parseWorkflowMetadata(jsonMetadata)
		if err != nil {
			return err
		}
		states.UpdateField(ctx, func(s *agentsession.WorkflowState) {
			merged := update
			if s.WorkflowMetadata != nil {
				merged = s.WorkflowMetadata.Merge(update)
			}
			s.WorkflowMetadata = &merged
		})
		return nil
	}

	registry := tools.NewRegistry(append(tools.CommonDefinitions(toolDeps), tools.WorkflowOnlyDefinitions(toolDeps)...)...)
	controller := NewWorkflowController(sessionID, states, conv, files, cancel, registry, l.deps.LLM, l.deps.Scaffold, deployMgr, l.deps.Events(sessionID), log)

	dispatcher := NewDispatcher()
	if err := dispatcher.Attach(context.Background(), controller); err != nil {
		return nil, fmt.Errorf("lifecycle: attach controller: %w", err)
	}
	return dispatcher, nil
}

// newProjectName derives a project name from templateName (if any) plus a
// short random suffix, validated against agentsession.ValidProjectName.
// Grounded on the teacher's deterministic-prefix-plus-random-suffix naming
// used for its own generated resource names, swapped to google/uuid as the
// randomness source since that is the dependency already in the module's
// require graph for session identity.
func newProjectName(templateName string) (string, error) {
	suffix := uuid.NewString()[:8]
	prefix := sanitizeProjectPrefix(templateName)
	name := prefix + "-" + suffix
	if len(name) > 50 {
		name = name[:50]
	}
	if !agentsession.ValidProjectName(name) {
		return "", fmt.Errorf("generated project name %q fails validation", name)
	}
	return name, nil
}

func sanitizeProjectPrefix(templateName string) string {
	const maxPrefix = 20
	out := make([]byte, 0, len(templateName))
	for _, r := range templateName {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, byte(r))
		case r >= 'A' && r <= 'Z':
			out = append(out, byte(r-'A'+'a')) //nolint:staticcheck // ASCII-only downcasing of a project name prefix.
		case r == ' ':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "project"
	}
	if len(out) > maxPrefix {
		out = out[:maxPrefix]
	}
	return string(out)
}

func fileRecordsFromScaffold(files map[string]string) map[string]agentsession.FileRecord {
	out := make(map[string]agentsession.FileRecord, len(files))
	for path, contents := range files {
		out[path] = agentsession.FileRecord{FilePath: path, FileContents: contents, FilePurpose: "scaffold"}
	}
	return out
}

func fileRecordsToSlice(m map[string]agentsession.FileRecord) []agentsession.FileRecord {
	out := make([]agentsession.FileRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	return out
}

func appBaseAccessors() (func(agentsession.AppState) agentsession.BaseState, func(*agentsession.AppState, agentsession.BaseState)) {
	return func(s agentsession.AppState) agentsession.BaseState { return s.BaseState },
		func(s *agentsession.AppState, b agentsession.BaseState) { s.BaseState = b }
}

func workflowBaseAccessors() (func(agentsession.WorkflowState) agentsession.BaseState, func(*agentsession.WorkflowState, agentsession.BaseState)) {
	return func(s agentsession.WorkflowState) agentsession.BaseState { return s.BaseState },
		func(s *agentsession.WorkflowState, b agentsession.BaseState) { s.BaseState = b }
}

func getAppFiles(s agentsession.AppState) map[string]agentsession.FileRecord { return s.GeneratedFilesMap }
func setAppFiles(s *agentsession.AppState, m map[string]agentsession.FileRecord) {
	s.GeneratedFilesMap = m
}

func getWorkflowFiles(s agentsession.WorkflowState) map[string]agentsession.FileRecord {
	return s.GeneratedFilesMap
}
func setWorkflowFiles(s *agentsession.WorkflowState, m map[string]agentsession.FileRecord) {
	s.GeneratedFilesMap = m
}

func unmarshalAppState(data []byte) (agentsession.AppState, error) {
	var s agentsession.AppState
	err := json.Unmarshal(data, &s)
	return s, err
}

func unmarshalWorkflowState(data []byte) (agentsession.WorkflowState, error) {
	var s agentsession.WorkflowState
	err := json.Unmarshal(data, &s)
	return s, err
}

func parseWorkflowMetadata(raw string) (agentsession.WorkflowMetadata, error) {
	var md agentsession.WorkflowMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return agentsession.WorkflowMetadata{}, fmt.Errorf("configure_workflow_metadata: invalid metadata: %w", err)
	}
	return md, nil
}

// buildToolDeps assembles the generic slice of tools.Deps shared by both
// project variants: file, deployment, deep-debug, conversation, and git
// wiring, all reachable through getBase/setBase closures regardless of
// which variant state T is. The variant-only fields (AlterBlueprint,
// RegenerateFile, ConfigureWorkflowMetadata) are left nil for the caller
// to fill in.
func buildToolDeps[T Cloneable[T]](
	files *FileManager[T],
	deployMgr *DeploymentManager[T],
	deepDebug *DeepDebugAssistant[T],
	conv *ConversationStore,
	vcsStore *vcs.Store,
	getBase func(T) agentsession.BaseState,
	setBase func(*T, agentsession.BaseState),
	states *StateStore[T],
) tools.Deps {
	return tools.Deps{
		GetFile: func(path string) (string, bool) {
			rec, ok := files.GetGeneratedFile(path)
			return rec.FileContents, ok
		},
		ListFiles: func() []string {
			recs := files.GetGeneratedFiles()
			out := make([]string, 0, len(recs))
			for p := range recs {
				out = append(out, p)
			}
			return out
		},
		SaveFile: func(ctx context.Context, path, contents, purpose, commitMessage string) error {
			_, err := files.SaveGeneratedFile(ctx, agentsession.FileRecord{FilePath: path, FileContents: contents, FilePurpose: purpose}, commitMessage)
			return err
		},
		GenerateFiles: func(ctx context.Context, fs map[string]string, commitMessage string) error {
			recs := make([]agentsession.FileRecord, 0, len(fs))
			for p, c := range fs {
				recs = append(recs, agentsession.FileRecord{FilePath: p, FileContents: c})
			}
			_, err := files.SaveGeneratedFiles(ctx, recs, commitMessage)
			return err
		},
		DeleteFile: func(ctx context.Context, path, commitMessage string) error {
			return files.DeleteFiles(ctx, []string{path}, commitMessage)
		},
		DeployPreview: func(ctx context.Context, clearLogs bool) (string, error) {
			var url string
			err := deployMgr.DeployToSandbox(ctx, nil, false, "", clearLogs, DeploymentCallbacks{OnCompleted: func(u string) { url = u }})
			return url, err
		},
		WaitForPreview: deployMgr.WaitForPreview,
		WaitForGeneration: func(ctx context.Context) (bool, error) {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				if !getBase(states.Get()).ShouldBeGenerating {
					return true, nil
				}
				select {
				case <-ctx.Done():
					return false, nil
				case <-ticker.C:
				}
			}
		},
		GetLogs: deployMgr.GetLogs,
		FetchRuntimeErrors: func(ctx context.Context, clear bool) ([]string, error) {
			res, err := deployMgr.FetchRuntimeErrors(ctx, clear)
			if err != nil {
				return nil, err
			}
			if !res.Success {
				return nil, fmt.Errorf("fetch_runtime_errors: %s", res.Error)
			}
			return res.Errors, nil
		},
		RenameProject: deployMgr.RenameProject,
		QueueUserInput: func(ctx context.Context, text string) error {
			states.UpdateField(ctx, func(state *T) {
				b := getBase(*state)
				b.PendingUserInputs = append(b.PendingUserInputs, text)
				setBase(state, b)
			})
			return nil
		},
		StartDeepDebug: func(ctx context.Context, focusPaths []string) error {
			return deepDebug.Start(ctx, "deep_debugger tool invocation", focusPaths)
		},
		WaitForDebug: deepDebug.Wait,
		GitLog: func(ctx context.Context) ([]string, error) {
			return formatCommitLog(vcsStore, ""), nil
		},
		GitLogFile: func(ctx context.Context, path string) ([]string, error) {
			return formatCommitLog(vcsStore, path), nil
		},
	}
}

func formatCommitLog(vcsStore *vcs.Store, path string) []string {
	commits := vcsStore.AllCommits()
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		if path != "" {
			tree, ok := vcsStore.Tree(c.TreeHash)
			if !ok || !treeContains(tree, path) {
				continue
			}
		}
		out = append(out, fmt.Sprintf("%s %s", shortHash(c.Hash), c.Message))
	}
	return out
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func treeContains(t vcs.Tree, path string) bool {
	for _, e := range t.Entries {
		if e.Path == path {
			return true
		}
	}
	return false
}
