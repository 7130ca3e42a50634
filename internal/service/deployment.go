package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/CodeForge/internal/concurrency"
	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/cache"
	"github.com/Strob0t/CodeForge/internal/port/deploy"
	"github.com/Strob0t/CodeForge/internal/port/sandbox"
	"github.com/Strob0t/CodeForge/internal/port/secrets"
)

// DeploymentCallbacks are the lifecycle hooks DeployToSandbox and
// DeployToCloudflare fire at well-defined points (§4.6). Any nil callback
// is skipped.
type DeploymentCallbacks struct {
	OnStarted             func()
	OnAfterSetupCommands  func()
	OnCompleted           func(previewURL string)
	OnError               func(err error)
	OnPreviewExpired      func()
}

func (cb DeploymentCallbacks) started() {
	if cb.OnStarted != nil {
		cb.OnStarted()
	}
}
func (cb DeploymentCallbacks) afterSetup() {
	if cb.OnAfterSetupCommands != nil {
		cb.OnAfterSetupCommands()
	}
}
func (cb DeploymentCallbacks) completed(url string) {
	if cb.OnCompleted != nil {
		cb.OnCompleted(url)
	}
}
func (cb DeploymentCallbacks) errored(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}
func (cb DeploymentCallbacks) previewExpired() {
	if cb.OnPreviewExpired != nil {
		cb.OnPreviewExpired()
	}
}

// dependencyCommandMarkers flags a bootstrap command as dependency-altering,
// triggering a package.json sync.
var dependencyCommandMarkers = []string{"install", " add ", "remove", "uninstall"}

func isDependencyCommand(cmd string) bool {
	for _, m := range dependencyCommandMarkers {
		if strings.Contains(cmd, m) {
			return true
		}
	}
	return false
}

// CloudflareDeployOptions carries the optional per-user credential override
// for DeployToCloudflare.
type CloudflareDeployOptions struct {
	UserID string
}

// DeploymentManager is the Deployment Manager (C7): sequences sandbox
// deploys, dependency sync, preview URL caching, and external-cloud
// deploys with lifecycle callbacks. Adapted from the teacher's
// internal/service/sandbox.go SandboxService lifecycle shape (create,
// configure, track by id), generalized from Docker-CLI exec calls to the
// C8 sandbox.Client port. Serialization uses internal/concurrency.Pool,
// the same semaphore.Weighted(1) primitive the teacher's internal/git.Pool
// used to bound concurrent git operations.
type DeploymentManager[T Cloneable[T]] struct {
	sessionID          string
	states             *StateStore[T]
	sandbox            sandbox.Client
	previews           cache.Cache
	deployer           deploy.Client
	secrets            secrets.Provider
	pool               *concurrency.Pool
	previewWaitTimeout time.Duration
	log                *slog.Logger

	getBase func(T) agentsession.BaseState
	setBase func(*T, agentsession.BaseState)
}

// NewDeploymentManager returns a DeploymentManager. getBase/setBase let the
// manager reach BaseState fields (sandboxInstanceId, commandsHistory,
// lastPackageJson) inside whichever variant state T is. previewWaitTimeout
// bounds WaitForPreview independent of the caller's own context deadline;
// zero leaves the caller's context as the only bound.
func NewDeploymentManager[T Cloneable[T]](
	sessionID string,
	states *StateStore[T],
	sb sandbox.Client,
	previews cache.Cache,
	deployer deploy.Client,
	secretsProvider secrets.Provider,
	previewWaitTimeout time.Duration,
	log *slog.Logger,
	getBase func(T) agentsession.BaseState,
	setBase func(*T, agentsession.BaseState),
) *DeploymentManager[T] {
	return &DeploymentManager[T]{
		sessionID:          sessionID,
		states:             states,
		sandbox:            sb,
		previews:           previews,
		deployer:           deployer,
		secrets:            secretsProvider,
		pool:               concurrency.NewPool(1),
		previewWaitTimeout: previewWaitTimeout,
		log:                log,
		getBase:            getBase,
		setBase:            setBase,
	}
}

// DeployToSandbox sequences a sandbox deploy: ensure an instance, push
// files, run bootstrap commands once per instance, sync package.json if
// dependencies drifted, wait for preview, cache the URL. At most one
// deploy is in flight per session — overlapping calls queue on the pool.
func (d *DeploymentManager[T]) DeployToSandbox(ctx context.Context, files map[string]string, redeploy bool, commitMessage string, clearLogs bool, cb DeploymentCallbacks) error {
	return d.pool.Run(ctx, func() error {
		cb.started()

		base := d.getBase(d.states.Get())
		instanceID := base.SandboxInstanceID
		freshInstance := instanceID == ""
		if freshInstance {
			id, err := d.sandbox.CreateInstance(ctx)
			if err != nil {
				cb.errored(err)
				return fmt.Errorf("deployment: create instance: %w", err)
			}
			instanceID = id
			d.states.UpdateField(ctx, func(state *T) {
				b := d.getBase(*state)
				b.SandboxInstanceID = instanceID
				d.setBase(state, b)
			})
		}

		toPush := files
		if redeploy {
			toPush = make(map[string]string)
			for path, rec := range d.getBase(d.states.Get()).GeneratedFilesMap {
				toPush[path] = rec.FileContents
			}
		}
		if len(toPush) > 0 {
			res, err := d.sandbox.WriteFiles(ctx, instanceID, toPush)
			if err != nil {
				cb.errored(err)
				return fmt.Errorf("deployment: push files: %w", err)
			}
			if !res.Success {
				cb.errored(fmt.Errorf("deployment: push files: %s", res.Error))
				return fmt.Errorf("deployment: push files: %s", res.Error)
			}
		}
		if commitMessage != "" {
			d.log.Debug("deployment: sandbox push", "session_id", d.sessionID, "commit_message", commitMessage)
		}

		// Bootstrap commands run once per instance: only replay the
		// persisted history against a freshly created sandbox.
		if freshInstance && len(base.CommandsHistory) > 0 {
			if _, err := d.sandbox.ExecuteCommands(ctx, instanceID, base.CommandsHistory, 0); err != nil {
				cb.errored(err)
				return fmt.Errorf("deployment: execute bootstrap commands: %w", err)
			}
		}

		cb.afterSetup()
		if err := d.syncPackageJSON(ctx, instanceID); err != nil {
			d.log.Warn("deployment: package.json sync failed", "session_id", d.sessionID, "error", err)
		}

		if clearLogs {
			_, _ = d.sandbox.GetLogs(ctx, instanceID, true, 0)
		}

		previewURL, err := d.waitForPreview(ctx, instanceID)
		if err != nil {
			cb.errored(err)
			return fmt.Errorf("deployment: wait for preview: %w", err)
		}

		if d.previews != nil {
			_ = d.previews.Set(ctx, d.sessionID, []byte(previewURL), 30*time.Minute)
		}
		cb.completed(previewURL)
		return nil
	})
}

// AppendCommandsHistory records cmds into the persisted bootstrap command
// history (ordered, deduplicated, capped at MaxCommandsHistory), so a later
// DeployToSandbox against a freshly created instance replays them. Exposed
// for the C9 exec tool, which is the component that actually runs ad hoc
// commands against a live instance.
func (d *DeploymentManager[T]) AppendCommandsHistory(ctx context.Context, cmds []string) {
	d.states.UpdateField(ctx, func(state *T) {
		b := d.getBase(*state)
		seen := make(map[string]bool, len(b.CommandsHistory))
		for _, c := range b.CommandsHistory {
			seen[c] = true
		}
		history := append([]string(nil), b.CommandsHistory...)
		for _, c := range cmds {
			if seen[c] {
				continue
			}
			seen[c] = true
			history = append(history, c)
		}
		if len(history) > agentsession.MaxCommandsHistory {
			history = history[len(history)-agentsession.MaxCommandsHistory:]
		}
		b.CommandsHistory = history
		d.setBase(state, b)
	})
}

// syncPackageJSON reads package.json back from the sandbox and updates C3
// if the installed dependencies drifted from lastPackageJson.
func (d *DeploymentManager[T]) syncPackageJSON(ctx context.Context, instanceID string) error {
	res, err := d.sandbox.GetFiles(ctx, instanceID, []string{"package.json"})
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("deployment: read package.json: %s", res.Error)
	}
	contents, ok := res.Files["package.json"]
	if !ok {
		return nil
	}
	base := d.getBase(d.states.Get())
	if contents == base.LastPackageJSON {
		return nil
	}
	d.states.UpdateField(ctx, func(state *T) {
		b := d.getBase(*state)
		b.LastPackageJSON = contents
		d.setBase(state, b)
	})
	return nil
}

// ExecuteCommands runs cmds against the session's sandbox instance, records
// them in the bootstrap command history, and triggers a package.json sync
// if any command is dependency-altering (install/add/remove/uninstall).
// Used by the C9 exec tool.
func (d *DeploymentManager[T]) ExecuteCommands(ctx context.Context, cmds []string, timeout int) (sandbox.Result, error) {
	base := d.getBase(d.states.Get())
	if base.SandboxInstanceID == "" {
		return sandbox.Result{}, fmt.Errorf("deployment: no sandbox instance yet")
	}

	res, err := d.sandbox.ExecuteCommands(ctx, base.SandboxInstanceID, cmds, timeout)
	if err != nil {
		return res, err
	}
	d.AppendCommandsHistory(ctx, cmds)

	for _, c := range cmds {
		if isDependencyCommand(c) {
			if err := d.syncPackageJSON(ctx, base.SandboxInstanceID); err != nil {
				d.log.Warn("deployment: package.json sync after dependency command failed", "session_id", d.sessionID, "error", err)
			}
			break
		}
	}
	return res, nil
}

func (d *DeploymentManager[T]) waitForPreview(ctx context.Context, instanceID string) (string, error) {
	res, err := d.sandbox.Deploy(ctx, instanceID)
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", fmt.Errorf("deployment: %s", res.Error)
	}

	for {
		status, err := d.sandbox.PreviewStatus(ctx, instanceID)
		if err != nil {
			return "", err
		}
		if status.Ready {
			return res.PreviewURL, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// WaitForPreview blocks until the sandbox reports readiness, bounded by
// previewWaitTimeout regardless of what deadline ctx itself carries.
func (d *DeploymentManager[T]) WaitForPreview(ctx context.Context) (string, error) {
	base := d.getBase(d.states.Get())
	if base.SandboxInstanceID == "" {
		return "", fmt.Errorf("deployment: no sandbox instance yet")
	}
	if d.previewWaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.previewWaitTimeout)
		defer cancel()
	}
	return d.waitForPreview(ctx, base.SandboxInstanceID)
}

// RunStaticAnalysis runs static analysis against the sandbox instance.
func (d *DeploymentManager[T]) RunStaticAnalysis(ctx context.Context, files []string) (sandbox.AnalysisResult, error) {
	base := d.getBase(d.states.Get())
	return d.sandbox.RunStaticAnalysis(ctx, base.SandboxInstanceID, files)
}

// FetchRuntimeErrors reads runtime errors from the sandbox. A fetch
// failure is a transient-external condition (§7): the caller should
// trigger an implicit redeploy rather than surfacing a caller-visible
// error.
func (d *DeploymentManager[T]) FetchRuntimeErrors(ctx context.Context, clear bool) (sandbox.RuntimeErrorsResult, error) {
	base := d.getBase(d.states.Get())
	return d.sandbox.FetchRuntimeErrors(ctx, base.SandboxInstanceID, clear)
}

// GetLogs reads accumulated sandbox stdout/stderr, optionally clearing the
// buffer after read. Used by the C9 get_logs tool.
func (d *DeploymentManager[T]) GetLogs(ctx context.Context, reset bool, durationSeconds int) ([]string, error) {
	base := d.getBase(d.states.Get())
	if base.SandboxInstanceID == "" {
		return nil, fmt.Errorf("deployment: no sandbox instance yet")
	}
	res, err := d.sandbox.GetLogs(ctx, base.SandboxInstanceID, reset, durationSeconds)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("deployment: %s", res.Error)
	}
	return res.Lines, nil
}

// RenameProject updates the session's projectName and, if a sandbox
// instance already exists, propagates the new name to it. Used by the C9
// rename_project tool.
func (d *DeploymentManager[T]) RenameProject(ctx context.Context, name string) error {
	d.states.UpdateField(ctx, func(state *T) {
		b := d.getBase(*state)
		b.ProjectName = name
		d.setBase(state, b)
	})
	base := d.getBase(d.states.Get())
	if base.SandboxInstanceID == "" {
		return nil
	}
	res, err := d.sandbox.UpdateProjectName(ctx, base.SandboxInstanceID, name)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("deployment: rename: %s", res.Error)
	}
	return nil
}

// DeployToCloudflare invokes the external deployment client with the
// looked-up credentials and fires lifecycle callbacks. PREVIEW_EXPIRED
// explicitly invokes OnPreviewExpired so the caller can redeploy sandbox
// and surface the condition.
func (d *DeploymentManager[T]) DeployToCloudflare(ctx context.Context, opts CloudflareDeployOptions, cb DeploymentCallbacks) (string, error) {
	cb.started()

	if d.secrets == nil {
		err := fmt.Errorf("no Cloudflare credentials provider configured")
		cb.errored(err)
		return "", err
	}
	creds, err := d.secrets.GetCloudflareCredentials(ctx, opts.UserID)
	if err != nil {
		cb.errored(err)
		return "", fmt.Errorf("deployment: lookup credentials: %w", err)
	}
	if creds == nil {
		err := fmt.Errorf("missing Cloudflare credentials for user %q", opts.UserID)
		cb.errored(err)
		return "", err
	}
	if d.deployer == nil {
		err := fmt.Errorf("no deployment client configured")
		cb.errored(err)
		return "", err
	}

	files := make(map[string]string)
	for path, rec := range d.getBase(d.states.Get()).GeneratedFilesMap {
		files[path] = rec.FileContents
	}

	res, err := d.deployer.Deploy(ctx, deploy.Request{
		AccountID: creds.AccountID,
		APIToken:  creds.APIToken,
		Files:     files,
	})
	if err != nil {
		cb.errored(err)
		return "", fmt.Errorf("deployment: cloudflare deploy: %w", err)
	}

	switch res.Status {
	case deploy.StatusDeployed:
		cb.completed(res.DeploymentURL)
		return res.DeploymentURL, nil
	case deploy.StatusPreviewExpired:
		cb.previewExpired()
		err := fmt.Errorf("preview expired")
		cb.errored(err)
		return "", err
	default:
		err := fmt.Errorf("cloudflare deploy failed: %s", res.Error)
		cb.errored(err)
		return "", err
	}
}
