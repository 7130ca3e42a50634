package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
)

// Controller is the surface common to both AppController and
// WorkflowController, the methods the Project-Type Dispatcher (C13) can
// call without knowing which variant it holds (§4.12).
type Controller interface {
	ProjectType() agentsession.ProjectType
	GenerateAll(ctx context.Context) error
	StopGeneration(ctx context.Context) error
	Preview(ctx context.Context) (string, error)
	Deploy(ctx context.Context) (string, error)

	// State returns a JSON snapshot of the session's State Store (C1),
	// the sole surface the MCP read-only introspection tools (§6) reach
	// into a running session through.
	State() (json.RawMessage, error)
}

// AppCapable is satisfied by controller variants that support the
// app-only control frames (§4.13: capture_screenshot, resume_generation,
// user_suggestion, get_model_configs). The dispatcher type-asserts for it
// rather than forcing these methods onto WorkflowController, which has no
// semantic equivalent for any of them.
type AppCapable interface {
	Controller
	UserSuggestion(ctx context.Context, text string) error
	ResumeGeneration(ctx context.Context) error
	CaptureScreenshot(ctx context.Context) (string, error)
	GetModelConfigs(ctx context.Context) (map[string]any, error)
}

// Dispatcher holds exactly one controller variant for the lifetime of a
// session and delegates every external call to it verbatim. It carries no
// state of its own beyond a single deferred-start slot: if GenerateAll is
// requested before Attach has run (e.g. a `generate_all` frame racing
// session construction), the call is queued and replayed the moment the
// controller attaches (§4.12).
type Dispatcher struct {
	mu          sync.Mutex
	controller  Controller
	startQueued bool
}

// NewDispatcher constructs an empty dispatcher; call Attach once the
// controller for this session's projectType has been built.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Attach installs the active controller. If a start was requested before
// attach, it is replayed immediately (with the caller-supplied context,
// since the original request's context is not retained past its own
// call stack).
func (d *Dispatcher) Attach(ctx context.Context, c Controller) error {
	d.mu.Lock()
	d.controller = c
	replay := d.startQueued
	d.startQueued = false
	d.mu.Unlock()

	if replay {
		return c.GenerateAll(ctx)
	}
	return nil
}

func (d *Dispatcher) get() Controller {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controller
}

// ProjectType reports the active controller's variant, or "" if no
// controller is attached yet.
func (d *Dispatcher) ProjectType() agentsession.ProjectType {
	c := d.get()
	if c == nil {
		return ""
	}
	return c.ProjectType()
}

// GenerateAll delegates to the active controller, or queues the call for
// replay on Attach if no controller is attached yet.
func (d *Dispatcher) GenerateAll(ctx context.Context) error {
	c := d.get()
	if c == nil {
		d.mu.Lock()
		d.startQueued = true
		d.mu.Unlock()
		return nil
	}
	return c.GenerateAll(ctx)
}

func (d *Dispatcher) StopGeneration(ctx context.Context) error {
	c := d.get()
	if c == nil {
		return nil
	}
	return c.StopGeneration(ctx)
}

func (d *Dispatcher) Preview(ctx context.Context) (string, error) {
	c := d.get()
	if c == nil {
		return "", nil
	}
	return c.Preview(ctx)
}

func (d *Dispatcher) Deploy(ctx context.Context) (string, error) {
	c := d.get()
	if c == nil {
		return "", nil
	}
	return c.Deploy(ctx)
}

// State delegates to the active controller's State, or reports nothing
// attached rather than a synthetic empty state.
func (d *Dispatcher) State() (json.RawMessage, error) {
	c := d.get()
	if c == nil {
		return nil, errNoController
	}
	return c.State()
}

var errNoController = errControllerKind("no controller attached to this session yet")

// appOnly type-asserts the active controller to AppCapable, returning ok=false
// for a workflow session (and for the unattached case).
func (d *Dispatcher) appOnly() (AppCapable, bool) {
	c := d.get()
	if c == nil {
		return nil, false
	}
	ac, ok := c.(AppCapable)
	return ac, ok
}

var errNotAppSession = errControllerKind("operation is only valid for app sessions")

type errControllerKind string

func (e errControllerKind) Error() string { return string(e) }

func (d *Dispatcher) UserSuggestion(ctx context.Context, text string) error {
	ac, ok := d.appOnly()
	if !ok {
		return errNotAppSession
	}
	return ac.UserSuggestion(ctx, text)
}

func (d *Dispatcher) ResumeGeneration(ctx context.Context) error {
	ac, ok := d.appOnly()
	if !ok {
		return errNotAppSession
	}
	return ac.ResumeGeneration(ctx)
}

func (d *Dispatcher) CaptureScreenshot(ctx context.Context) (string, error) {
	ac, ok := d.appOnly()
	if !ok {
		return "", errNotAppSession
	}
	return ac.CaptureScreenshot(ctx)
}

func (d *Dispatcher) GetModelConfigs(ctx context.Context) (map[string]any, error) {
	ac, ok := d.appOnly()
	if !ok {
		return nil, errNotAppSession
	}
	return ac.GetModelConfigs(ctx)
}
