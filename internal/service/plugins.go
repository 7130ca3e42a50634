package service

import (
	"context"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
)

// Plugin is the hook set a registered plugin may implement, triggered at
// the points in §4.14. Every method is optional — a plugin that only
// cares about, say, deployment leaves the rest as no-ops (the zero value
// of the pointer-to-function fields below is simply "not subscribed").
type Plugin struct {
	Name string

	OnRegister   func(ctx context.Context, sessionID string, log *slog.Logger)
	OnUnregister func(ctx context.Context, sessionID string)

	OnInitialize func(ctx context.Context, sessionID string) error

	BeforeFilesGenerated func(ctx context.Context, sessionID, phaseName string, concepts []string) error
	AfterFilesGenerated  func(ctx context.Context, sessionID, phaseName string, outputs []string) error

	BeforeDeployment func(ctx context.Context, sessionID string) error
	AfterDeployment  func(ctx context.Context, sessionID, previewURL string) error

	OnGenerationStart    func(ctx context.Context, sessionID string) error
	OnGenerationComplete func(ctx context.Context, sessionID string) error

	OnError func(ctx context.Context, sessionID string, cause error, hookContext string)

	OnStateUpdate func(ctx context.Context, sessionID string, oldState, newState agentsession.BaseState)
}

// PluginManager is the per-session ordered hook registry (C15). Hooks run
// in registration order; a hook's error is logged and aggregated but
// never stops the remaining hooks from running, the same
// degrade-independently contract as the teacher's NotificationService
// (internal/service/notification.go), generalized from "one notifier
// interface, fixed Send hook" to "one plugin struct, many optional named
// hooks".
type PluginManager struct {
	sessionID string
	log       *slog.Logger
	plugins   []Plugin
	byName    map[string]struct{}
}

// NewPluginManager creates an empty, per-session registry. Plugins are
// never shared across sessions (§4.14: "no global hooks").
func NewPluginManager(sessionID string, log *slog.Logger) *PluginManager {
	return &PluginManager{
		sessionID: sessionID,
		log:       log,
		byName:    make(map[string]struct{}),
	}
}

// Register adds a plugin. A duplicate name is a no-op with a warning
// (§4.14), not a replacement and not an error.
func (m *PluginManager) Register(ctx context.Context, p Plugin) {
	if _, exists := m.byName[p.Name]; exists {
		m.log.Warn("plugin manager: duplicate plugin name ignored", "session_id", m.sessionID, "plugin", p.Name)
		return
	}
	m.byName[p.Name] = struct{}{}
	m.plugins = append(m.plugins, p)
	if p.OnRegister != nil {
		p.OnRegister(ctx, m.sessionID, m.log)
	}
}

// Unregister removes a plugin by name, firing its OnUnregister hook if set.
func (m *PluginManager) Unregister(ctx context.Context, name string) {
	for i, p := range m.plugins {
		if p.Name != name {
			continue
		}
		if p.OnUnregister != nil {
			p.OnUnregister(ctx, m.sessionID)
		}
		m.plugins = append(m.plugins[:i], m.plugins[i+1:]...)
		delete(m.byName, name)
		return
	}
}

// runErroring invokes f for every registered plugin that set it, in
// registration order, aggregating (not short-circuiting on) errors.
func (m *PluginManager) runErroring(hook string, f func(Plugin) error) error {
	var errs error
	for _, p := range m.plugins {
		if err := f(p); err != nil {
			m.log.Warn("plugin manager: hook error", "session_id", m.sessionID, "plugin", p.Name, "hook", hook, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (m *PluginManager) OnInitialize(ctx context.Context) error {
	return m.runErroring("onInitialize", func(p Plugin) error {
		if p.OnInitialize == nil {
			return nil
		}
		return p.OnInitialize(ctx, m.sessionID)
	})
}

func (m *PluginManager) BeforeFilesGenerated(ctx context.Context, phaseName string, concepts []string) error {
	return m.runErroring("beforeFilesGenerated", func(p Plugin) error {
		if p.BeforeFilesGenerated == nil {
			return nil
		}
		return p.BeforeFilesGenerated(ctx, m.sessionID, phaseName, concepts)
	})
}

func (m *PluginManager) AfterFilesGenerated(ctx context.Context, phaseName string, outputs []string) error {
	return m.runErroring("afterFilesGenerated", func(p Plugin) error {
		if p.AfterFilesGenerated == nil {
			return nil
		}
		return p.AfterFilesGenerated(ctx, m.sessionID, phaseName, outputs)
	})
}

func (m *PluginManager) BeforeDeployment(ctx context.Context) error {
	return m.runErroring("beforeDeployment", func(p Plugin) error {
		if p.BeforeDeployment == nil {
			return nil
		}
		return p.BeforeDeployment(ctx, m.sessionID)
	})
}

func (m *PluginManager) AfterDeployment(ctx context.Context, previewURL string) error {
	return m.runErroring("afterDeployment", func(p Plugin) error {
		if p.AfterDeployment == nil {
			return nil
		}
		return p.AfterDeployment(ctx, m.sessionID, previewURL)
	})
}

func (m *PluginManager) OnGenerationStart(ctx context.Context) error {
	return m.runErroring("onGenerationStart", func(p Plugin) error {
		if p.OnGenerationStart == nil {
			return nil
		}
		return p.OnGenerationStart(ctx, m.sessionID)
	})
}

func (m *PluginManager) OnGenerationComplete(ctx context.Context) error {
	return m.runErroring("onGenerationComplete", func(p Plugin) error {
		if p.OnGenerationComplete == nil {
			return nil
		}
		return p.OnGenerationComplete(ctx, m.sessionID)
	})
}

// OnError fans a failure out to every plugin's OnError hook. Unlike the
// other hooks this one cannot itself fail upward — there is nowhere left
// to report an error-hook's own error except the log.
func (m *PluginManager) OnError(ctx context.Context, cause error, hookContext string) {
	for _, p := range m.plugins {
		if p.OnError == nil {
			continue
		}
		p.OnError(ctx, m.sessionID, cause, hookContext)
	}
}

// OnStateUpdate fans a state transition out to every plugin's
// OnStateUpdate hook.
func (m *PluginManager) OnStateUpdate(ctx context.Context, oldState, newState agentsession.BaseState) {
	for _, p := range m.plugins {
		if p.OnStateUpdate == nil {
			continue
		}
		p.OnStateUpdate(ctx, m.sessionID, oldState, newState)
	}
}
