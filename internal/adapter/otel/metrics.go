package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentrt"

// Metrics holds the session-runtime metric instruments (§6): generation
// lifecycle counts, tool dispatch volume, and deploy latency/outcome, the
// three surfaces SPEC_FULL names as worth instrumenting even though the
// Non-goals exclude a full metrics/observability product.
type Metrics struct {
	SessionsStarted     metric.Int64Counter
	GenerationsStarted  metric.Int64Counter
	GenerationsFinished metric.Int64Counter
	GenerationsFailed   metric.Int64Counter
	ToolCalls           metric.Int64Counter
	DeployDuration      metric.Float64Histogram
	DeployFailures      metric.Int64Counter
}

// NewMetrics creates all metric instruments against the globally
// configured MeterProvider (InitTracer installs one; absent that, the
// otel no-op provider makes every instrument a safe no-op too).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.SessionsStarted, err = meter.Int64Counter("agentrt.sessions.started",
		metric.WithDescription("Number of sessions initialized"))
	if err != nil {
		return nil, err
	}

	m.GenerationsStarted, err = meter.Int64Counter("agentrt.generations.started",
		metric.WithDescription("Number of generate_all runs started"))
	if err != nil {
		return nil, err
	}

	m.GenerationsFinished, err = meter.Int64Counter("agentrt.generations.finished",
		metric.WithDescription("Number of generate_all runs that completed the state machine"))
	if err != nil {
		return nil, err
	}

	m.GenerationsFailed, err = meter.Int64Counter("agentrt.generations.failed",
		metric.WithDescription("Number of generate_all runs that ended in an error event"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("agentrt.toolcalls",
		metric.WithDescription("Number of tool dispatches"))
	if err != nil {
		return nil, err
	}

	m.DeployDuration, err = meter.Float64Histogram("agentrt.deploy.duration_seconds",
		metric.WithDescription("Sandbox/Cloudflare deploy duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.DeployFailures, err = meter.Int64Counter("agentrt.deploy.failures",
		metric.WithDescription("Number of failed deploys"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
