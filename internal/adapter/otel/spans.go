package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentrt"

// StartSessionSpan starts a span covering one session's lifetime, from
// Initialize through Teardown (C16).
func StartSessionSpan(ctx context.Context, sessionID, projectType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.project_type", projectType),
		),
	)
}

// StartToolCallSpan starts a span for a single tool dispatch (C9).
func StartToolCallSpan(ctx context.Context, sessionID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// StartDeploySpan starts a span for a sandbox or Cloudflare deploy (C7).
func StartDeploySpan(ctx context.Context, sessionID, target string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "deploy",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("deploy.target", target),
		),
	)
}
