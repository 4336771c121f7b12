package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "freshet"

// StartScriptRunSpan starts a span for one script run.
func StartScriptRunSpan(ctx context.Context, sessionID, pageScriptHash string, fragment bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "script_run",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("page.script_hash", pageScriptHash),
			attribute.Bool("run.fragment", fragment),
		),
	)
}

// StartSessionSpan starts a span covering a session's lifetime.
func StartSessionSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
}
