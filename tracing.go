package tutorapi

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/ambiyansyah-risyal/tutorapi"

func defaultTracer() trace.Tracer {
	return nooptrace.NewTracerProvider().Tracer(tracerName)
}

// startAttemptSpan opens the client span for one dispatched attempt.
func (c *Client) startAttemptSpan(ctx context.Context, method, endpoint, requestID string, attempt int) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "tutorapi "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("tutorapi.endpoint", endpoint),
			attribute.String("tutorapi.request_id", requestID),
			attribute.Int("tutorapi.attempt", attempt),
		),
	)
}

// endAttemptSpan records the attempt outcome and ends the span.
func endAttemptSpan(span trace.Span, status int, kind ErrorKind, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if kind != "" {
		span.SetAttributes(attribute.String("tutorapi.error_kind", string(kind)))
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, string(kind))
	}
	span.End()
}
