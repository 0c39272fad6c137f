package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func sampledContext(t *testing.T) (context.Context, trace.TraceID) {
	t.Helper()
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), traceID
}

func TestTraceparentRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	ctx, traceID := sampledContext(t)

	tp := Traceparent(ctx)
	if tp == "" {
		t.Fatal("expected traceparent to be injected")
	}
	restored := trace.SpanContextFromContext(ContextWithTraceparent(context.Background(), tp))
	if restored.TraceID() != traceID {
		t.Fatalf("trace id mismatch: %s", restored.TraceID())
	}
	if ctx := context.Background(); ContextWithTraceparent(ctx, "") != ctx {
		t.Fatal("expected context to be returned unchanged")
	}
}

func TestLogAttrs(t *testing.T) {
	if LogAttrs(context.Background()) != nil {
		t.Fatal("expected no attrs without a span")
	}
	ctx, traceID := sampledContext(t)
	attrs := LogAttrs(ctx)
	if len(attrs) != 4 || attrs[0] != "trace_id" || attrs[1] != traceID.String() {
		t.Fatalf("unexpected attrs: %v", attrs)
	}
}
