package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg.ServiceName != "protoforge" {
		t.Fatalf("expected service name 'protoforge', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestGenerateSpan_Attributes(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartGenerateSpan(context.Background(), "widgets", "widgets/shape.proto")
	RecordGenerateResult(span, 1, 20*time.Millisecond)
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "generate" {
		t.Errorf("span name = %q", s.Name())
	}
	if v, ok := attr(s.Attributes(), "build.input"); !ok || v.AsString() != "widgets/shape.proto" {
		t.Errorf("build.input = %v", v)
	}
	if v, ok := attr(s.Attributes(), "process.exit_code"); !ok || v.AsInt64() != 1 {
		t.Errorf("process.exit_code = %v", v)
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status for non-zero exit, got %v", s.Status().Code)
	}
}

func TestConfigureSpan_Success(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartConfigureSpan(context.Background(), "protobuf")
	RecordConfigureResult(span, "/usr/bin/protoc", 1)
	span.End()

	s := sr.Ended()[0]
	if s.Name() != "configure.protobuf" {
		t.Errorf("span name = %q", s.Name())
	}
	if v, _ := attr(s.Attributes(), "toolchain.executable"); v.AsString() != "/usr/bin/protoc" {
		t.Errorf("toolchain.executable = %v", v)
	}
	if s.Status().Code == codes.Error {
		t.Error("configure span should not be in error")
	}
}

func TestRemoteBuildSpan(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartRemoteBuildSpan(context.Background(), "build-1", 3)
	span.End()

	s := sr.Ended()[0]
	if v, _ := attr(s.Attributes(), "build.task_count"); v.AsInt64() != 3 {
		t.Errorf("build.task_count = %v", v)
	}
}

func TestRecordError(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartGenerateSpan(context.Background(), "t", "a.proto")
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	s := sr.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "boom" {
		t.Errorf("status = %+v", s.Status())
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(s.Events()))
	}
}

func TestTracerProvider_Shutdown_NilProvider(t *testing.T) {
	tp := &TracerProvider{}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil error for nil provider, got: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON record, got %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
