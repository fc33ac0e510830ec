// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitNone(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "test-service", Version: "v0.0.1", Exporter: ExporterNone})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown exporter", cfg: Config{Exporter: "zipkin"}},
		{name: "otlp without endpoint", cfg: Config{Exporter: "otlp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Init(context.Background(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTraceHandlerAddsSpanIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")
	logger.InfoContext(ctx, "router.route", "route", "general")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	if record["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id in record, got %v", record)
	}
	if record["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("expected span_id in record, got %v", record)
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for name, want := range tests {
		if got := LogLevel(name); got != want {
			t.Errorf("LogLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
