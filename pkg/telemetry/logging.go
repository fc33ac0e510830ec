// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys filled from the active span.
const (
	AttrTraceID = "trace_id"
	AttrSpanID  = "span_id"
)

// ConfigureSlog builds a logger with NewLogger and installs it as the slog
// default.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(output, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger returns a logger writing text or JSON ("json") records to output.
// Records logged with a context carrying a valid span get trace_id and
// span_id attributes.
func NewLogger(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LogLevel(level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	return slog.New(spanHandler{Handler: h})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// LogLevel maps a config level name to slog; unknown names mean info.
func LogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type spanHandler struct {
	slog.Handler
}

func (h spanHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			has := map[string]bool{}
			r.Attrs(func(a slog.Attr) bool {
				has[a.Key] = true
				return true
			})
			if !has[AttrTraceID] {
				r.AddAttrs(slog.String(AttrTraceID, sc.TraceID().String()))
			}
			if !has[AttrSpanID] {
				r.AddAttrs(slog.String(AttrSpanID, sc.SpanID().String()))
			}
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{Handler: h.Handler.WithGroup(name)}
}
