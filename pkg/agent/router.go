// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/neurosync/pkg/memory"
	"github.com/jllopis/neurosync/pkg/telemetry"
	"github.com/jllopis/neurosync/pkg/tools"
	"go.opentelemetry.io/otel/codes"
)

// Route names the path a message took.
type Route string

const (
	RouteRoadmap Route = "roadmap"
	RouteCode    Route = "code"
	RouteGeneral Route = "general"
)

// Failure classifies why a reply is a failure text, if it is one.
type Failure string

const (
	FailureNone      Failure = "none"
	FailureTransient Failure = "transient"
	FailureFatal     Failure = "fatal"
	FailureUnknown   Failure = "unknown"
)

// Failure replies of the general route.
const (
	TransientFailure = "I'm temporarily unavailable due to API rate limits. Please try again in a moment."
	GenericFailure   = "I'm currently facing an issue processing your request. Please try again later."
)

var (
	roadmapTriggers = []string{"roadmap", "learning path", "step by step", "plan", "timeline"}
	codeTriggers    = []string{"code", "program", "function", "algorithm", "script", "python", "javascript", "java"}
)

// Reply is the outcome of one message. Text is never empty.
type Reply struct {
	Text    string
	Route   Route
	Failure Failure
}

// Failed reports whether Text is a failure message.
func (r Reply) Failed() bool {
	return r.Failure != FailureNone
}

// Classify returns the route a message would take. Roadmap triggers win
// over code triggers; matching is a case-insensitive substring test.
func Classify(message string) Route {
	lower := strings.ToLower(message)
	if containsAny(lower, roadmapTriggers) {
		return RouteRoadmap
	}
	if containsAny(lower, codeTriggers) {
		return RouteCode
	}
	return RouteGeneral
}

// IsRoadmapRequest reports whether message carries a roadmap trigger.
func IsRoadmapRequest(message string) bool {
	return containsAny(strings.ToLower(message), roadmapTriggers)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Respond answers one message. It never fails: errors are turned into a
// failure text and reported through Reply.Failure. Both turns are appended
// to memory on every path.
func (a *Agent) Respond(ctx context.Context, message string) Reply {
	a.mu.Lock()
	defer a.mu.Unlock()

	runID := uuid.NewString()
	route := Classify(message)

	ctx, span := a.tracer.Start(ctx, "Agent.Respond")
	defer span.End()
	span.SetAttributes(telemetry.RouterAttributes(runID, string(route), a.window.Len())...)

	start := time.Now()
	a.log.Debug("router.route",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.String("route", string(route)),
	)

	var (
		text string
		err  error
	)
	switch route {
	case RouteRoadmap:
		text, err = a.roadmap.Generate(ctx, message)
		if err != nil {
			text = a.roadmap.Failure
		}
	case RouteCode:
		text, err = a.code.Generate(ctx, message)
		if err != nil {
			text = a.code.Failure
		}
	default:
		text, err = a.reasoner.Reason(ctx, ReasonInput{
			Message: message,
			History: a.window.Messages(),
			Tools:   a.registry,
		})
		if err != nil {
			text = failureText(err)
		}
	}

	reply := Reply{Text: text, Route: route, Failure: failureOf(err)}
	if strings.TrimSpace(reply.Text) == "" {
		reply.Text = GenericFailure
		reply.Failure = FailureUnknown
	}

	a.window.AppendExchange(message, reply.Text)

	span.SetAttributes(telemetry.FailureAttributes(string(reply.Failure))...)
	a.metrics.RecordRoute(ctx, string(route), string(reply.Failure))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.RecordError(ctx, err, "router")
		a.log.Warn("router.failure",
			slog.String("agent_id", a.id),
			slog.String("run_id", runID),
			slog.String("route", string(route)),
			slog.String("failure", string(reply.Failure)),
			slog.String("error", err.Error()),
		)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	a.log.Info("router.reply",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.String("route", string(route)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return reply
}

func failureText(err error) string {
	if failureOf(err) == FailureTransient {
		return TransientFailure
	}
	return GenericFailure
}

// SummaryPrompt renders turns as the bullet-summary request.
func SummaryPrompt(turns []memory.Turn) string {
	var b strings.Builder
	b.WriteString("Summarize this conversation in 3-4 bullet points:\n")
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToUpper(string(t.Role)), t.Content)
	}
	return b.String()
}

// Summarize asks for a short summary of transcript. The prompt is routed
// like any other message, so it also lands in memory.
func (a *Agent) Summarize(ctx context.Context, transcript []memory.Turn) Reply {
	return a.Respond(ctx, SummaryPrompt(transcript))
}

// ToolNames lists the registry in canonical order.
func (a *Agent) ToolNames() []string {
	return a.registry.Names()
}

// excludedFromReasoner are reached only through keyword routes.
var excludedFromReasoner = []string{tools.NameRoadmap, tools.NameCodeHelper}
