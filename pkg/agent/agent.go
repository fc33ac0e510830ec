// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent routes each user message to a prompt-template tool or to the
// reasoning backend, and keeps the per-session conversation memory.
package agent

import (
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/memory"
	"github.com/jllopis/neurosync/pkg/telemetry"
	"github.com/jllopis/neurosync/pkg/tools"
	"go.opentelemetry.io/otel/trace"
)

// ErrMissingReasoner is returned by New when no reasoning backend was given.
var ErrMissingReasoner = stderrors.New("agent reasoner is required")

// Agent owns the state of one chat session: memory, knowledge facts and the
// tool registry bound to them. Calls are serialized on an internal mutex.
type Agent struct {
	mu sync.Mutex

	id        string
	window    *memory.Window
	knowledge *memory.Knowledge
	registry  *tools.Registry
	roadmap   *tools.Generator
	code      *tools.Generator
	reasoner  Reasoner
	toolDeps  tools.Deps

	log     *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an Agent. A reasoner is required; everything else has a
// default.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		id:        uuid.NewString(),
		window:    memory.NewWindow(memory.DefaultWindow),
		knowledge: memory.NewKnowledge(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.reasoner == nil {
		return nil, ErrMissingReasoner
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.tracer == nil {
		a.tracer = telemetry.Tracer()
	}
	if a.roadmap == nil {
		a.roadmap = tools.NewRoadmapGenerator(nil, nil, "")
	}
	if a.code == nil {
		a.code = tools.NewCodeHelper(nil, nil, "")
	}

	deps := a.toolDeps
	deps.Knowledge = a.knowledge
	deps.Roadmap = a.roadmap
	deps.Code = a.code
	if deps.Logger == nil {
		deps.Logger = a.log
	}
	registry, err := tools.Standard(deps)
	if err != nil {
		return nil, err
	}
	a.registry = registry
	return a, nil
}

// WithID overrides the generated agent id.
func WithID(id string) Option {
	return func(a *Agent) error {
		if id == "" {
			return stderrors.New("agent id must not be empty")
		}
		a.id = id
		return nil
	}
}

// WithReasoner sets the backend used for general messages.
func WithReasoner(r Reasoner) Option {
	return func(a *Agent) error {
		a.reasoner = r
		return nil
	}
}

// WithGenerators sets the roadmap and code prompt tools used by the
// keyword routes.
func WithGenerators(roadmap, code *tools.Generator) Option {
	return func(a *Agent) error {
		a.roadmap = roadmap
		a.code = code
		return nil
	}
}

// WithSearch wires the external lookup capabilities of the tool registry.
func WithSearch(web tools.WebSearcher, encyclopedia tools.Encyclopedia) Option {
	return func(a *Agent) error {
		a.toolDeps.Web = web
		a.toolDeps.Encyclopedia = encyclopedia
		return nil
	}
}

// WithWindow sets the number of turns kept in memory.
func WithWindow(size int) Option {
	return func(a *Agent) error {
		if size <= 0 {
			return NewInvalidInputError("memory window must be positive")
		}
		a.window = memory.NewWindow(size)
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) error {
		a.log = log
		return nil
	}
}

// WithMetrics attaches router metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) error {
		a.tracer = t
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Tools returns the registry bound to this agent's knowledge list.
func (a *Agent) Tools() *tools.Registry { return a.registry }

// History returns a copy of the conversation memory.
func (a *Agent) History() []memory.Turn {
	return a.window.Turns()
}

// Facts returns the knowledge facts stored so far, oldest first.
func (a *Agent) Facts() []string {
	return a.knowledge.All()
}

// Reset clears conversation memory. Knowledge facts survive.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window.Reset()
}

// AmendReply replaces the newest assistant turn with text, so memory holds
// the answer the user actually received. It reports whether a turn changed.
func (a *Agent) AmendReply(text string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.ReplaceLast(llm.RoleAssistant, text)
}

// Seed replaces memory with turns from a stored conversation. Only the
// newest turns that fit the window are kept.
func (a *Agent) Seed(turns []memory.Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window.Seed(turns)
}
