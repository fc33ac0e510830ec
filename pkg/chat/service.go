// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the orchestration boundary between the transports (HTTP
// API, CLI) and the agent, credential and conversation stores.
//
// Each login session owns one agent. Messages of a session are answered in
// order; different sessions run independently.
package chat

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jllopis/neurosync/pkg/agent"
	"github.com/jllopis/neurosync/pkg/auth"
	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/fallback"
	"github.com/jllopis/neurosync/pkg/history"
	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/memory"
	"github.com/jllopis/neurosync/pkg/resilience"
	"github.com/jllopis/neurosync/pkg/telemetry"
)

// AutoSummarizeThreshold is the message count from which conversations are
// summarized automatically when the user asked for it.
const AutoSummarizeThreshold = 10

// Factory builds a fresh agent for a new session.
type Factory func() (*agent.Agent, error)

// ErrUnauthorized is returned for missing, unknown or expired tokens.
var ErrUnauthorized = errors.New(errors.CodeUnauthorized, "invalid or expired session", nil)

type session struct {
	mu sync.Mutex

	userID       int64
	agent        *agent.Agent
	conversation int64
	summary      string
}

// Service wires the agent to persistence.
type Service struct {
	users    *auth.Store
	history  *history.Store
	newAgent Factory
	local    *fallback.LocalResponder

	fallbackEnabled bool
	window          int
	health          *resilience.Degradation

	log     *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Service.
type Option func(*Service)

// WithFallback enables the local responder for failed replies.
func WithFallback(r *fallback.LocalResponder) Option {
	return func(s *Service) {
		s.local = r
		s.fallbackEnabled = r != nil
	}
}

// WithWindow sets how many stored turns seed a reopened conversation.
func WithWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics attaches metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the service. users may be nil for transports that
// only use Answer.
func NewService(users *auth.Store, store *history.Store, newAgent Factory, opts ...Option) *Service {
	s := &Service{
		users:    users,
		history:  store,
		newAgent: newAgent,
		window:   memory.DefaultWindow,
		health:   &resilience.Degradation{MaxErrors: 3},
		log:      slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Outcome is an answered message before persistence.
type Outcome struct {
	agent.Reply
	Fallback bool `json:"fallback"`
	Roadmap  bool `json:"roadmap"`
}

// Metadata is stored alongside the assistant message.
func (o Outcome) Metadata() map[string]any {
	return map[string]any{
		"route":    string(o.Route),
		"failure":  string(o.Failure),
		"fallback": o.Fallback,
		"roadmap":  o.Roadmap,
	}
}

// errNoLocalModel moves the fallback chain past the local responder.
var errNoLocalModel = stderrors.New("no local model loaded")

// Answer runs one message through a. When the agent reports a failure and
// fallback is enabled, the local responder answers instead, or the static
// unavailable notice when no local model is loaded. Agent memory keeps the
// text the user was shown.
func (s *Service) Answer(ctx context.Context, a *agent.Agent, message string) Outcome {
	prior := a.History()

	var first Outcome
	primary := func(ctx context.Context) (Outcome, error) {
		first = Outcome{Reply: a.Respond(ctx, message)}
		if first.Failed() {
			return first, failureError(first.Reply)
		}
		return first, nil
	}

	var strategy resilience.FallbackStrategy[Outcome]
	if s.fallbackEnabled {
		local := resilience.FallbackFunc[Outcome](func(ctx context.Context, _ error) (Outcome, error) {
			if !s.local.Available() {
				return Outcome{}, errNoLocalModel
			}
			return Outcome{Reply: agent.Reply{Text: s.local.Generate(ctx, message, prior)}}, nil
		})
		strategy = resilience.ChainedFallback[Outcome]{Fallbacks: []resilience.FallbackStrategy[Outcome]{
			local,
			resilience.StaticFallback[Outcome]{Value: Outcome{Reply: agent.Reply{Text: fallback.Unavailable}}},
		}}
	}

	out, err := resilience.WithFallback(ctx, primary, strategy)
	if err == nil && first.Failed() {
		cause := failureError(first.Reply)
		s.metrics.RecordFallback(ctx, string(first.Failure))
		s.log.Info("chat.fallback",
			slog.String("agent_id", a.ID()),
			slog.String("cause", cause.Error()),
		)
		out.Route = agent.Classify(message)
		out.Failure = first.Failure
		out.Fallback = true
		a.AmendReply(out.Text)
	}
	s.health.Record(failureOrNil(out))
	out.Roadmap = IsRoadmap(message, out.Text)
	return out
}

// IsRoadmap reports whether a reply should be shown as a roadmap: the
// request asked for one, or the reply reads like phases or steps.
func IsRoadmap(request, reply string) bool {
	if agent.IsRoadmapRequest(request) {
		return true
	}
	lower := strings.ToLower(reply)
	return strings.Contains(lower, "phase") || strings.Contains(lower, "step")
}

// Health reports whether the model backend is currently operational.
func (s *Service) Health() (string, error) {
	return s.health.Status(), s.health.LastError()
}

// replyError carries a failed reply through the fallback machinery.
type replyError struct {
	failure agent.Failure
	text    string
}

func (e *replyError) Error() string {
	return "agent reply failed (" + string(e.failure) + "): " + e.text
}

func failureError(r agent.Reply) error {
	return &replyError{failure: r.Failure, text: r.Text}
}

func failureOrNil(o Outcome) error {
	if !o.Failed() {
		return nil
	}
	return failureError(o.Reply)
}

// turnsFromMessages converts stored messages to memory turns.
func turnsFromMessages(msgs []history.Message) []memory.Turn {
	turns := make([]memory.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleAssistant
		if m.Role == string(llm.RoleUser) {
			role = llm.RoleUser
		}
		turns = append(turns, memory.Turn{Role: role, Content: m.Content})
	}
	return turns
}
