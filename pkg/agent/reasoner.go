// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/resilience"
	"github.com/jllopis/neurosync/pkg/telemetry"
	"github.com/jllopis/neurosync/pkg/tools"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxIterations bounds the model/tool round trips of one message.
const DefaultMaxIterations = 5

// DefaultSystemPrompt introduces the assistant to the model.
const DefaultSystemPrompt = `You are NeuroSync, a helpful and friendly AI assistant.
Answer the user's questions clearly and concisely.
Use the available tools when they help: search the web for current events,
look topics up on Wikipedia, use the calculator for arithmetic, and store or
recall facts with the knowledge base tools.`

// ReasonInput is what the reasoning backend sees for a general message.
type ReasonInput struct {
	Message string
	History []llm.Message
	Tools   *tools.Registry
}

// Reasoner answers general messages, possibly calling tools.
type Reasoner interface {
	Reason(ctx context.Context, in ReasonInput) (string, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, in ReasonInput) (string, error)

// Reason implements Reasoner.
func (f ReasonerFunc) Reason(ctx context.Context, in ReasonInput) (string, error) {
	return f(ctx, in)
}

// ToolLoop is the default Reasoner: a function-calling loop over an
// llm.Provider. Every model call goes through the limiter on its own, so
// tools that share the limiter can run between calls.
type ToolLoop struct {
	model         llm.Provider
	limiter       *resilience.Limiter
	modelID       string
	systemPrompt  string
	maxIterations int
	temperature   float64
	maxTokens     int

	log     *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// LoopOption configures a ToolLoop.
type LoopOption func(*ToolLoop)

// WithModelID sets the model name sent with each request.
func WithModelID(id string) LoopOption {
	return func(l *ToolLoop) { l.modelID = id }
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) LoopOption {
	return func(l *ToolLoop) {
		if strings.TrimSpace(prompt) != "" {
			l.systemPrompt = prompt
		}
	}
}

// WithMaxIterations bounds the loop. Non-positive values are ignored.
func WithMaxIterations(n int) LoopOption {
	return func(l *ToolLoop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithSampling sets temperature and output token cap; zero keeps the
// provider defaults.
func WithSampling(temperature float64, maxTokens int) LoopOption {
	return func(l *ToolLoop) {
		l.temperature = temperature
		l.maxTokens = maxTokens
	}
}

// WithLoopLogger sets the logger.
func WithLoopLogger(log *slog.Logger) LoopOption {
	return func(l *ToolLoop) { l.log = log }
}

// WithLoopMetrics records model latency.
func WithLoopMetrics(m *telemetry.Metrics) LoopOption {
	return func(l *ToolLoop) { l.metrics = m }
}

// NewToolLoop creates the default reasoner. A nil limiter gets a private
// one with default settings.
func NewToolLoop(model llm.Provider, limiter *resilience.Limiter, opts ...LoopOption) *ToolLoop {
	if limiter == nil {
		limiter = resilience.NewLimiter()
	}
	l := &ToolLoop{
		model:         model,
		limiter:       limiter,
		systemPrompt:  DefaultSystemPrompt,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	l.tracer = telemetry.Tracer()
	return l
}

// Reason implements Reasoner.
func (l *ToolLoop) Reason(ctx context.Context, in ReasonInput) (string, error) {
	if l.model == nil {
		return "", errors.New(errors.CodeLLMError, "no model configured", nil).WithKind(errors.KindFatal)
	}

	messages := make([]llm.Message, 0, len(in.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: l.systemPrompt})
	messages = append(messages, in.History...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.Message})

	var defs []llm.Tool
	if in.Tools != nil {
		defs = in.Tools.Definitions(excludedFromReasoner...)
	}

	for i := 0; i < l.maxIterations; i++ {
		req := llm.ChatRequest{
			Model:       l.modelID,
			Messages:    messages,
			Tools:       defs,
			Temperature: l.temperature,
			MaxTokens:   l.maxTokens,
		}
		resp, err := l.chat(ctx, req, i+1)
		if err != nil {
			return "", WrapLLMError(err, l.modelID)
		}

		if len(resp.ToolCalls) == 0 {
			text := strings.TrimSpace(resp.Content)
			if text == "" {
				return "", WrapLLMError(errors.New(errors.CodeLLMError, "empty model reply", nil), l.modelID)
			}
			return text, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			result := l.invoke(ctx, in.Tools, tc)
			id := tc.ID
			if id == "" {
				id = tc.Function.Name
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: id,
			})
		}
	}

	return "", WrapTimeoutError(
		fmt.Errorf("no final answer after %d model calls", l.maxIterations),
		"reasoning-loop", l.maxIterations,
	)
}

func (l *ToolLoop) chat(ctx context.Context, req llm.ChatRequest, iteration int) (*llm.ChatResponse, error) {
	ctx, span := l.tracer.Start(ctx, "LLM.Chat")
	defer span.End()
	span.SetAttributes(telemetry.LLMAttributes(req.Model, fmt.Sprint(l.model), len(req.Messages), len(req.Tools))...)
	span.SetAttributes(telemetry.IterationAttributes(iteration, l.maxIterations)...)

	start := time.Now()
	resp, err := resilience.Call(ctx, l.limiter, func(ctx context.Context) (*llm.ChatResponse, error) {
		return l.model.Chat(ctx, req)
	})
	l.metrics.RecordLLMLatency(ctx, req.Model, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	return resp, nil
}

// invoke runs one tool call. Unknown or excluded tools produce a text the
// model can react to rather than an error.
func (l *ToolLoop) invoke(ctx context.Context, registry *tools.Registry, tc llm.ToolCall) string {
	name := tc.Function.Name
	if registry == nil || isExcluded(name) {
		return fmt.Sprintf("Unknown tool: %s", name)
	}
	tool, ok := registry.Get(name)
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	ctx, span := l.tracer.Start(ctx, "Tool."+tool.FunctionName())
	defer span.End()

	input := toolInput(tc.Function.Arguments)
	start := time.Now()
	result, failure := callTool(ctx, tool, tc.ID, input)
	elapsed := time.Since(start)
	if failure != nil {
		span.RecordError(failure)
		l.log.ErrorContext(ctx, "tool.panic",
			slog.String("tool", tool.Name),
			slog.String("tool_call_id", tc.ID),
			slog.String("recoverable", failure.RecoverableString()),
			slog.String("error", failure.Error()),
		)
		result = fmt.Sprintf("Tool %s failed unexpectedly.", tool.Name)
	}

	span.SetAttributes(telemetry.ToolCallAttributes(tool.Name, input, result, float64(elapsed.Milliseconds()), 256)...)
	l.log.Debug("tool.call",
		slog.String("tool", tool.Name),
		slog.String("tool_call_id", tc.ID),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return result
}

// callTool runs one tool. A panic inside the tool is returned as a tool
// failure so the loop can keep talking to the model.
func callTool(ctx context.Context, tool tools.Tool, callID, input string) (result string, failure *errors.Error) {
	defer func() {
		if r := recover(); r != nil {
			failure = WrapToolError(fmt.Errorf("panic: %v", r), tool.Name, callID)
		}
	}()
	return tool.Invoke(ctx, input), nil
}

func isExcluded(name string) bool {
	fn := tools.FunctionName(name)
	for _, ex := range excludedFromReasoner {
		if tools.FunctionName(ex) == fn {
			return true
		}
	}
	return false
}

// toolInput extracts the single string argument. Models sometimes pick a
// different key, or send a bare string; the first string value wins.
func toolInput(arguments string) string {
	raw := strings.TrimSpace(arguments)
	if raw == "" {
		return ""
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		var s string
		if json.Unmarshal([]byte(raw), &s) == nil {
			return s
		}
		return raw
	}
	if v, ok := args["input"].(string); ok {
		return v
	}
	for _, v := range args {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
