// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry setup, metrics and span attributes
// for NeuroSync, plus the trace-aware slog handler.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys. LLM keys follow the gen_ai semantic conventions.
const (
	// Router attributes
	AttrRoute     = "neurosync.router.route"
	AttrFailure   = "neurosync.router.failure"
	AttrRunID     = "neurosync.router.run_id"
	AttrIteration = "neurosync.router.iteration"
	AttrMaxIter   = "neurosync.router.max_iterations"

	// Session/Conversation attributes
	AttrUserID         = "neurosync.user.id"
	AttrConversationID = "neurosync.conversation.id"
	AttrMemoryTurns    = "neurosync.memory.turns"

	// Tool attributes
	AttrToolName       = "neurosync.tool.name"
	AttrToolArgs       = "neurosync.tool.arguments"
	AttrToolResult     = "neurosync.tool.result"
	AttrToolDurationMs = "neurosync.tool.duration_ms"

	// LLM attributes
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMToolCalls    = "gen_ai.tool_calls"

	// Error attributes
	AttrErrorCode = "error.code"
	AttrErrorKind = "error.kind"
	AttrComponent = "component"
)

// RouterAttributes returns attributes for a router span.
func RouterAttributes(runID, route string, memoryTurns int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrMemoryTurns, memoryTurns),
	}
	if route != "" {
		attrs = append(attrs, attribute.String(AttrRoute, route))
	}
	return attrs
}

// FailureAttributes records the failure class of a finished reply.
func FailureAttributes(failure string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(AttrFailure, failure)}
}

// IterationAttributes marks a model call inside the reasoning loop.
func IterationAttributes(iteration, maxIterations int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrIteration, iteration),
		attribute.Int(AttrMaxIter, maxIterations),
	}
}

// ConversationAttributes identifies the owner and conversation of a request.
func ConversationAttributes(userID, conversationID int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int64(AttrUserID, userID)}
	if conversationID > 0 {
		attrs = append(attrs, attribute.Int64(AttrConversationID, conversationID))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span, with arguments
// and result truncated to maxLen bytes.
func ToolCallAttributes(name, args, result string, durationMs float64, maxLen int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolArgs, truncate(args, maxLen)),
		attribute.String(AttrToolResult, truncate(result, maxLen)),
		attribute.Float64(AttrToolDurationMs, durationMs),
	}
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, provider string, msgCount, toolCallCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if toolCallCount > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCallCount))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	return attrs
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 500
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
