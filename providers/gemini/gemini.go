// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package gemini adapts the Google Gemini API to llm.Provider.
//
// Failures are wrapped in typed errors: quota and rate-limit refusals carry
// CodeRateLimit (transient), everything else CodeLLMError.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/llm"
	"google.golang.org/genai"
)

// DefaultModel is used when neither the request nor the options name a model.
const DefaultModel = "gemini-2.0-flash"

// generator is the slice of the genai client the provider depends on.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements llm.Provider for the Google Gemini API.
type Provider struct {
	models          generator
	model           string
	temperature     float64
	maxOutputTokens int
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTemperature sets the sampling temperature used when a request leaves it unset.
func WithTemperature(t float64) Option {
	return func(p *Provider) {
		p.temperature = t
	}
}

// WithMaxOutputTokens caps response length when a request leaves it unset.
func WithMaxOutputTokens(n int) Option {
	return func(p *Provider) {
		p.maxOutputTokens = n
	}
}

// New creates a Gemini provider. An empty apiKey lets the SDK read
// GOOGLE_API_KEY or GEMINI_API_KEY from the environment.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	var cfg *genai.ClientConfig
	if apiKey != "" {
		cfg = &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "failed to create gemini client", err).WithKind(errors.KindFatal)
	}
	return newProvider(client.Models, opts...), nil
}

func newProvider(models generator, opts ...Option) *Provider {
	p := &Provider{
		models:          models,
		model:           DefaultModel,
		temperature:     0.7,
		maxOutputTokens: 1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	contents, systemInstruction := convertMessages(req.Messages)
	config := p.buildConfig(req, systemInstruction)

	resp, err := p.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, classify(err).WithContext("model", model)
	}
	return convertResponse(resp), nil
}

func (p *Provider) buildConfig(req llm.ChatRequest, systemInstruction string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.temperature
	}
	if temperature > 0 {
		temp := float32(temperature)
		config.Temperature = &temp
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxOutputTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{
			{FunctionDeclarations: convertTools(req.Tools)},
		}
	}
	return config
}

// classify wraps an SDK error with a typed kind. The SDK only exposes the
// HTTP status through the error text ("Error 429, ...").
func classify(err error) *errors.Error {
	if errors.MentionsQuota(err.Error()) {
		return errors.New(errors.CodeRateLimit, "gemini quota exhausted", err)
	}
	return errors.New(errors.CodeLLMError, "gemini request failed", err)
}

// convertMessages converts messages to Gemini contents. System messages are
// folded into a single system instruction.
func convertMessages(messages []llm.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case llm.RoleAssistant:
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					args = map[string]any{"input": tc.Function.Arguments}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Function.Name, Args: args},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case llm.RoleTool:
			var result map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &result); err != nil {
				result = map[string]any{"result": msg.Content}
			}
			// Gemini matches responses by function name, carried in ToolCallID.
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{Name: msg.ToolCallID, Response: result},
				}},
			})
		}
	}

	return contents, strings.Join(system, "\n\n")
}

// convertTools converts tool descriptors to Gemini function declarations.
func convertTools(tools []llm.Tool) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  convertSchema(tool.Function.Parameters),
		})
	}
	return declarations
}

// convertSchema maps a JSON Schema value onto genai.Schema. Gemini expects
// upper-case type names.
func convertSchema(params any) *genai.Schema {
	if params == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	upperTypes(&schema)
	return &schema
}

func upperTypes(s *genai.Schema) {
	if s == nil {
		return
	}
	s.Type = genai.Type(strings.ToUpper(string(s.Type)))
	for _, prop := range s.Properties {
		upperTypes(prop)
	}
	upperTypes(s.Items)
}

// convertResponse converts a Gemini response. Only the first candidate is used.
func convertResponse(resp *genai.GenerateContentResponse) *llm.ChatResponse {
	result := &llm.ChatResponse{}
	if resp == nil {
		return result
	}

	if resp.UsageMetadata != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			result.Content += part.Text
		}
		if part.FunctionCall != nil {
			argsJSON, _ := json.Marshal(part.FunctionCall.Args)
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				ID:   part.FunctionCall.Name, // Gemini has no call IDs
				Type: llm.ToolTypeFunction,
				Function: llm.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}
	return result
}

// String describes the provider for logs.
func (p *Provider) String() string {
	return fmt.Sprintf("gemini(%s)", p.model)
}

var _ llm.Provider = (*Provider)(nil)
