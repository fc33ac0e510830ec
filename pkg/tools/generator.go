// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/resilience"
)

// Failure replies of the prompt-template tools.
const (
	RoadmapFailure = "I couldn't generate a roadmap due to an error."
	CodeFailure    = "I couldn't generate code due to an error."
)

const roadmapTemplate = `Create a detailed roadmap for: %s
Format it as a step-by-step guide with clear phases and milestones.
Include estimated timeframes for each phase if possible.`

const codeTemplate = `Help with this coding request: %s
Provide clear, concise code examples with explanations.
If it's a complex problem, break it down into steps.
Format code examples using triple backticks with the language name.`

// Generator fills a fixed prompt template and submits it to the model
// through the limiter.
type Generator struct {
	Name        string
	Description string
	Failure     string

	template string
	model    llm.Provider
	limiter  *resilience.Limiter
	modelID  string
}

// NewRoadmapGenerator builds the roadmap prompt tool. A nil limiter gets a
// private one with default settings.
func NewRoadmapGenerator(model llm.Provider, limiter *resilience.Limiter, modelID string) *Generator {
	if limiter == nil {
		limiter = resilience.NewLimiter()
	}
	return &Generator{
		Name:        NameRoadmap,
		Description: "Useful for creating step-by-step roadmaps for learning paths, projects, or skill development. Input should be a topic or goal.",
		Failure:     RoadmapFailure,
		template:    roadmapTemplate,
		model:       model,
		limiter:     limiter,
		modelID:     modelID,
	}
}

// NewCodeHelper builds the coding prompt tool.
func NewCodeHelper(model llm.Provider, limiter *resilience.Limiter, modelID string) *Generator {
	if limiter == nil {
		limiter = resilience.NewLimiter()
	}
	return &Generator{
		Name:        NameCodeHelper,
		Description: "Useful for assisting with programming and coding problems. Input should be a coding question or problem description.",
		Failure:     CodeFailure,
		template:    codeTemplate,
		model:       model,
		limiter:     limiter,
		modelID:     modelID,
	}
}

// Prompt renders the template for input.
func (g *Generator) Prompt(input string) string {
	return fmt.Sprintf(g.template, input)
}

// Generate returns the model text, or an error when the call failed or the
// model produced nothing.
func (g *Generator) Generate(ctx context.Context, input string) (string, error) {
	if g.model == nil {
		return "", errors.New(errors.CodeLLMError, "no model configured", nil).WithKind(errors.KindFatal)
	}
	req := llm.UserPrompt(g.modelID, g.Prompt(input))
	resp, err := resilience.Call(ctx, g.limiter, func(ctx context.Context) (*llm.ChatResponse, error) {
		return g.model.Chat(ctx, req)
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.New(errors.CodeLLMError, "empty model reply", nil)
	}
	return text, nil
}

// Tool exposes the generator as a Tool that answers with the fixed failure
// text on error.
func (g *Generator) Tool() Tool {
	return New(g.Name, g.Description, func(ctx context.Context, input string) string {
		text, err := g.Generate(ctx, input)
		if err != nil {
			return g.Failure
		}
		return text
	})
}
