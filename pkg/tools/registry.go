// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools defines the fixed set of named tools the router and the
// reasoning loop can call. Tools take one string and always return a string:
// failures inside a tool become descriptive text, never errors.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/neurosync/pkg/llm"
)

// Tool names. They are also shown to the model as routing hints.
const (
	NameWebSearch     = "Web Search"
	NameWikipedia     = "Wikipedia"
	NameCalculator    = "Calculator"
	NameKnowledgeBase = "Knowledge Base"
	NameAddKnowledge  = "Add Knowledge"
	NameRoadmap       = "Roadmap Generator"
	NameCodeHelper    = "Code Helper"
)

// Func is the body of a tool.
type Func func(ctx context.Context, input string) string

// Tool is a named capability with a description used for tool selection.
type Tool struct {
	Name        string
	Description string
	fn          Func
}

// New creates a Tool.
func New(name, description string, fn Func) Tool {
	return Tool{Name: name, Description: description, fn: fn}
}

// Invoke runs the tool.
func (t Tool) Invoke(ctx context.Context, input string) string {
	if t.fn == nil {
		return fmt.Sprintf("Tool %s is not available.", t.Name)
	}
	return t.fn(ctx, input)
}

// FunctionName returns the identifier used in function-calling requests,
// e.g. "Web Search" becomes "web_search".
func (t Tool) FunctionName() string {
	return FunctionName(t.Name)
}

// FunctionName converts a display name to a function-calling identifier.
func FunctionName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Definition describes the tool for a chat request. Every tool takes a
// single string argument named "input".
func (t Tool) Definition() llm.Tool {
	return llm.FunctionTool(t.FunctionName(), t.Description, "input", "Tool input")
}

// Registry is an immutable, ordered set of tools keyed by name.
type Registry struct {
	tools  []Tool
	byName map[string]int
}

// NewRegistry builds a registry. Names must be unique, case-insensitively.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(tools)*2)}
	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		key := FunctionName(t.Name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		r.byName[key] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Get looks a tool up by display name or function name.
func (r *Registry) Get(name string) (Tool, bool) {
	i, ok := r.byName[FunctionName(name)]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	return append([]Tool(nil), r.tools...)
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Definitions returns chat-request descriptors for every tool not excluded.
func (r *Registry) Definitions(exclude ...string) []llm.Tool {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[FunctionName(name)] = true
	}
	defs := make([]llm.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if skip[t.FunctionName()] {
			continue
		}
		defs = append(defs, t.Definition())
	}
	return defs
}

// Subset returns a registry holding only the named tools, in the given order.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	picked := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		picked = append(picked, t)
	}
	return NewRegistry(picked...)
}
