// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"log/slog"

	"github.com/jllopis/neurosync/pkg/memory"
)

// Deps are the collaborators of the standard tool set.
type Deps struct {
	Web          WebSearcher
	Encyclopedia Encyclopedia
	Knowledge    *memory.Knowledge
	Roadmap      *Generator
	Code         *Generator
	Logger       *slog.Logger
}

// Standard returns the seven tools in their canonical order: Web Search,
// Wikipedia, Calculator, Knowledge Base, Add Knowledge, Roadmap Generator,
// Code Helper.
func Standard(d Deps) (*Registry, error) {
	k := d.Knowledge
	if k == nil {
		k = memory.NewKnowledge()
	}
	list := []Tool{
		WebSearchTool(d.Web, d.Logger),
		WikipediaTool(d.Encyclopedia, d.Logger),
		CalculatorTool(),
		KnowledgeSearchTool(k),
		AddKnowledgeTool(k),
	}
	roadmap, code := d.Roadmap, d.Code
	if roadmap == nil {
		roadmap = NewRoadmapGenerator(nil, nil, "")
	}
	if code == nil {
		code = NewCodeHelper(nil, nil, "")
	}
	list = append(list, roadmap.Tool(), code.Tool())
	return NewRegistry(list...)
}

// Stateless returns the tools that need no per-agent state, for serving
// over MCP.
func Stateless(d Deps) (*Registry, error) {
	all, err := Standard(d)
	if err != nil {
		return nil, err
	}
	return all.Subset(NameWebSearch, NameWikipedia, NameCalculator)
}
