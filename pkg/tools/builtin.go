// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jllopis/neurosync/pkg/calc"
	"github.com/jllopis/neurosync/pkg/memory"
	"github.com/jllopis/neurosync/pkg/search"
)

// Fixed tool replies.
const (
	CalculatorFailure = "I couldn't calculate that expression. Please provide a valid mathematical expression."
	NoKnowledge       = "No knowledge available yet."
	NoWikipediaResult = "No good Wikipedia Search Result was found"

	// knowledgeShown is how many of the newest facts Knowledge Base returns.
	knowledgeShown = 5
	// wikipediaMaxChars bounds the text handed back to the model.
	wikipediaMaxChars = 4000
)

// WebSearcher finds current information on the web.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// Encyclopedia looks up reference articles.
type Encyclopedia interface {
	Lookup(ctx context.Context, query string) ([]search.Page, error)
}

// WebSearchTool wraps a WebSearcher.
func WebSearchTool(s WebSearcher, log *slog.Logger) Tool {
	return New(NameWebSearch,
		"Useful for finding current information, news, and facts about recent events. Input should be a search query.",
		func(ctx context.Context, input string) string {
			if s == nil {
				return "Web search is not configured."
			}
			results, err := s.Search(ctx, input)
			if err != nil {
				logger(log).WarnContext(ctx, "tool.web_search.error", "error", err)
				return fmt.Sprintf("Web search failed: %v", err)
			}
			if len(results) == 0 {
				return "No results found for: " + input
			}
			var b strings.Builder
			for i, r := range results {
				fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
				if r.Snippet != "" {
					fmt.Fprintf(&b, "   %s\n", r.Snippet)
				}
				fmt.Fprintf(&b, "   %s\n", r.URL)
			}
			return strings.TrimRight(b.String(), "\n")
		})
}

// WikipediaTool wraps an Encyclopedia.
func WikipediaTool(e Encyclopedia, log *slog.Logger) Tool {
	return New(NameWikipedia,
		"Useful for getting factual information about topics, concepts, people, places, and historical events. Input should be a specific search query.",
		func(ctx context.Context, input string) string {
			if e == nil {
				return "Wikipedia lookup is not configured."
			}
			pages, err := e.Lookup(ctx, input)
			if err != nil {
				logger(log).WarnContext(ctx, "tool.wikipedia.error", "error", err)
				return fmt.Sprintf("Wikipedia lookup failed: %v", err)
			}
			if len(pages) == 0 {
				return NoWikipediaResult
			}
			parts := make([]string, 0, len(pages))
			for _, p := range pages {
				parts = append(parts, fmt.Sprintf("Page: %s\nSummary: %s", p.Title, p.Summary))
			}
			out := strings.Join(parts, "\n\n")
			return truncate(out, wikipediaMaxChars)
		})
}

// CalculatorTool evaluates arithmetic. Anything outside the arithmetic
// alphabet is dropped before evaluation.
func CalculatorTool() Tool {
	return New(NameCalculator,
		"Useful for performing mathematical calculations and solving equations. Input should be a mathematical expression.",
		func(_ context.Context, input string) string {
			v, err := calc.Eval(input)
			if err != nil {
				return CalculatorFailure
			}
			return v.String()
		})
}

// KnowledgeSearchTool lists the newest remembered facts.
//
// The query is not used: the tool always returns the last facts regardless
// of what was asked.
func KnowledgeSearchTool(k *memory.Knowledge) Tool {
	return New(NameKnowledgeBase,
		"Useful for retrieving information that I've previously stored. Input should be a query about what you want to recall.",
		func(_ context.Context, _ string) string {
			facts := k.Recent(knowledgeShown)
			if len(facts) == 0 {
				return NoKnowledge
			}
			lines := make([]string, len(facts))
			for i, f := range facts {
				lines[i] = fmt.Sprintf("%d. %s", i+1, f)
			}
			return strings.Join(lines, "\n")
		})
}

// AddKnowledgeTool remembers a fact.
func AddKnowledgeTool(k *memory.Knowledge) Tool {
	return New(NameAddKnowledge,
		"Useful for storing important information that I should remember for future conversations. Input should be a clear fact or piece of information.",
		func(_ context.Context, fact string) string {
			k.Add(fact)
			return "Added to knowledge base: " + fact
		})
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
