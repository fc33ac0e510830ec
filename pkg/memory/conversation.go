// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory holds the per-agent state that lives only in process: the
// bounded conversation window and the list of remembered facts.
package memory

import (
	"sync"

	"github.com/jllopis/neurosync/pkg/llm"
)

// DefaultWindow is the number of turns kept when no size is configured.
const DefaultWindow = 10

// Turn is one entry of the conversation window.
type Turn struct {
	Role    llm.Role `json:"role"` // user or assistant
	Content string   `json:"content"`
}

// WindowStrategy keeps only the last MaxTurns turns.
type WindowStrategy struct {
	MaxTurns int
}

// Truncate returns the tail of turns that fits the window.
func (w WindowStrategy) Truncate(turns []Turn) []Turn {
	max := w.MaxTurns
	if max <= 0 {
		max = DefaultWindow
	}
	if len(turns) <= max {
		return turns
	}
	return turns[len(turns)-max:]
}

// Window is an insertion-ordered conversation buffer. The oldest turn is
// evicted first once the strategy's size is exceeded.
type Window struct {
	mu       sync.RWMutex
	strategy WindowStrategy
	turns    []Turn
}

// NewWindow creates an empty window holding at most size turns.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{strategy: WindowStrategy{MaxTurns: size}}
}

// Append adds one turn and prunes the window.
func (w *Window) Append(role llm.Role, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = w.prune(append(w.turns, Turn{Role: role, Content: content}))
}

// AppendExchange adds a user turn followed by the assistant reply.
func (w *Window) AppendExchange(user, assistant string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = w.prune(append(w.turns,
		Turn{Role: llm.RoleUser, Content: user},
		Turn{Role: llm.RoleAssistant, Content: assistant},
	))
}

// ReplaceLast swaps the content of the newest turn when it has the given
// role. It reports whether a turn was replaced.
func (w *Window) ReplaceLast(role llm.Role, content string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.turns) == 0 || w.turns[len(w.turns)-1].Role != role {
		return false
	}
	w.turns[len(w.turns)-1].Content = content
	return true
}

// Seed replaces the window contents, keeping only the newest turns that fit.
func (w *Window) Seed(turns []Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = w.prune(append([]Turn(nil), turns...))
}

// Reset clears the window.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = nil
}

// Turns returns a copy of the window, oldest first.
func (w *Window) Turns() []Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Messages renders the window as chat messages.
func (w *Window) Messages() []llm.Message {
	w.mu.RLock()
	defer w.mu.RUnlock()
	msgs := make([]llm.Message, 0, len(w.turns))
	for _, t := range w.turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

// Len returns the number of turns held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.turns)
}

// Size returns the window capacity.
func (w *Window) Size() int {
	return w.strategy.MaxTurns
}

func (w *Window) prune(turns []Turn) []Turn {
	kept := w.strategy.Truncate(turns)
	if len(kept) == len(turns) {
		return turns
	}
	// Copy so evicted turns are not retained by the backing array.
	return append([]Turn(nil), kept...)
}
