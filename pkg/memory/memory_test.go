// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"fmt"
	"testing"

	"github.com/jllopis/neurosync/pkg/llm"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(10)
	for i := 1; i <= 11; i++ {
		w.Append(llm.RoleUser, fmt.Sprintf("m%d", i))
	}

	turns := w.Turns()
	if len(turns) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(turns))
	}
	if turns[0].Content != "m2" {
		t.Errorf("expected oldest turn to be evicted, first is %q", turns[0].Content)
	}
	if turns[9].Content != "m11" {
		t.Errorf("expected newest turn last, got %q", turns[9].Content)
	}
}

func TestWindowAppendExchange(t *testing.T) {
	w := NewWindow(3)
	w.AppendExchange("q1", "a1")
	w.AppendExchange("q2", "a2")

	turns := w.Turns()
	want := []Turn{
		{Role: llm.RoleAssistant, Content: "a1"},
		{Role: llm.RoleUser, Content: "q2"},
		{Role: llm.RoleAssistant, Content: "a2"},
	}
	if len(turns) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(turns))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestWindowSeedAndReset(t *testing.T) {
	w := NewWindow(2)
	w.Seed([]Turn{
		{Role: llm.RoleUser, Content: "old"},
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, Content: "a"},
	})
	if w.Len() != 2 {
		t.Fatalf("expected seed to be pruned to 2, got %d", w.Len())
	}
	msgs := w.Messages()
	if msgs[0].Content != "q" || msgs[1].Role != llm.RoleAssistant {
		t.Errorf("unexpected messages %+v", msgs)
	}

	w.Reset()
	if w.Len() != 0 {
		t.Errorf("expected empty window after reset")
	}
}

func TestWindowTurnsIsCopy(t *testing.T) {
	w := NewWindow(0)
	if w.Size() != DefaultWindow {
		t.Errorf("expected default size %d, got %d", DefaultWindow, w.Size())
	}
	w.Append(llm.RoleUser, "hi")
	turns := w.Turns()
	turns[0].Content = "changed"
	if w.Turns()[0].Content != "hi" {
		t.Error("Turns must return a copy")
	}
}

func TestKnowledgeRecent(t *testing.T) {
	k := NewKnowledge()
	if got := k.Recent(5); len(got) != 0 {
		t.Fatalf("expected no facts, got %v", got)
	}
	for i := 1; i <= 7; i++ {
		k.Add(fmt.Sprintf("F%d", i))
	}
	k.Add("F7")

	got := k.Recent(5)
	want := []string{"F4", "F5", "F6", "F7", "F7"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fact %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if k.Len() != 8 || len(k.All()) != 8 {
		t.Errorf("expected duplicates to be kept")
	}
	for _, n := range []int{0, -1} {
		if got := k.Recent(n); got == nil || len(got) != 0 {
			t.Errorf("Recent(%d) = %v, want an empty list", n, got)
		}
	}
}

func TestWindowReplaceLast(t *testing.T) {
	w := NewWindow(4)
	if w.ReplaceLast(llm.RoleAssistant, "x") {
		t.Fatal("empty window has nothing to replace")
	}
	w.AppendExchange("hi", "failure text")
	if !w.ReplaceLast(llm.RoleAssistant, "local answer") {
		t.Fatal("expected the assistant turn to be replaced")
	}
	if w.ReplaceLast(llm.RoleUser, "x") {
		t.Error("last turn is not a user turn")
	}
	turns := w.Turns()
	if len(turns) != 2 || turns[0].Content != "hi" || turns[1].Content != "local answer" {
		t.Errorf("unexpected turns %+v", turns)
	}
}
