package history

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/storage"
	"gopkg.in/yaml.v3"
)

// tick returns a clock that advances one millisecond per call.
func tick(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "chats.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(ctx, db, WithClock(tick(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestAppendAndGetMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateConversation(ctx, 1, "first")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	before, _ := s.GetConversation(ctx, id)

	contents := []string{"hello", "hi there", "how are you", "fine"}
	for i, c := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		var meta map[string]any
		if role == "assistant" {
			meta = map[string]any{"route": "general"}
		}
		if _, err := s.AppendMessage(ctx, id, role, c, meta); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs, err := s.GetMessages(ctx, id)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(msgs))
	}
	for i, m := range msgs {
		if m.Content != contents[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, contents[i])
		}
		if i > 0 && m.Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("timestamps not monotonic at %d", i)
		}
	}
	if msgs[1].Metadata["route"] != "general" {
		t.Errorf("metadata not round-tripped: %v", msgs[1].Metadata)
	}
	if msgs[0].Metadata != nil {
		t.Errorf("expected nil metadata, got %v", msgs[0].Metadata)
	}

	after, _ := s.GetConversation(ctx, id)
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Error("expected updated_at to advance")
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessage(context.Background(), 42, "user", "hi", nil)
	if !stderrors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrderAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateConversation(ctx, 1, "a")
	b, _ := s.CreateConversation(ctx, 1, "b")
	s.CreateConversation(ctx, 2, "other user")
	s.AppendMessage(ctx, a, "user", "bump", nil)

	list, err := s.ListConversations(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != a || list[1].ID != b {
		t.Fatalf("unexpected order %+v", list)
	}

	if err := s.DeleteConversation(ctx, a); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	msgs, _ := s.GetMessages(ctx, a)
	if len(msgs) != 0 {
		t.Error("expected messages to cascade")
	}
	if err := s.DeleteConversation(ctx, a); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id, _ := s.CreateConversation(ctx, 1, "old")
	if err := s.RenameConversation(ctx, id, "new"); err != nil {
		t.Fatal(err)
	}
	c, _ := s.GetConversation(ctx, id)
	if c.Title != "new" {
		t.Errorf("title = %q", c.Title)
	}
	if err := s.RenameConversation(ctx, 99, "x"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchConversations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	golang, _ := s.CreateConversation(ctx, 1, "Learning Go")
	s.AppendMessage(ctx, golang, "user", "tell me about goroutines", nil)
	s.AppendMessage(ctx, golang, "assistant", "goroutines are cheap", nil)
	cooking, _ := s.CreateConversation(ctx, 1, "Recipes")
	s.AppendMessage(ctx, cooking, "user", "100% butter", nil)
	s.CreateConversation(ctx, 1, "Empty about goroutines")
	s.CreateConversation(ctx, 2, "goroutines elsewhere")

	tests := []struct {
		query string
		want  int
	}{
		{"goroutines", 2},
		{"learning", 1},
		{"100%", 1},
		{"%", 1},
		{"nothing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := s.SearchConversations(ctx, 1, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("SearchConversations(%q) returned %d, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.GetPreferences(ctx, 7)
	if err != nil || p != DefaultPreferences() {
		t.Fatalf("GetPreferences() = %+v, %v", p, err)
	}

	auto := true
	if err := s.SetPreferences(ctx, 7, nil, &auto); err != nil {
		t.Fatal(err)
	}
	light := ThemeLight
	if err := s.SetPreferences(ctx, 7, &light, nil); err != nil {
		t.Fatal(err)
	}
	p, _ = s.GetPreferences(ctx, 7)
	if p.Theme != ThemeLight || !p.AutoSummarize {
		t.Errorf("unexpected preferences %+v", p)
	}

	bad := "neon"
	if err := s.SetPreferences(ctx, 7, &bad, nil); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"short", "short"},
		{strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{strings.Repeat("b", 31), strings.Repeat("b", 30) + "..."},
	}
	for _, tt := range tests {
		if got := Title(tt.in); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func sampleMessages() []Message {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Message{
		{Role: "user", Content: "hi", Timestamp: ts},
		{Role: "assistant", Content: "hello!", Timestamp: ts.Add(time.Second)},
	}
}

func TestExportText(t *testing.T) {
	got := ExportText(sampleMessages())
	want := "NeuroSync Conversation Export\n" + strings.Repeat("=", 40) + "\n\n" +
		"2026-03-01 12:00:00 - USER: hi\n\n" +
		"2026-03-01 12:00:01 - NEUROSYNC: hello!\n"
	if got != want {
		t.Errorf("ExportText() =\n%q\nwant\n%q", got, want)
	}
}

func TestExportFormats(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	conv := &Conversation{ID: 1, Title: "t"}

	raw, err := Export(FormatJSON, conv, sampleMessages(), now)
	if err != nil {
		t.Fatal(err)
	}
	var doc Transcript
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc.Messages) != 2 || doc.Conversation.Title != "t" {
		t.Errorf("bad json export: %v %s", err, raw)
	}

	raw, err = Export(FormatYAML, conv, sampleMessages(), now)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil || generic["messages"] == nil {
		t.Errorf("bad yaml export: %v %s", err, raw)
	}

	if _, err := Export("pdf", conv, nil, now); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("expected invalid input for pdf, got %v", err)
	}
}

func TestComputeStats(t *testing.T) {
	st := ComputeStats(sampleMessages())
	if st.TotalMessages != 2 || st.UserMessages != 1 || st.AssistantMessages != 1 {
		t.Errorf("unexpected counts %+v", st)
	}
	if st.AvgUserLength != 2 || st.AvgAssistantLen != 6 {
		t.Errorf("unexpected averages %+v", st)
	}
	if st.StartTime == nil || !st.EndTime.After(*st.StartTime) {
		t.Errorf("unexpected time range %+v", st)
	}
	if empty := ComputeStats(nil); empty.StartTime != nil || empty.AvgUserLength != 0 {
		t.Errorf("unexpected empty stats %+v", empty)
	}
}
