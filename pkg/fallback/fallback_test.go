package fallback

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/memory"
	"github.com/jllopis/neurosync/pkg/telemetry"
)

func TestPrompt(t *testing.T) {
	history := []memory.Turn{
		{Role: llm.RoleUser, Content: "one"},
		{Role: llm.RoleAssistant, Content: "two"},
		{Role: llm.RoleUser, Content: "three"},
		{Role: llm.RoleAssistant, Content: "four"},
	}
	tests := []struct {
		name    string
		history []memory.Turn
		want    string
	}{
		{name: "no history", history: nil, want: "User: hi\nAssistant:"},
		{name: "last three turns", history: history, want: "Assistant: two User: three Assistant: four\nUser: hi\nAssistant:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Prompt("hi", tt.history); got != tt.want {
				t.Errorf("Prompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateWithoutModel(t *testing.T) {
	r := New(nil)
	if got := r.Generate(context.Background(), "hi", nil); got != Unavailable {
		t.Errorf("Generate() = %q, want %q", got, Unavailable)
	}
	if r.Probe(context.Background()) == nil {
		t.Error("expected probe error without a model")
	}
}

func TestGenerate(t *testing.T) {
	model := &llm.MockProvider{Response: "  local answer "}
	r := New(model, WithModelID("llama3.2"), WithLogger(telemetry.Discard()))

	if got := r.Generate(context.Background(), "hi", nil); got != "local answer" {
		t.Errorf("Generate() = %q", got)
	}
	req := model.LastRequest()
	if req.Model != "llama3.2" || req.MaxTokens != 200 || req.Temperature != 0.7 {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Messages[0].Content != "User: hi\nAssistant:" {
		t.Errorf("unexpected prompt %q", req.Messages[0].Content)
	}
}

func TestGenerateStripsEchoedPrompt(t *testing.T) {
	model := &llm.MockProvider{Response: "User: hi\nAssistant: hello there"}
	r := New(model, WithLogger(telemetry.Discard()))
	if got := r.Generate(context.Background(), "hi", nil); got != "hello there" {
		t.Errorf("Generate() = %q", got)
	}
}

func TestGenerateError(t *testing.T) {
	r := New(&llm.FailingMockProvider{Err: stderrors.New("connection refused")}, WithLogger(telemetry.Discard()))
	want := "I encountered an error with the local model: connection refused. Please try again later."
	if got := r.Generate(context.Background(), "hi", nil); got != want {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
}
