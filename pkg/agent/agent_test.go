package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/memory"
	"github.com/jllopis/neurosync/pkg/resilience"
	"github.com/jllopis/neurosync/pkg/telemetry"
	"github.com/jllopis/neurosync/pkg/tools"
)

func instantLimiter() *resilience.Limiter {
	return resilience.NewLimiter(resilience.WithClock(time.Now, func(context.Context, time.Duration) error { return nil }))
}

func unreachableReasoner(t *testing.T) Reasoner {
	return ReasonerFunc(func(context.Context, ReasonInput) (string, error) {
		t.Error("reasoner must not be called on a keyword route")
		return "", nil
	})
}

func newTestAgent(t *testing.T, opts ...Option) *Agent {
	t.Helper()
	base := []Option{WithLogger(telemetry.Discard())}
	a, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    Route
	}{
		{"Give me a roadmap for Go", RouteRoadmap},
		{"what is a good LEARNING PATH for ML", RouteRoadmap},
		{"explain step by step", RouteRoadmap},
		{"plan a python course", RouteRoadmap},
		{"Write a Python script", RouteCode},
		{"sorting ALGORITHM please", RouteCode},
		{"JavaScript closures", RouteCode},
		{"What is the capital of France?", RouteGeneral},
		{"", RouteGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := Classify(tt.message); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}

func TestNewRequiresReasoner(t *testing.T) {
	if _, err := New(); !stderrors.Is(err, ErrMissingReasoner) {
		t.Fatalf("expected ErrMissingReasoner, got %v", err)
	}
	if _, err := New(WithReasoner(ReasonerFunc(nil)), WithWindow(0)); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestRespondRoadmapRoute(t *testing.T) {
	roadmapModel := &llm.MockProvider{Response: "Phase 1: basics"}
	codeModel := &llm.MockProvider{Response: "unused"}
	limiter := instantLimiter()
	a := newTestAgent(t,
		WithReasoner(unreachableReasoner(t)),
		WithGenerators(
			tools.NewRoadmapGenerator(roadmapModel, limiter, "m"),
			tools.NewCodeHelper(codeModel, limiter, "m"),
		),
	)

	reply := a.Respond(context.Background(), "I need a Roadmap to learn Python")
	if reply.Route != RouteRoadmap {
		t.Fatalf("expected roadmap route, got %s", reply.Route)
	}
	if reply.Text != "Phase 1: basics" || reply.Failed() {
		t.Errorf("unexpected reply %+v", reply)
	}
	if codeModel.Calls() != 0 {
		t.Error("code helper must not be called when a roadmap trigger matches")
	}
	prompt := roadmapModel.LastRequest().Messages[0].Content
	if !strings.Contains(prompt, "Create a detailed roadmap for: I need a Roadmap to learn Python") {
		t.Errorf("unexpected prompt %q", prompt)
	}

	history := a.History()
	if len(history) != 2 || history[0].Role != llm.RoleUser || history[1].Content != "Phase 1: basics" {
		t.Errorf("unexpected memory %+v", history)
	}
}

func TestRespondCodeRoute(t *testing.T) {
	codeModel := &llm.MockProvider{Response: "```go\nfmt.Println()\n```"}
	a := newTestAgent(t,
		WithReasoner(unreachableReasoner(t)),
		WithGenerators(
			tools.NewRoadmapGenerator(&llm.FailingMockProvider{}, instantLimiter(), ""),
			tools.NewCodeHelper(codeModel, instantLimiter(), ""),
		),
	)

	reply := a.Respond(context.Background(), "write a FUNCTION that reverses a string")
	if reply.Route != RouteCode || reply.Text != codeModel.Response {
		t.Errorf("unexpected reply %+v", reply)
	}
}

func TestRespondGeneratorFailure(t *testing.T) {
	a := newTestAgent(t,
		WithReasoner(unreachableReasoner(t)),
		WithGenerators(
			tools.NewRoadmapGenerator(&llm.FailingMockProvider{}, instantLimiter(), ""),
			tools.NewCodeHelper(&llm.FailingMockProvider{}, instantLimiter(), ""),
		),
	)

	reply := a.Respond(context.Background(), "timeline for my project")
	if reply.Text != tools.RoadmapFailure {
		t.Errorf("expected roadmap failure text, got %q", reply.Text)
	}
	if reply.Failure != FailureUnknown {
		t.Errorf("expected unknown failure, got %s", reply.Failure)
	}
	if len(a.History()) != 2 {
		t.Errorf("expected both turns stored on failure, got %d", len(a.History()))
	}
}

func TestRespondGeneralUsesTools(t *testing.T) {
	model := llm.NewScriptedMockProvider()
	model.AddToolCall("calculator", `{"input":"2+2"}`)
	model.AddResponse("The answer is 4.")

	a := newTestAgent(t, WithReasoner(NewToolLoop(model, instantLimiter(), WithLoopLogger(telemetry.Discard()))))

	reply := a.Respond(context.Background(), "How much is 2 and 2?")
	if reply.Route != RouteGeneral || reply.Text != "The answer is 4." || reply.Failed() {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if model.Calls() != 2 {
		t.Fatalf("expected 2 model calls, got %d", model.Calls())
	}

	first := model.Requests[0]
	if first.Messages[0].Role != llm.RoleSystem {
		t.Errorf("expected system prompt first, got %s", first.Messages[0].Role)
	}
	offered := map[string]bool{}
	for _, def := range first.Tools {
		offered[def.Function.Name] = true
	}
	if len(first.Tools) != 5 || offered["roadmap_generator"] || offered["code_helper"] {
		t.Errorf("unexpected tool offer %v", offered)
	}

	second := model.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool || last.Content != "4" || last.ToolCallID != "calculator" {
		t.Errorf("expected calculator result fed back, got %+v", last)
	}
}

func TestRespondSharesKnowledgeWithTools(t *testing.T) {
	model := llm.NewScriptedMockProvider()
	model.AddToolCall("add_knowledge", `{"input":"Gophers like Go"}`)
	model.AddResponse("Noted.")

	a := newTestAgent(t, WithReasoner(NewToolLoop(model, instantLimiter())))
	a.Respond(context.Background(), "Remember that gophers like Go")

	facts := a.Facts()
	if len(facts) != 1 || facts[0] != "Gophers like Go" {
		t.Errorf("expected fact stored through the tool, got %v", facts)
	}
}

func TestRespondFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		text    string
		failure Failure
	}{
		{name: "quota", err: stderrors.New("429 Resource has been exhausted"), text: TransientFailure, failure: FailureTransient},
		{name: "typed rate limit", err: errors.New(errors.CodeRateLimit, "slow down", nil), text: TransientFailure, failure: FailureTransient},
		{name: "fatal", err: errors.New(errors.CodeInvalidInput, "bad request", nil), text: GenericFailure, failure: FailureFatal},
		{name: "transport", err: stderrors.New("connection refused"), text: GenericFailure, failure: FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t, WithReasoner(ReasonerFunc(func(context.Context, ReasonInput) (string, error) {
				return "", tt.err
			})))
			reply := a.Respond(context.Background(), "hello")
			if reply.Text != tt.text || reply.Failure != tt.failure {
				t.Errorf("got %+v, want text %q failure %s", reply, tt.text, tt.failure)
			}
			history := a.History()
			if len(history) != 2 || history[1].Content != tt.text {
				t.Errorf("expected failure text in memory, got %+v", history)
			}
		})
	}

	if TransientFailure == GenericFailure {
		t.Error("failure texts must be distinguishable")
	}
}

func TestRespondEmptyReasonerText(t *testing.T) {
	a := newTestAgent(t, WithReasoner(ReasonerFunc(func(context.Context, ReasonInput) (string, error) {
		return "  ", nil
	})))
	reply := a.Respond(context.Background(), "hi")
	if reply.Text == "" || reply.Failure != FailureUnknown {
		t.Errorf("expected non-empty failure reply, got %+v", reply)
	}
}

func TestToolLoopMaxIterations(t *testing.T) {
	model := llm.NewScriptedMockProvider()
	for i := 0; i < 3; i++ {
		model.AddToolCall("calculator", `{"input":"1+1"}`)
	}
	loop := NewToolLoop(model, instantLimiter(), WithMaxIterations(2))

	_, err := loop.Reason(context.Background(), ReasonInput{Message: "loop"})
	if err == nil {
		t.Fatal("expected error after max iterations")
	}
	if errors.KindOf(err) != errors.KindFatal {
		t.Errorf("expected fatal kind, got %v", errors.KindOf(err))
	}
	if model.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", model.Calls())
	}
}

func TestToolLoopTransientErrorKeepsKind(t *testing.T) {
	model := &llm.MockProvider{Err: errors.New(errors.CodeRateLimit, "quota", nil)}
	loop := NewToolLoop(model, instantLimiter(), WithModelID("gemini-test"))

	_, err := loop.Reason(context.Background(), ReasonInput{Message: "hi"})
	if !errors.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if model.Calls() != 2 {
		t.Errorf("expected one retry through the limiter, got %d calls", model.Calls())
	}
}

func TestToolLoopRejectsExcludedTool(t *testing.T) {
	model := llm.NewScriptedMockProvider()
	model.AddToolCall("roadmap_generator", `{"input":"go"}`)
	model.AddResponse("ok")

	a := newTestAgent(t, WithReasoner(NewToolLoop(model, instantLimiter())))
	a.Respond(context.Background(), "tell me about go")

	second := model.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Content != "Unknown tool: roadmap_generator" {
		t.Errorf("expected excluded tool to be refused, got %q", last.Content)
	}
}

func TestToolLoopRecoversToolPanic(t *testing.T) {
	model := llm.NewScriptedMockProvider()
	model.AddToolCall("calculator", `{"input":"1+1"}`)
	model.AddResponse("recovered")

	registry, err := tools.NewRegistry(tools.New(tools.NameCalculator, "Evaluates arithmetic.", func(context.Context, string) string {
		panic("boom")
	}))
	if err != nil {
		t.Fatal(err)
	}
	loop := NewToolLoop(model, instantLimiter(), WithLoopLogger(telemetry.Discard()))

	text, err := loop.Reason(context.Background(), ReasonInput{Message: "add", Tools: registry})
	if err != nil || text != "recovered" {
		t.Fatalf("expected the loop to continue after a tool panic, got %q (%v)", text, err)
	}
	second := model.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Content != "Tool Calculator failed unexpectedly." {
		t.Errorf("unexpected tool result %q", last.Content)
	}
}

func TestCallToolWrapsPanic(t *testing.T) {
	tool := tools.New(tools.NameWikipedia, "", func(context.Context, string) string { panic("nil page") })
	_, failure := callTool(context.Background(), tool, "call-1", "go")
	if failure == nil {
		t.Fatal("expected a failure")
	}
	if failure.Code != errors.CodeToolFailure || failure.Context["tool_call_id"] != "call-1" {
		t.Errorf("unexpected failure %+v", failure)
	}
	if failure.RecoverableString() != "true" || !strings.Contains(failure.Error(), "panic: nil page") {
		t.Errorf("unexpected failure %v", failure)
	}

	ok := tools.New(tools.NameWikipedia, "", func(context.Context, string) string { return "page" })
	if got, failure := callTool(context.Background(), ok, "call-2", "go"); got != "page" || failure != nil {
		t.Errorf("got %q, %v", got, failure)
	}
}

func TestMemoryIsBounded(t *testing.T) {
	a := newTestAgent(t, WithReasoner(ReasonerFunc(func(_ context.Context, in ReasonInput) (string, error) {
		if len(in.History) > memory.DefaultWindow {
			t.Errorf("history exceeds window: %d", len(in.History))
		}
		return "ack " + in.Message, nil
	})))

	for i := 1; i <= 6; i++ {
		a.Respond(context.Background(), fmt.Sprintf("msg %d", i))
	}
	history := a.History()
	if len(history) != memory.DefaultWindow {
		t.Fatalf("expected %d turns, got %d", memory.DefaultWindow, len(history))
	}
	if history[0].Content != "msg 2" {
		t.Errorf("expected oldest exchange evicted, first turn is %q", history[0].Content)
	}

	a.Reset()
	if len(a.History()) != 0 {
		t.Error("expected empty memory after Reset")
	}
}

func TestSeedFeedsReasoner(t *testing.T) {
	var got []llm.Message
	a := newTestAgent(t, WithReasoner(ReasonerFunc(func(_ context.Context, in ReasonInput) (string, error) {
		got = in.History
		return "ok", nil
	})))
	a.Seed([]memory.Turn{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	})
	a.Respond(context.Background(), "follow up")

	if len(got) != 2 || got[0].Content != "earlier question" {
		t.Errorf("expected seeded history, got %+v", got)
	}
}

func TestSummaryPrompt(t *testing.T) {
	prompt := SummaryPrompt([]memory.Turn{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	})
	want := "Summarize this conversation in 3-4 bullet points:\nUSER: hi\nASSISTANT: hello"
	if prompt != want {
		t.Errorf("SummaryPrompt() = %q, want %q", prompt, want)
	}
}

func TestToolInput(t *testing.T) {
	tests := []struct {
		args string
		want string
	}{
		{`{"input":"2+2"}`, "2+2"},
		{`{"query":"golang"}`, "golang"},
		{`"bare"`, "bare"},
		{`not json`, "not json"},
		{``, ""},
		{`{"n":1}`, ""},
	}
	for _, tt := range tests {
		if got := toolInput(tt.args); got != tt.want {
			t.Errorf("toolInput(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
