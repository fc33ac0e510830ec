package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedMockProvider returns a pre-defined sequence of responses.
// Used to drive multi-step tool-calling loops in tests.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []ChatResponse
	Err       error
	// CallCount tracks how many times Chat has been called
	CallCount int
	// Requests holds every request received, in order.
	Requests []ChatRequest
}

// NewScriptedMockProvider creates a ScriptedMockProvider that answers with
// plain text responses in order.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	s := &ScriptedMockProvider{}
	for _, r := range responses {
		s.Responses = append(s.Responses, ChatResponse{Content: r})
	}
	return s
}

// Chat pops the next scripted response or returns the configured error.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	msgs := make([]Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return nil, s.Err
	}

	if len(s.Responses) == 0 {
		return nil, errors.New("scripted mock: no more responses available")
	}

	resp := s.Responses[0]
	s.Responses = s.Responses[1:]
	if resp.Usage.TotalTokens == 0 {
		resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	}
	return &resp, nil
}

// AddResponse appends a text response to the queue.
func (s *ScriptedMockProvider) AddResponse(response string) {
	s.AddChatResponse(ChatResponse{Content: response})
}

// AddToolCall appends a response that asks for one tool invocation.
func (s *ScriptedMockProvider) AddToolCall(name, arguments string) {
	s.AddChatResponse(ChatResponse{
		ToolCalls: []ToolCall{{
			ID:       name,
			Type:     ToolTypeFunction,
			Function: FunctionCall{Name: name, Arguments: arguments},
		}},
	})
}

// AddChatResponse appends a full response to the queue.
func (s *ScriptedMockProvider) AddChatResponse(resp ChatResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, resp)
}

// Calls returns the number of Chat invocations so far.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount
}
