// Package llm defines the chat model contract shared by the remote reasoning
// backend and the local fallback model.
package llm

import "context"

// Role names the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolType is the kind of a Tool. Only functions exist.
type ToolType string

const ToolTypeFunction ToolType = "function"

// FunctionDef describes a callable function. Parameters holds a JSON
// schema object.
type FunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// Tool is offered to the model with a request.
type Tool struct {
	Type     ToolType    `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionCall carries the arguments as a raw JSON document.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     ToolType     `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is one entry of the conversation sent to the model. ToolCallID
// links a tool result to the call it answers.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ChatRequest is one model call. Zero Temperature and MaxTokens keep the
// backend defaults.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse holds either final text or tool calls, or both.
type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Usage reports token counts when the backend returns them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is a chat model backend.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// UserPrompt builds a single-turn request for prompt-template tools.
func UserPrompt(model, prompt string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// FunctionTool describes a function taking a single required string
// argument named arg.
func FunctionTool(name, description, arg, argDescription string) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: FunctionDef{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					arg: map[string]any{"type": "string", "description": argDescription},
				},
				"required": []string{arg},
			},
		},
	}
}
