// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("network timeout")
	e := New(CodeTimeout, "tool execution timed out", cause)

	if e.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", e.Code)
	}
	if e.Message != "tool execution timed out" {
		t.Errorf("expected message 'tool execution timed out', got %q", e.Message)
	}
	if e.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(e, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	e := New(CodeToolFailure, "tool failed", nil)
	e.WithContext("tool", "Calculator").
		WithContext("input", "2/0")

	if e.Context["tool"] != "Calculator" {
		t.Errorf("expected context tool to be 'Calculator'")
	}
	if e.Context["input"] != "2/0" {
		t.Errorf("expected context input to be set")
	}
}

func TestWithRecoverable(t *testing.T) {
	e := New(CodeToolFailure, "network error", nil)
	if e.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}

	e.WithRecoverable(true)
	if !e.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		e        *Error
		expected string
	}{
		{
			name:     "with cause",
			e:        New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			e:        New(CodeNotFound, "conversation not found", nil),
			expected: "[NOT_FOUND] conversation not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.e.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "typed error", err: New(CodeToolFailure, "failed", nil), expected: CodeToolFailure},
		{name: "wrapped typed error", err: fmt.Errorf("outer: %w", New(CodeConflict, "dup", nil)), expected: CodeConflict},
		{name: "generic error", err: errors.New("generic error"), expected: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := As(tt.err)
			if tt.expected == "" {
				if e != nil {
					t.Errorf("expected nil for nil error")
				}
				return
			}
			if e == nil {
				t.Fatalf("expected non-nil error")
			}
			if e.Code != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, e.Code)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "status 429 text", err: errors.New("Error 429, Message: slow down"), want: KindTransient},
		{name: "quota text", err: errors.New("Resource has been exhausted (e.g. check QUOTA)."), want: KindTransient},
		{name: "rate text", err: errors.New("Rate limit reached"), want: KindTransient},
		{name: "plain transport error", err: errors.New("connection refused"), want: KindUnknown},
		{name: "typed rate limit", err: New(CodeRateLimit, "slow down", nil), want: KindTransient},
		{name: "typed fatal", err: New(CodeInvalidInput, "bad request", nil), want: KindFatal},
		{name: "explicit kind wins over code", err: New(CodeLLMError, "boom", nil).WithKind(KindFatal), want: KindFatal},
		{name: "inner typed kind under untyped wrapper", err: fmt.Errorf("outer: %w", New(CodeLLMError, "boom", nil).WithKind(KindFatal)), want: KindFatal},
		{name: "inner typed kind under unknown wrapper", err: New(CodeLLMError, "outer", New(CodeRateLimit, "slow", nil)), want: KindTransient},
		{name: "typed unknown falls back to text", err: New(CodeLLMError, "boom", errors.New("429")), want: KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	e := New(CodeToolFailure, "tool failed", errors.New("network error"))
	e.WithContext("tool", "Web Search").WithRecoverable(true)

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "TOOL_FAILURE" {
		t.Errorf("expected code 'TOOL_FAILURE', got %v", result["code"])
	}
	if result["error"] != "network error" {
		t.Errorf("expected error 'network error', got %v", result["error"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{CodeNotFound, 404},
		{CodeUnauthorized, 401},
		{CodeInvalidInput, 400},
		{CodeConflict, 409},
		{CodeTimeout, 408},
		{CodeRateLimit, 429},
		{CodeInternal, 500},
		{CodeStorageError, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			e := New(tt.code, "test", nil)
			if e.StatusCode != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, e.StatusCode)
			}
		})
	}
}
