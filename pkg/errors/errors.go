// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed errors with context for NeuroSync.
//
// Every error carries a Code for monitoring and a Kind that drives the
// retry policy of outbound model calls.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode classifies NeuroSync errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeToolFailure indicates a tool execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates the remote model refused the call for quota reasons.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnauthorized indicates authentication failed or the session expired.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeConflict indicates a uniqueness constraint was violated.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeStorageError indicates a persistence failure.
	CodeStorageError ErrorCode = "STORAGE_ERROR"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"
)

// Kind tells callers whether an error is worth retrying.
type Kind int

const (
	// KindUnknown is used when nothing is known about the failure.
	KindUnknown Kind = iota
	// KindTransient marks capacity errors (quota, rate limit) that may succeed later.
	KindTransient
	// KindFatal marks errors that will fail again if retried.
	KindFatal
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Kind        Kind
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int // HTTP status used by the API layer
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code        string                 `json:"code"`
		Kind        string                 `json:"kind"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Kind:        e.Kind.String(),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Kind:       codeToKind(code),
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithKind overrides the kind derived from the code.
func (e *Error) WithKind(kind Kind) *Error {
	e.Kind = kind
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// As attempts to convert an error to an *Error.
// Unknown errors are wrapped as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if stderrors.As(err, &te) {
		return te
	}
	return New(CodeInternal, "wrapped error", err).WithKind(KindOf(err))
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var te *Error
	if stderrors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var te *Error
	return stderrors.As(err, &te) && te.Code == code
}

// quotaMarkers are matched case-insensitively against error text when no typed
// kind is available. Remote SDKs report quota exhaustion only in message text.
var quotaMarkers = []string{"429", "quota", "rate"}

// KindOf classifies err. A typed kind on any *Error in the chain wins;
// otherwise the error text is checked for quota markers.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if te, ok := e.(*Error); ok && te.Kind != KindUnknown {
			return te.Kind
		}
	}
	if MentionsQuota(err.Error()) {
		return KindTransient
	}
	return KindUnknown
}

// IsTransient reports whether err is a capacity error worth one retry.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// MentionsQuota reports whether text contains one of the quota markers.
func MentionsQuota(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// codeToKind maps codes to their default retry kind.
func codeToKind(code ErrorCode) Kind {
	switch code {
	case CodeRateLimit:
		return KindTransient
	case CodeInvalidInput, CodeUnauthorized, CodeNotFound, CodeConflict:
		return KindFatal
	default:
		return KindUnknown
	}
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeUnauthorized:
		return 401
	case CodeInvalidInput:
		return 400
	case CodeConflict:
		return 409
	case CodeTimeout:
		return 408
	case CodeRateLimit:
		return 429
	default:
		return 500
	}
}
