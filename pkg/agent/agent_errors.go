// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/jllopis/neurosync/pkg/errors"
)

// WrapLLMError wraps a model call error with the model name. The kind of the
// cause is carried over so the router can still tell quota refusals apart.
func WrapLLMError(err error, model string) *errors.Error {
	if err == nil {
		return nil
	}
	kind := errors.KindOf(err)
	return errors.New(errors.CodeLLMError, "model call failed", err).
		WithKind(kind).
		WithContext("model", model).
		WithRecoverable(kind == errors.KindTransient)
}

// WrapToolError wraps a tool execution error with appropriate context.
func WrapToolError(err error, toolName, toolCallID string) *errors.Error {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed", err).
		WithContext("tool_name", toolName).
		WithContext("tool_call_id", toolCallID).
		WithRecoverable(true)
}

// WrapTimeoutError marks a reasoning loop that ran out of iterations. It is
// never retried.
func WrapTimeoutError(err error, operation string, maxIterations int) *errors.Error {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeTimeout, "operation exceeded max iterations", err).
		WithKind(errors.KindFatal).
		WithContext("operation", operation).
		WithContext("max_iterations", maxIterations).
		WithRecoverable(false)
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.Error {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}

// failureOf maps an error onto the Reply failure class.
func failureOf(err error) Failure {
	if err == nil {
		return FailureNone
	}
	switch errors.KindOf(err) {
	case errors.KindTransient:
		return FailureTransient
	case errors.KindFatal:
		return FailureFatal
	default:
		return FailureUnknown
	}
}
