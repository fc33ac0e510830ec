// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the NeuroSync CLI.
package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/neurosync/pkg/errors"
)

// CLIError wraps a typed error with a hint for the user.
type CLIError struct {
	Err  *errors.Error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Err: e, Hint: hint}
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the typed error.
func (e *CLIError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// Print writes the error to w, as one JSON line when asJSON is set.
func (e *CLIError) Print(w io.Writer, asJSON bool) {
	if e.Err == nil {
		fmt.Fprintln(w, "Error: unknown error")
		return
	}
	if asJSON {
		payload := map[string]map[string]string{"error": {
			"code":    string(e.Err.Code),
			"message": e.Err.Message,
			"hint":    e.Hint,
		}}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", FormatErrorCode(e.Err.Code), e.Err.Message)
	if e.Err.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", e.Err.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewInvalidArgumentError reports a bad flag or argument.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithRecoverable(false)
	return NewCLIError(e, "run 'neurosync help' for usage information")
}

// NewConfigError reports a configuration that cannot be loaded or used.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)
	hint := "check your configuration values"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(e, hint)
}

// NewStorageError reports a database that cannot be opened.
func NewStorageError(err error, path string) *CLIError {
	e := errors.New(errors.CodeStorageError, "cannot open database", err).
		WithContext("path", path)
	return NewCLIError(e, fmt.Sprintf("check that the directory of %s exists and is writable", path))
}

// NewProviderError reports a model backend that cannot be created.
func NewProviderError(err error, provider string) *CLIError {
	e := errors.New(errors.CodeLLMError, "cannot create model provider", err).
		WithContext("provider", provider)
	return NewCLIError(e, "set GOOGLE_API_KEY or llm.api_key, or use --set llm.provider=mock")
}

// NewRegistrationError reports a refused user registration.
func NewRegistrationError(message string) *CLIError {
	e := errors.New(errors.CodeConflict, message, nil)
	return NewCLIError(e, "choose another username or email")
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodeNotFound:
		return "Not Found"
	case errors.CodeUnauthorized:
		return "Unauthorized"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeRateLimit:
		return "Rate Limited"
	case errors.CodeToolFailure:
		return "Tool Failure"
	case errors.CodeLLMError:
		return "LLM Error"
	case errors.CodeStorageError:
		return "Storage Error"
	case errors.CodeConflict:
		return "Conflict"
	default:
		return string(code)
	}
}

// printError renders any error, typed or not.
func printError(w io.Writer, err error, asJSON bool) {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		cliErr.Print(w, asJSON)
		return
	}
	if asJSON {
		_ = json.NewEncoder(w).Encode(map[string]map[string]string{"error": {
			"code":    string(errors.CodeOf(err)),
			"message": err.Error(),
		}})
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err.Error())
}
