// Package tools provides the tool registry, the JSON Schema validated
// invocation pipeline, and the built-in tools available to the model.
//
// This file defines the error taxonomy tools and the pipeline surface.
package tools

import (
	"errors"
	"fmt"
)

// ErrExecutionDenied is returned when the security policy gates a tool
// and the user declines. Distinct from any tool-internal error so the
// model can tell "you may not" from "it broke".
var ErrExecutionDenied = errors.New("execution denied by user")

// InvalidArgumentsError reports tool-call arguments that failed to parse
// or failed schema validation. Details must carry enough context (the
// missing property, the mismatched type) for the model to self-correct
// on its next turn.
type InvalidArgumentsError struct {
	ToolName string
	Details  string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.ToolName, e.Details)
}

// ToolUnavailableError is returned when a tool call targets a tool that
// is not present in the registry. This indicates a registry/model
// mismatch, not a transient failure, and is never classified as an
// argument error.
type ToolUnavailableError struct {
	ToolName string
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("tool %q is not available", e.ToolName)
}

// ExecutionError reports a subprocess-style tool that ran and failed
// (non-zero exit).
type ExecutionError struct {
	Command string
	Stderr  string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed for command %q: %s", e.Command, e.Stderr)
}

// ResourceNotFoundError reports a missing file or directory.
type ResourceNotFoundError struct {
	Path string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Path)
}

// PermissionDeniedError reports an operating-system permission failure.
type PermissionDeniedError struct {
	Resource string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Resource)
}

// NetworkError reports an outbound request failure from a tool.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
