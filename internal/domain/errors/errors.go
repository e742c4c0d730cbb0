// Package errors defines the typed error taxonomy shared by the planner, guard
// injector, validator, and executor. Every type embeds enough context to identify
// where in the pipeline it occurred and wraps an underlying cause where one exists.
package errors

import (
	"fmt"
	"strings"
)

// PlanningError represents a failure in one stage of the Planner Pipeline
// (optimization, draft, concretization, auto-fix, build-and-validate).
type PlanningError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning error at stage %s: %s", e.Stage, e.Message)
}

func (e *PlanningError) Unwrap() error { return e.Cause }

// NewPlanningError creates a new PlanningError for the given pipeline stage.
func NewPlanningError(stage, message string, cause error) *PlanningError {
	return &PlanningError{Stage: stage, Message: message, Cause: cause}
}

// ValidationError carries the Graph Validator's full result: hard errors that block
// execution and soft warnings that do not. A non-empty Errors slice makes the zero
// value itself report failure via Error().
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation passed with warnings: " + strings.Join(e.Warnings, "; ")
	}
	return fmt.Sprintf("validation failed (%d errors): %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// Failed reports whether the validation result contains any blocking errors.
func (e *ValidationError) Failed() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError from the accumulated errors and
// warnings of one validation pass.
func NewValidationError(errs, warnings []string) *ValidationError {
	return &ValidationError{Errors: errs, Warnings: warnings}
}

// ExtractionError represents a failure of every JSON recovery strategy the JSON
// Extractor tried against a raw LLM response.
type ExtractionError struct {
	Raw     string
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("json extraction error: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// NewExtractionError creates a new ExtractionError, retaining the raw text that
// could not be recovered for diagnostics.
func NewExtractionError(raw, message string, cause error) *ExtractionError {
	return &ExtractionError{Raw: raw, Message: message, Cause: cause}
}

// GuardError represents a Param-Guard Evaluator failure: the LLM response could not
// be recovered into a valid JSON object, or the shaped object failed schema
// validation.
type GuardError struct {
	NodeID      string
	Message     string
	RawResponse string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard error at node %s: %s", e.NodeID, e.Message)
}

// NewGuardError creates a new GuardError, retaining the raw LLM response for
// diagnostics.
func NewGuardError(nodeID, message, rawResponse string) *GuardError {
	return &GuardError{NodeID: nodeID, Message: message, RawResponse: rawResponse}
}

// ToolFailure represents a tool invocation that returned an error, or whose result
// matched one of the configured failure substrings.
type ToolFailure struct {
	ToolName string
	NodeID   string
	Detail   string
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("tool %q failed at node %s: %s", e.ToolName, e.NodeID, e.Detail)
}

// NewToolFailure creates a new ToolFailure.
func NewToolFailure(toolName, nodeID, detail string) *ToolFailure {
	return &ToolFailure{ToolName: toolName, NodeID: nodeID, Detail: detail}
}

// MissingOutputError represents a reference that named a node id with no recorded
// output (never produced, or skipped due to an upstream failure). It is never raised
// as a Go error by the Reference Resolver — a missing output is surfaced inline as a
// placeholder string — but is still typed so callers that want to detect the
// condition (e.g. for diagnostics or metrics) can do so without string matching.
type MissingOutputError struct {
	NodeID string
	Path   string
}

func (e *MissingOutputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("missing output: node %s has no output at path %s", e.NodeID, e.Path)
	}
	return fmt.Sprintf("missing output: node %s has no recorded output", e.NodeID)
}

// NewMissingOutputError creates a new MissingOutputError for the given node id and
// optional sub-path.
func NewMissingOutputError(nodeID, path string) *MissingOutputError {
	return &MissingOutputError{NodeID: nodeID, Path: path}
}

// ConfigurationError represents a misconfigured component at startup (missing
// environment variable, invalid value, unreachable collaborator).
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(component, message string) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: message}
}
