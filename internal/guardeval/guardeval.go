// Package guardeval implements the Param-Guard Evaluator: the runtime behavior of a
// param_guard node. It asks the LLM to reshape an upstream node's raw output into
// arguments that satisfy a downstream tool's input schema, then validates the result.
package guardeval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	domainerrors "github.com/dagtask/planrunner/internal/domain/errors"
	"github.com/dagtask/planrunner/internal/extractor"
	"github.com/dagtask/planrunner/internal/llm"
)

// ChatClient is the narrow LLM capability the evaluator needs.
type ChatClient interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// Evaluator shapes an upstream node's output into schema-valid tool arguments via one
// LLM call plus JSON Schema validation of the result.
type Evaluator struct {
	chat   ChatClient
	logger zerolog.Logger
}

// New creates an Evaluator.
func New(chat ChatClient, logger zerolog.Logger) *Evaluator {
	return &Evaluator{chat: chat, logger: logger}
}

// Shape reshapes upstreamOutput into a JSON object satisfying toolSchema, for the
// tool named toolName consumed by node nodeID. It returns a *domainerrors.GuardError
// if the LLM response can't be recovered into a JSON object, or if the recovered
// object fails schema validation.
func (e *Evaluator) Shape(ctx context.Context, nodeID, toolName string, toolSchema map[string]any, upstreamOutput any) (map[string]any, error) {
	prompt, err := buildPrompt(toolName, toolSchema, upstreamOutput)
	if err != nil {
		return nil, fmt.Errorf("guardeval: building prompt: %w", err)
	}

	raw, err := e.chat.Complete(ctx, []llm.Message{
		{Role: "system", Content: guardSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.ChatOptions{Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("guardeval: llm call failed: %w", err)
	}

	shaped, err := extractor.ExtractObject(raw)
	if err != nil {
		e.logger.Warn().Str("node_id", nodeID).Msg("guard evaluator could not recover a JSON object from the response")
		return nil, domainerrors.NewGuardError(nodeID, "response did not contain a recoverable JSON object", raw)
	}

	if toolSchema != nil {
		if err := validateAgainstSchema(toolSchema, shaped); err != nil {
			return nil, domainerrors.NewGuardError(nodeID, fmt.Sprintf("shaped arguments failed schema validation: %v", err), raw)
		}
	}

	return shaped, nil
}

const guardSystemPrompt = `You are a parameter-shaping assistant. Given the output of a previous step and the
input schema of a tool, produce a single JSON object containing exactly the arguments
that tool expects, derived from the previous step's output. Respond with only the
JSON object, no commentary.`

func buildPrompt(toolName string, toolSchema map[string]any, upstreamOutput any) (string, error) {
	schemaJSON, err := json.Marshal(toolSchema)
	if err != nil {
		return "", err
	}
	outputJSON, err := json.Marshal(upstreamOutput)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Tool: %s\nInput schema: %s\nPrevious step output: %s\n", toolName, schemaJSON, outputJSON), nil
}

func validateAgainstSchema(schema map[string]any, value map[string]any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("guard-schema.json", schema); err != nil {
		return fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := compiler.Compile("guard-schema.json")
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return err
	}
	return nil
}
