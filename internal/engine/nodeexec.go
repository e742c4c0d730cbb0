package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dagtask/planrunner/internal/domain"
	domainerrors "github.com/dagtask/planrunner/internal/domain/errors"
	"github.com/dagtask/planrunner/internal/llm"
	"github.com/dagtask/planrunner/internal/toolregistry"
)

// ChatClient is the narrow LLM capability an llm-executor node needs.
type ChatClient interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// ClientFactory builds a ChatClient bound to a specific endpoint config, used to
// stand up a one-off per-node client when a node's llm_config overrides the ambient
// endpoint.
type ClientFactory func(cfg llm.Config) ChatClient

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// LLMExecutor carries out an "llm" node: it picks the outgoing prompt from the
// node's resolved input, sends it to the chat-completion endpoint (the ambient one,
// or a per-node override built from llm_config), and strips any <think> reasoning
// block from the reply.
type LLMExecutor struct {
	chat       ChatClient
	baseConfig llm.Config
	newClient  ClientFactory
	limits     TruncationLimits
}

// NewLLMExecutor creates an LLMExecutor. newClient builds a ChatClient for a node
// whose llm_config overrides baseConfig; it may be nil if no node ever overrides the
// endpoint.
func NewLLMExecutor(chat ChatClient, baseConfig llm.Config, newClient ClientFactory, limits TruncationLimits) *LLMExecutor {
	return &LLMExecutor{chat: chat, baseConfig: baseConfig, newClient: newClient, limits: limits}
}

// Execute resolves which client and prompt to use for node, sends it, and returns
// the (think-tag-stripped) reply text.
func (e *LLMExecutor) Execute(ctx context.Context, node domain.Node, input map[string]any) (any, error) {
	client := e.chat
	if node.LLMConfig != nil && e.newClient != nil {
		client = e.newClient(mergeEndpointOverride(e.baseConfig, node.LLMConfig))
	}

	prompt := TruncateForDisplay(promptFor(node, input), e.limits.LLMInputMaxChars).(string)

	reply, err := client.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.ChatOptions{})
	if err != nil {
		return nil, fmt.Errorf("llm node %s: %w", node.ID, err)
	}
	return strings.TrimSpace(thinkTagPattern.ReplaceAllString(reply, "")), nil
}

func mergeEndpointOverride(base llm.Config, override *domain.EndpointOverride) llm.Config {
	cfg := base
	if override.APIKey != "" {
		cfg.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		cfg.BaseURL = override.BaseURL
	}
	if override.Model != "" {
		cfg.Model = override.Model
	}
	return cfg
}

// promptFor implements the node's prompt-selection rule: an explicit "prompt" input
// key wins outright, then "content", else the node's task plus the whole resolved
// input JSON-encoded.
func promptFor(node domain.Node, input map[string]any) string {
	if p, ok := input["prompt"].(string); ok && p != "" {
		return p
	}
	if c, ok := input["content"].(string); ok && c != "" {
		return c
	}
	if len(input) == 0 {
		return node.Task
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprintf("%s\n\ninput: %v", node.Task, input)
	}
	if node.Task == "" {
		return string(encoded)
	}
	return fmt.Sprintf("%s\n\ninput: %s", node.Task, encoded)
}

// ToolExecutor carries out a "tool" node by invoking the named tool through the Tool
// Registry collaborator. A result matching one of failureSubstrings is treated as a
// tool failure even though the invocation itself returned no Go error (Open Question
// 3: failure classification is a configurable substring list, not a hard-coded
// check).
type ToolExecutor struct {
	registry          toolregistry.Registry
	failureSubstrings []string
}

// NewToolExecutor creates a ToolExecutor.
func NewToolExecutor(registry toolregistry.Registry, failureSubstrings []string) *ToolExecutor {
	return &ToolExecutor{registry: registry, failureSubstrings: failureSubstrings}
}

// Execute invokes node.Tool with input as arguments.
func (e *ToolExecutor) Execute(ctx context.Context, node domain.Node, input map[string]any) (any, error) {
	if node.Tool == "" {
		return nil, domainerrors.NewToolFailure("", node.ID, "tool node has no tool name")
	}
	result, err := e.registry.Invoke(ctx, node.Tool, input)
	if err != nil {
		return nil, domainerrors.NewToolFailure(node.Tool, node.ID, err.Error())
	}
	if text, ok := resultText(result); ok {
		for _, substr := range e.failureSubstrings {
			if substr != "" && strings.Contains(text, substr) {
				return nil, domainerrors.NewToolFailure(node.Tool, node.ID, text)
			}
		}
	}
	return result, nil
}

func resultText(result any) (string, bool) {
	switch v := result.(type) {
	case string:
		return v, true
	case map[string]any:
		if errMsg, ok := v["error"].(string); ok {
			return errMsg, true
		}
	}
	return "", false
}

// GuardShaper is the narrow Param-Guard Evaluator capability a param_guard node
// needs.
type GuardShaper interface {
	Shape(ctx context.Context, nodeID, toolName string, toolSchema map[string]any, upstreamOutput any) (map[string]any, error)
}

// ParamGuardExecutor carries out a "param_guard" node: it looks up the guarded
// consumer's tool schema and shapes the referenced upstream output into arguments
// that satisfy it.
type ParamGuardExecutor struct {
	shaper   GuardShaper
	registry toolregistry.Registry
	workflow *domain.Workflow
}

// NewParamGuardExecutor creates a ParamGuardExecutor. workflow is used to look up the
// guarded consumer node's tool name at execution time (the node itself only carries
// guard_for/guard_sources ids).
func NewParamGuardExecutor(shaper GuardShaper, registry toolregistry.Registry, workflow *domain.Workflow) *ParamGuardExecutor {
	return &ParamGuardExecutor{shaper: shaper, registry: registry, workflow: workflow}
}

// Execute shapes the guarded consumer's resolved input template into arguments that
// satisfy its tool schema. input is node.Input resolved against prior outputs, so
// its "target_input_template" entry already holds the consumer's template with every
// "{STk.output...}" reference substituted for the real upstream value(s) — the raw
// data this guard exists to reshape.
func (e *ParamGuardExecutor) Execute(ctx context.Context, node domain.Node, input map[string]any) (any, error) {
	consumer, ok := e.workflow.NodeByID(node.GuardFor)
	if !ok {
		return nil, domainerrors.NewGuardError(node.ID, fmt.Sprintf("guarded node %q not found", node.GuardFor), "")
	}
	schema, _ := e.registry.Schema(consumer.Tool)

	upstream, ok := input["target_input_template"]
	if !ok {
		upstream = input
	}

	shaped, err := e.shaper.Shape(ctx, node.ID, consumer.Tool, schema, upstream)
	if err != nil {
		return nil, err
	}
	return shaped, nil
}
