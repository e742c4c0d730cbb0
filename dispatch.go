package taskflow

import (
	"github.com/rs/zerolog"

	"github.com/dagtask/planrunner/internal/domain"
	"github.com/dagtask/planrunner/internal/engine"
	"github.com/dagtask/planrunner/internal/guardeval"
	"github.com/dagtask/planrunner/internal/llm"
)

// TraceSink receives a TraceEntry each time a node execution starts or finishes.
type TraceSink = engine.TraceSink

// ExecutorOption configures the DAG Executor a Service builds per run.
type ExecutorOption = engine.Option

// WithMaxParallel bounds how many nodes within one wave run concurrently.
func WithMaxParallel(n int) ExecutorOption { return engine.WithMaxParallel(n) }

// WithTraceSink attaches a callback invoked on every node trace event.
func WithTraceSink(sink TraceSink) ExecutorOption { return engine.WithTraceSink(sink) }

// TruncationLimits bounds how much of a node's output is kept for LLM-facing
// context versus what is persisted to the run archive.
type TruncationLimits = engine.TruncationLimits

// WithTruncationLimits overrides the default (unbounded) truncation limits.
func WithTruncationLimits(limits TruncationLimits) ExecutorOption {
	return engine.WithTruncationLimits(limits)
}

// newDispatchRegistry builds the small executor-type dispatch table a workflow run
// needs: one NodeExecutor per domain.ExecutorType, mirroring the node_factory
// pattern of picking an implementation by the node's declared executor kind.
// workflow is required by the param_guard executor to resolve a guard node's
// downstream consumer at execution time. baseConfig is the ambient LLM endpoint a
// node's llm_config override is merged onto.
func newDispatchRegistry(chat *llm.Client, baseConfig llm.Config, guard *guardeval.Evaluator, tools ToolRegistry, failureSubstrings []string, limits TruncationLimits, workflow *Workflow) *engine.Registry {
	reg := engine.NewRegistry()
	reg.Register(domain.ExecutorLLM, engine.NewLLMExecutor(chat, baseConfig, newChatClient, limits))
	reg.Register(domain.ExecutorTool, engine.NewToolExecutor(tools, failureSubstrings))
	reg.Register(domain.ExecutorParamGuard, engine.NewParamGuardExecutor(guard, tools, workflow))
	return reg
}

// newChatClient adapts llm.New to engine.ClientFactory's ChatClient-returning shape.
func newChatClient(cfg llm.Config) engine.ChatClient {
	return llm.New(cfg)
}

// NewExecutorFactory returns an ExecutorFactory that builds a fresh DAG Executor
// for each planned workflow, dispatching llm/tool/param_guard nodes against chat,
// guard, and tools respectively. baseConfig is the ambient LLM endpoint config used
// to build a per-node override client when a node's llm_config overrides it.
func NewExecutorFactory(chat *llm.Client, baseConfig llm.Config, guard *guardeval.Evaluator, tools ToolRegistry, failureSubstrings []string, limits TruncationLimits, logger zerolog.Logger, opts ...ExecutorOption) ExecutorFactory {
	return func(workflow *Workflow) *engine.Executor {
		registry := newDispatchRegistry(chat, baseConfig, guard, tools, failureSubstrings, limits, workflow)
		return engine.New(registry, logger, opts...)
	}
}
