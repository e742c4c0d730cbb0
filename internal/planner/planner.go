// Package planner implements the Planner Pipeline: the five stages that turn a raw
// task string into a validated, guard-injected workflow ready for the DAG Executor.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dagtask/planrunner/internal/domain"
	domainerrors "github.com/dagtask/planrunner/internal/domain/errors"
	"github.com/dagtask/planrunner/internal/extractor"
	"github.com/dagtask/planrunner/internal/guardinject"
	"github.com/dagtask/planrunner/internal/llm"
	"github.com/dagtask/planrunner/internal/toolregistry"
	"github.com/dagtask/planrunner/internal/validate"
)

// Stage names, used both for logging and for PlanningError.Stage.
const (
	StageOptimize        = "task_optimization"
	StageDraft           = "stage1_draft"
	StageConcretize      = "stage2_concretize"
	StageAutoFixJSON     = "auto_fix_json"
	StageBuildWorkflowIR = "build_workflow_ir"
)

// ChatClient is the narrow LLM capability the planner needs.
type ChatClient interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// ToolRetriever is the narrow Tool Retriever capability the planner needs for its
// draft stage (initial retrieval and the missing-tools expansion).
type ToolRetriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
	RetrieveExpanded(ctx context.Context, query string) ([]string, error)
}

// Config tunes the pipeline.
type Config struct {
	EnableTaskOptimization bool
	MaxFixAttempts         int
}

// StageRun records one attempt at a pipeline stage: what was sent, what came back,
// and what (if anything) went wrong, for the "last-run" diagnostics structure
// callers can inspect after a Plan call, whether it succeeded or not.
type StageRun struct {
	Stage    string
	Prompt   string
	RawReply string
	Err      string
}

// LastRun is the full diagnostic trail of one Plan call: the task string at each
// rewrite, the tool candidates considered, every stage attempt (including retries),
// and the final validation result.
type LastRun struct {
	OriginalTask   string
	OptimizedTask  string
	ToolCandidates []string
	Stages         []StageRun
	FixAttempts    int
	Validation     *domainerrors.ValidationError
}

// Pipeline runs the five planning stages in sequence.
type Pipeline struct {
	chat      ChatClient
	retriever ToolRetriever
	tools     toolregistry.Registry
	cfg       Config
	logger    zerolog.Logger
}

// New creates a Pipeline.
func New(chat ChatClient, retriever ToolRetriever, tools toolregistry.Registry, cfg Config, logger zerolog.Logger) *Pipeline {
	if cfg.MaxFixAttempts <= 0 {
		cfg.MaxFixAttempts = 3
	}
	return &Pipeline{chat: chat, retriever: retriever, tools: tools, cfg: cfg, logger: logger}
}

// Plan runs the full pipeline for task and returns the finished, guard-injected,
// validated workflow along with the run's diagnostics. A failure at any stage is
// returned as a *domainerrors.PlanningError naming the stage; the diagnostics in
// LastRun survive the error so callers can show what was tried.
func (p *Pipeline) Plan(ctx context.Context, task string) (*domain.Workflow, *LastRun, error) {
	run := &LastRun{OriginalTask: task, OptimizedTask: task}

	currentTask := task
	if p.cfg.EnableTaskOptimization {
		optimized, err := p.optimizeTask(ctx, task, run)
		if err != nil {
			return nil, run, err
		}
		currentTask = optimized
		run.OptimizedTask = optimized
	}

	candidates, err := p.retriever.Retrieve(ctx, currentTask)
	if err != nil {
		return nil, run, domainerrors.NewPlanningError(StageDraft, "tool retrieval failed", err)
	}
	run.ToolCandidates = candidates

	draft, err := p.draft(ctx, currentTask, candidates, run)
	if err != nil {
		return nil, run, err
	}

	workflow, err := p.concretize(ctx, currentTask, draft, run)
	if err != nil {
		return nil, run, err
	}

	if _, err := guardinject.Inject(workflow); err != nil {
		return nil, run, domainerrors.NewPlanningError(StageBuildWorkflowIR, "guard injection failed", err)
	}

	valErr := validate.Validate(workflow, validate.Options{ToolRegistry: p.tools})
	run.Validation = valErr
	if valErr.Failed() {
		return nil, run, domainerrors.NewPlanningError(StageBuildWorkflowIR, "final validation failed", valErr)
	}

	return workflow, run, nil
}

func (p *Pipeline) optimizeTask(ctx context.Context, task string, run *LastRun) (string, error) {
	prompt := fmt.Sprintf("Rewrite this task into a single clear, actionable instruction, no commentary:\n\n%s", task)
	reply, err := p.chat.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.ChatOptions{Temperature: 0})
	run.Stages = append(run.Stages, StageRun{Stage: StageOptimize, Prompt: prompt, RawReply: reply, Err: errString(err)})
	if err != nil {
		return task, domainerrors.NewPlanningError(StageOptimize, "llm call failed", err)
	}
	if reply == "" {
		return task, nil
	}
	return reply, nil
}

// draft produces the stage-1 sketch and, if the model names capabilities it could
// not find a tool for in "missing_tools", re-queries the retriever for each one and
// re-renders the draft exactly once against the expanded candidate set.
func (p *Pipeline) draft(ctx context.Context, task string, candidates []string, run *LastRun) (map[string]any, error) {
	parsed, err := p.draftOnce(ctx, task, candidates, run)
	if err != nil {
		return nil, err
	}

	missing := missingToolsFrom(parsed)
	if len(missing) == 0 {
		return parsed, nil
	}

	expanded := candidates
	for _, mt := range missing {
		query := mt.Capability
		if len(mt.Keywords) > 0 {
			query = strings.Join(mt.Keywords, " ")
		}
		found, err := p.retriever.RetrieveExpanded(ctx, query)
		if err != nil {
			p.logger.Warn().Str("capability", mt.Capability).Err(err).
				Msg("missing-tool retrieval failed, draft keeps its original candidates")
			continue
		}
		expanded = mergeUniqueStrings(expanded, found)
	}
	run.ToolCandidates = expanded

	reRendered, err := p.draftOnce(ctx, task, expanded, run)
	if err != nil {
		return parsed, nil
	}
	return reRendered, nil
}

func (p *Pipeline) draftOnce(ctx context.Context, task string, candidates []string, run *LastRun) (map[string]any, error) {
	prompt := draftPrompt(task, candidates)
	reply, err := p.chat.Complete(ctx, []llm.Message{{Role: "system", Content: draftSystemPrompt}, {Role: "user", Content: prompt}}, llm.ChatOptions{})
	run.Stages = append(run.Stages, StageRun{Stage: StageDraft, Prompt: prompt, RawReply: reply, Err: errString(err)})
	if err != nil {
		return nil, domainerrors.NewPlanningError(StageDraft, "llm call failed", err)
	}
	parsed, err := extractor.ExtractObject(reply)
	if err != nil {
		return nil, domainerrors.NewPlanningError(StageDraft, "could not extract JSON draft", err)
	}
	return parsed, nil
}

type missingTool struct {
	Capability string
	Keywords   []string
}

func missingToolsFrom(draft map[string]any) []missingTool {
	raw, ok := draft["missing_tools"].([]any)
	if !ok {
		return nil
	}
	var out []missingTool
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var mt missingTool
		if cap, ok := m["capability"].(string); ok {
			mt.Capability = cap
		}
		if kws, ok := m["keywords"].([]any); ok {
			for _, k := range kws {
				if s, ok := k.(string); ok {
					mt.Keywords = append(mt.Keywords, s)
				}
			}
		}
		if mt.Capability != "" || len(mt.Keywords) > 0 {
			out = append(out, mt)
		}
	}
	return out
}

func mergeUniqueStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := append([]string(nil), base...)
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// concretize sends the draft to the workflow compiler prompt and parses its reply.
// A reply that fails to parse (or that parses but lacks a non-empty nodes array)
// enters fixJSON, which retries the parse/structural check itself up to
// MaxFixAttempts — this is distinct from graph-level validation, which runs once,
// afterward, in Plan.
func (p *Pipeline) concretize(ctx context.Context, task string, draft map[string]any, run *LastRun) (*domain.Workflow, error) {
	prompt := concretizePrompt(draft)
	reply, err := p.chat.Complete(ctx, []llm.Message{{Role: "system", Content: concretizeSystemPrompt}, {Role: "user", Content: prompt}}, llm.ChatOptions{})
	run.Stages = append(run.Stages, StageRun{Stage: StageConcretize, Prompt: prompt, RawReply: reply, Err: errString(err)})
	if err != nil {
		return nil, domainerrors.NewPlanningError(StageConcretize, "llm call failed", err)
	}

	workflow, parseErr := parseWorkflow(reply)
	if parseErr == nil {
		return workflow, nil
	}
	return p.fixJSON(ctx, prompt, reply, parseErr, run)
}

// fixJSON retries the raw stage-2 reply's JSON parse and structural check up to
// MaxFixAttempts, feeding the offending text and parse error back to the LLM each
// attempt. It gives up and reports an auto_fix_json failure once attempts run out.
func (p *Pipeline) fixJSON(ctx context.Context, originalPrompt, offending string, parseErr error, run *LastRun) (*domain.Workflow, error) {
	lastErr := parseErr
	for attempt := 0; attempt < p.cfg.MaxFixAttempts; attempt++ {
		run.FixAttempts++
		prompt := fixJSONPrompt(originalPrompt, offending, lastErr)
		reply, err := p.chat.Complete(ctx, []llm.Message{{Role: "system", Content: fixSystemPrompt}, {Role: "user", Content: prompt}}, llm.ChatOptions{})
		run.Stages = append(run.Stages, StageRun{Stage: StageAutoFixJSON, Prompt: prompt, RawReply: reply, Err: errString(err)})
		if err != nil {
			return nil, domainerrors.NewPlanningError(StageAutoFixJSON, "llm call failed", err)
		}

		workflow, parseErr := parseWorkflow(reply)
		if parseErr == nil {
			return workflow, nil
		}
		p.logger.Warn().Int("attempt", attempt+1).Err(parseErr).Msg("auto-fix reply still did not parse")
		lastErr = parseErr
		offending = reply
	}
	return nil, domainerrors.NewPlanningError(StageAutoFixJSON, "workflow JSON did not parse after max fix attempts", lastErr)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
