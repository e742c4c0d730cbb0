package planner

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagtask/planrunner/internal/llm"
	"github.com/dagtask/planrunner/internal/toolregistry"
)

// fakeChat replays one reply per call, in order. If replies run out it repeats the
// last one, which is convenient for auto-fix loops that may call Complete more times
// than the test bothered to script.
type fakeChat struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeChat) Complete(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	i := f.calls
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.replies[i], err
}

type fakeRetriever struct {
	candidates []string
	err        error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	return f.candidates, f.err
}

func (f *fakeRetriever) RetrieveExpanded(ctx context.Context, query string) ([]string, error) {
	return f.candidates, f.err
}

// expandingRetriever returns initial on Retrieve and expanded (counting calls) on
// RetrieveExpanded, for exercising the draft stage's missing_tools re-render cycle.
type expandingRetriever struct {
	initial       []string
	expanded      []string
	expandedCalls int
}

func (f *expandingRetriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	return f.initial, nil
}

func (f *expandingRetriever) RetrieveExpanded(ctx context.Context, query string) ([]string, error) {
	f.expandedCalls++
	return f.expanded, nil
}

func registryWithTools(names ...string) toolregistry.Registry {
	reg := toolregistry.NewInMemory()
	for _, n := range names {
		reg.Register(toolregistry.Descriptor{Name: n}, func(ctx context.Context, args map[string]any) (any, error) {
			return nil, nil
		})
	}
	return reg
}

const validDraft = `{"steps": [{"description": "fetch weather", "tool": "weather"}]}`

const validWorkflow = `{
  "nodes": [
    {"id": "ST1", "executor": "tool", "task": "fetch weather", "tool": "weather", "input": {}}
  ],
  "edges": []
}`

func TestPlanHappyPathProducesValidatedWorkflow(t *testing.T) {
	chat := &fakeChat{replies: []string{validDraft, validWorkflow}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{}, zerolog.Nop())
	workflow, run, err := p.Plan(context.Background(), "what's the weather")
	require.NoError(t, err)
	require.NotNil(t, workflow)
	require.Len(t, workflow.Nodes, 1)
	assert.Equal(t, "ST1", workflow.Nodes[0].ID)
	assert.False(t, run.Validation.Failed())
	assert.Equal(t, 0, run.FixAttempts)
	assert.Equal(t, "what's the weather", run.OriginalTask)
}

func TestPlanSkipsOptimizeStageWhenDisabled(t *testing.T) {
	chat := &fakeChat{replies: []string{validDraft, validWorkflow}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{EnableTaskOptimization: false}, zerolog.Nop())
	_, run, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "task", run.OptimizedTask)
	for _, s := range run.Stages {
		assert.NotEqual(t, StageOptimize, s.Stage)
	}
}

func TestPlanRunsOptimizeStageWhenEnabled(t *testing.T) {
	chat := &fakeChat{replies: []string{"a clearer task", validDraft, validWorkflow}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{EnableTaskOptimization: true}, zerolog.Nop())
	_, run, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "a clearer task", run.OptimizedTask)
	require.NotEmpty(t, run.Stages)
	assert.Equal(t, StageOptimize, run.Stages[0].Stage)
}

func TestPlanOptimizeFallsBackToOriginalTaskOnEmptyReply(t *testing.T) {
	chat := &fakeChat{replies: []string{"", validDraft, validWorkflow}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{EnableTaskOptimization: true}, zerolog.Nop())
	_, run, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "task", run.OptimizedTask)
}

func TestPlanFailsAtDraftStageWhenReplyHasNoRecoverableJSON(t *testing.T) {
	chat := &fakeChat{replies: []string{"no json here at all"}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{}, zerolog.Nop())
	_, run, err := p.Plan(context.Background(), "task")
	require.Error(t, err)
	require.NotEmpty(t, run.Stages)
	assert.Equal(t, StageDraft, run.Stages[len(run.Stages)-1].Stage)
}

func TestPlanAutoFixRecoversFromUnparseableConcretizeReply(t *testing.T) {
	unparseable := `{"nodes": [ this is not valid json`
	chat := &fakeChat{replies: []string{validDraft, unparseable, validWorkflow}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{MaxFixAttempts: 3}, zerolog.Nop())
	workflow, run, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	require.NotNil(t, workflow)
	assert.Equal(t, 1, run.FixAttempts)
	assert.False(t, run.Validation.Failed())
	for _, s := range run.Stages {
		assert.NotEqual(t, StageBuildWorkflowIR, s.Stage, "build_workflow_ir only runs once, after a workflow parses")
	}
}

func TestPlanAutoFixGivesUpAfterMaxAttempts(t *testing.T) {
	unparseable := `{"nodes": [ this is not valid json`
	chat := &fakeChat{replies: []string{validDraft, unparseable, unparseable, unparseable}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{MaxFixAttempts: 2}, zerolog.Nop())
	_, run, err := p.Plan(context.Background(), "task")
	require.Error(t, err)
	assert.Equal(t, 2, run.FixAttempts)
	assert.Equal(t, StageAutoFixJSON, run.Stages[len(run.Stages)-1].Stage)
}

func TestPlanAutoFixKeepsRetryingWhenFixReplyStillDoesNotParse(t *testing.T) {
	unparseable := `{"nodes": [ this is not valid json`
	chat := &fakeChat{replies: []string{validDraft, unparseable, "still not json", validWorkflow}}
	retriever := &fakeRetriever{candidates: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{MaxFixAttempts: 3}, zerolog.Nop())
	workflow, run, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	require.NotNil(t, workflow)
	assert.Equal(t, 2, run.FixAttempts)
}

func TestPlanDraftExpandsCandidatesWhenMissingToolsReported(t *testing.T) {
	draftWithMissing := `{"steps": [{"description": "fetch weather"}], "missing_tools": [{"capability": "send email", "keywords": ["email", "smtp"]}]}`
	chat := &fakeChat{replies: []string{draftWithMissing, validDraft, validWorkflow}}
	retriever := &expandingRetriever{
		initial:  []string{"weather"},
		expanded: []string{"weather", "email_sender"},
	}
	tools := registryWithTools("weather", "email_sender")

	p := New(chat, retriever, tools, Config{}, zerolog.Nop())
	_, run, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.expandedCalls)
	assert.Equal(t, []string{"weather", "email_sender"}, run.ToolCandidates)
}

func TestPlanDraftSkipsExpansionWhenNoMissingToolsReported(t *testing.T) {
	chat := &fakeChat{replies: []string{validDraft, validWorkflow}}
	retriever := &expandingRetriever{initial: []string{"weather"}}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{}, zerolog.Nop())
	_, _, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, 0, retriever.expandedCalls)
	assert.Equal(t, 2, chat.calls, "exactly one draft call and one concretize call should have run")
}

func TestPlanFailsWhenRetrievalErrors(t *testing.T) {
	chat := &fakeChat{replies: []string{validDraft}}
	retriever := &fakeRetriever{err: assert.AnError}
	tools := registryWithTools("weather")

	p := New(chat, retriever, tools, Config{}, zerolog.Nop())
	_, _, err := p.Plan(context.Background(), "task")
	assert.Error(t, err)
}

func TestPlanRecordsToolCandidatesInLastRun(t *testing.T) {
	chat := &fakeChat{replies: []string{validDraft, validWorkflow}}
	retriever := &fakeRetriever{candidates: []string{"weather", "maps"}}
	tools := registryWithTools("weather", "maps")

	p := New(chat, retriever, tools, Config{}, zerolog.Nop())
	_, run, err := p.Plan(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, []string{"weather", "maps"}, run.ToolCandidates)
}

func TestNewDefaultsMaxFixAttemptsWhenUnset(t *testing.T) {
	p := New(&fakeChat{}, &fakeRetriever{}, registryWithTools(), Config{}, zerolog.Nop())
	assert.Equal(t, 3, p.cfg.MaxFixAttempts)
}
