// Command plandemo runs the planner pipeline alone, without the DAG Executor, and
// prints its last-run diagnostics. It is the Go equivalent of the original
// two-stage demo script: point it at a task and a JSON tool catalog, and it dumps
// every stage's input/output so a workflow draft can be inspected without standing
// up the full server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	taskflow "github.com/dagtask/planrunner"
	"github.com/dagtask/planrunner/internal/planner"
)

func main() {
	task := flag.String("task", "Please help me analyze the weather changes in Beijing over the past seven days and save it as an Excel file.", "task to plan")
	catalogPath := flag.String("catalog", "", "path to a JSON tool catalog file ([]taskflow.ToolDescriptor); required")
	outDir := flag.String("out-dir", "", "directory to write stage artifacts to (default: print to stdout only)")
	flag.Parse()

	if *catalogPath == "" {
		fmt.Fprintln(os.Stderr, "plandemo: -catalog is required")
		os.Exit(2)
	}

	log := taskflow.DefaultLogger()
	cfg := taskflow.LoadConfig()

	catalog, err := loadCatalog(*catalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *catalogPath).Msg("failed to load tool catalog")
	}

	tools := taskflow.NewInMemoryToolRegistry()
	for _, d := range catalog {
		desc := d
		tools.Register(desc, func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("plandemo: %s is not invokable in planning-only mode", desc.Name)
		})
	}

	ctx := context.Background()
	plannerChat := taskflow.NewLLMClient(cfg.Planner)
	embedChat := taskflow.NewLLMClient(cfg.Embedding)

	rcfg := taskflow.RetrieverConfig{
		Mode:        taskflow.RetrieverMode(cfg.RetrieverMode),
		TopK:        cfg.ToolRetrieverTopK,
		ExpandK:     cfg.ToolRetrieverExpandK,
		PinnedTools: cfg.PinnedTools,
	}
	rtr, err := taskflow.NewRetriever(ctx, rcfg.Mode, catalog, rcfg, embedChat, cfg.Embedding.Model, os.Getenv("SEMANTIC_CACHE_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build retriever")
	}

	pcfg := planner.Config{
		EnableTaskOptimization: cfg.EnableTaskOptimization,
		MaxFixAttempts:         cfg.MaxFixAttempts,
	}
	pipeline := planner.New(plannerChat, rtr, tools, pcfg, log)

	workflow, lastRun, err := pipeline.Plan(ctx, *task)
	if err != nil {
		log.Error().Err(err).Msg("planning failed")
	}

	taskflow.DisplayLastRun(lastRun)

	if *outDir != "" {
		if err := writeArtifacts(*outDir, workflow, lastRun); err != nil {
			log.Fatal().Err(err).Msg("failed to write demo artifacts")
		}
	}

	if err != nil {
		os.Exit(1)
	}
}

func loadCatalog(path string) ([]taskflow.ToolDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var catalog []taskflow.ToolDescriptor
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("plandemo: parsing catalog: %w", err)
	}
	return catalog, nil
}

// writeArtifacts mirrors the original demo's per-stage output files: the draft
// stage's raw and parsed JSON, the tool names each stage narrowed to, and the
// final built workflow, one file per artifact under outDir.
func writeArtifacts(outDir string, workflow *taskflow.Workflow, run *planner.LastRun) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	for _, stage := range run.Stages {
		name := fmt.Sprintf("%s_output.json", stage.Stage)
		if err := writeJSON(outDir, name, stage); err != nil {
			return err
		}
	}
	if err := writeJSON(outDir, "tool_candidates.json", run.ToolCandidates); err != nil {
		return err
	}
	if workflow != nil {
		if err := writeJSON(outDir, "workflow.json", workflow); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dir+string(os.PathSeparator)+name, data, 0o644)
}
