package planner

import (
	"encoding/json"
	"fmt"

	"github.com/dagtask/planrunner/internal/domain"
	"github.com/dagtask/planrunner/internal/extractor"
)

// parseWorkflow recovers a workflow JSON object from raw LLM text and decodes it into
// a domain.Workflow, round-tripping through the JSON Extractor's recovery strategies
// the same way the draft and auto-fix stages do.
func parseWorkflow(raw string) (*domain.Workflow, error) {
	obj, err := extractor.ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("planner: re-marshaling extracted object: %w", err)
	}
	var w domain.Workflow
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("planner: decoding workflow: %w", err)
	}
	if len(w.Nodes) == 0 {
		return nil, fmt.Errorf("planner: workflow has no nodes")
	}
	return &w, nil
}
