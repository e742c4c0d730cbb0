package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

const draftSystemPrompt = `You are a planning assistant. Given a task and a list of candidate tools, sketch a
draft workflow as a JSON object with a "steps" array. Each step has a short
description and, if it needs a tool, a "tool" field naming one of the candidates.
If none of the candidate tools cover a capability the task needs, list it in a
"missing_tools" array instead of forcing a mismatched tool onto a step: each entry
has a "capability" (what's needed) and "keywords" (terms to search for it). Respond
with only the JSON object.`

func draftPrompt(task string, candidates []string) string {
	return fmt.Sprintf("Task: %s\n\nCandidate tools: %s\n", task, strings.Join(candidates, ", "))
}

const concretizeSystemPrompt = `You are a workflow compiler. Given a draft plan, emit a concrete workflow as a JSON
object with "nodes" and "edges" arrays. Each node has an "id" (ST1, ST2, ... in
order), an "executor" ("llm" or "tool"), a "task" description, and for tool nodes a
"tool" name and an "input" object whose string values may reference an earlier
node's output as "{ST1.output}". Each edge has a "source" and "target" node id (or
list of ids). Respond with only the JSON object.`

func concretizePrompt(draft map[string]any) string {
	b, _ := json.Marshal(draft)
	return fmt.Sprintf("Draft plan: %s\n", string(b))
}

const fixSystemPrompt = `You are a JSON repair assistant. The previous reply to the prompt below was supposed
to be a single workflow JSON object (nodes/edges) but could not be parsed. Fix the
JSON so it parses and decodes into that shape, preserving the original workflow's
intent as closely as possible. Respond with only the corrected JSON object.`

func fixJSONPrompt(originalPrompt, offending string, parseErr error) string {
	return fmt.Sprintf(
		"Original prompt: %s\n\nPrevious reply (did not parse): %s\n\nParse error: %s\n",
		originalPrompt, offending, parseErr,
	)
}
