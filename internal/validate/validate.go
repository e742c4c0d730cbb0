// Package validate implements the Graph Validator: structural and data-flow checks
// over a workflow before it is handed to the DAG Executor. Checks are split into
// blocking errors and non-blocking warnings.
package validate

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/dagtask/planrunner/internal/domain"
	domainerrors "github.com/dagtask/planrunner/internal/domain/errors"
	"github.com/dagtask/planrunner/internal/toolregistry"
)

var referencePattern = regexp.MustCompile(`\{([A-Za-z]+\d+)\.output\b`)

// Options tunes which checks run. ToolRegistry may be nil, in which case the tool-
// availability check is skipped (useful for validating a draft workflow before tools
// have been resolved).
type Options struct {
	ToolRegistry toolregistry.Registry
}

// Validate runs every check against w and returns a *domainerrors.ValidationError
// describing every error and warning found. The returned error's Failed() reports
// whether validation failed outright; a non-nil result with only warnings is not a
// failure.
func Validate(w *domain.Workflow, opts Options) *domainerrors.ValidationError {
	var errs, warnings []string

	errs = append(errs, checkEdgeEndpoints(w)...)
	errs = append(errs, checkDenseNumbering(w)...)
	errs = append(errs, checkAcyclic(w)...)
	warnings = append(warnings, checkReachability(w)...)
	dataflowErrs, dataflowWarnings := checkDataFlow(w)
	errs = append(errs, dataflowErrs...)
	warnings = append(warnings, dataflowWarnings...)
	errs = append(errs, checkGuardBypass(w)...)

	if opts.ToolRegistry != nil {
		errs = append(errs, checkToolAvailability(w, opts.ToolRegistry)...)
	}

	return domainerrors.NewValidationError(errs, warnings)
}

// checkEdgeEndpoints enforces invariant I1: every id named by an edge's source or
// target list must exist among the workflow's nodes. A dangling edge would leave
// the scheduler and executor referencing a node that was never declared.
func checkEdgeEndpoints(w *domain.Workflow) []string {
	known := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		known[n.ID] = true
	}

	var errs []string
	reported := make(map[string]bool)
	report := func(id string) {
		if !known[id] && !reported[id] {
			errs = append(errs, fmt.Sprintf("edge references unknown node %q", id))
			reported[id] = true
		}
	}
	for _, e := range w.Edges {
		for _, id := range e.Source {
			report(id)
		}
		for _, id := range e.Target {
			report(id)
		}
	}
	return errs
}

// checkGuardBypass enforces invariant I6: once guard injection has run, a tool node
// whose input referenced a predecessor's output must consume that predecessor
// solely through the "__from_guard__"/"__from_guards__" sentinel the injector
// installs, never through a raw "{<id>.output...}" reference left unrewired.
func checkGuardBypass(w *domain.Workflow) []string {
	var errs []string
	for _, n := range w.Nodes {
		if n.Executor != domain.ExecutorTool {
			continue
		}
		if _, ok := n.Input["__from_guard__"]; ok {
			continue
		}
		if _, ok := n.Input["__from_guards__"]; ok {
			continue
		}
		refs := referencedIDs(n.Input)
		if len(refs) == 0 {
			continue
		}
		preds := make(map[string]bool)
		for _, p := range w.Predecessors(n.ID) {
			preds[p] = true
		}
		for ref := range refs {
			if preds[ref] {
				errs = append(errs, fmt.Sprintf(
					"node %q references predecessor %q's output directly instead of through a param guard", n.ID, ref))
			}
		}
	}
	return errs
}

// checkDenseNumbering enforces invariant I3: ids within a family (ST, GUARD) are
// densely numbered starting at 1 with no gaps.
func checkDenseNumbering(w *domain.Workflow) []string {
	var errs []string
	counts := map[domain.IDFamily]map[int]bool{
		domain.FamilyST:    {},
		domain.FamilyGuard: {},
	}
	for _, n := range w.Nodes {
		family, idx, err := n.Family()
		if err != nil {
			errs = append(errs, fmt.Sprintf("node %q: %v", n.ID, err))
			continue
		}
		counts[family][idx] = true
	}
	for _, family := range []domain.IDFamily{domain.FamilyST, domain.FamilyGuard} {
		seen := counts[family]
		max := 0
		for idx := range seen {
			if idx > max {
				max = idx
			}
		}
		for i := 1; i <= max; i++ {
			if !seen[i] {
				errs = append(errs, fmt.Sprintf("id family %s is missing index %d (dense numbering required)", family, i))
			}
		}
	}
	return errs
}

// checkAcyclic runs a DFS with a recursion stack to detect cycles.
func checkAcyclic(w *domain.Workflow) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(w.Nodes))
	for _, n := range w.Nodes {
		color[n.ID] = white
	}

	var errs []string
	var cyclePath []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		cyclePath = append(cyclePath, id)
		for _, succ := range w.Successors(id) {
			switch color[succ] {
			case gray:
				errs = append(errs, fmt.Sprintf("cycle detected: %v -> %s", cyclePath, succ))
				return true
			case white:
				if visit(succ) {
					return true
				}
			}
		}
		cyclePath = cyclePath[:len(cyclePath)-1]
		color[id] = black
		return false
	}

	ids := nodeIDsSorted(w)
	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				break
			}
		}
	}
	return errs
}

// checkReachability warns about nodes with no path from any zero-indegree node
// (unreachable nodes are a warning, not a hard error, since an auto-fix pass may
// still prune them).
func checkReachability(w *domain.Workflow) []string {
	indegree := make(map[string]int, len(w.Nodes))
	for _, n := range w.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range w.Edges {
		for _, pair := range e.Pairs() {
			indegree[pair[1]]++
		}
	}

	var roots []string
	for _, n := range w.Nodes {
		if indegree[n.ID] == 0 {
			roots = append(roots, n.ID)
		}
	}

	reached := make(map[string]bool, len(w.Nodes))
	var stack []string
	stack = append(stack, roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] {
			continue
		}
		reached[id] = true
		stack = append(stack, w.Successors(id)...)
	}

	var warnings []string
	for _, id := range nodeIDsSorted(w) {
		if !reached[id] {
			warnings = append(warnings, fmt.Sprintf("node %q is unreachable from any entry node", id))
		}
	}
	return warnings
}

// checkDataFlow validates every "{<id>.output...}" reference in every node's input:
// a reference to an id that no node in the workflow declares is an error (the executor
// would have no recorded output to resolve against); a reference to a declared node
// that isn't an edge-declared predecessor is a warning. No topological ordering check
// is made.
func checkDataFlow(w *domain.Workflow) (errs, warnings []string) {
	known := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		known[n.ID] = true
	}

	for _, n := range w.Nodes {
		preds := make(map[string]bool)
		for _, p := range w.Predecessors(n.ID) {
			preds[p] = true
		}
		for ref := range referencedIDs(n.Input) {
			if !known[ref] {
				errs = append(errs, fmt.Sprintf("node %q references unknown node %q", n.ID, ref))
				continue
			}
			if !preds[ref] {
				warnings = append(warnings, fmt.Sprintf("node %q references %q's output without a declared edge between them", n.ID, ref))
			}
		}
	}
	return errs, warnings
}

// checkToolAvailability ensures every tool-executor node names a tool the registry
// actually has.
func checkToolAvailability(w *domain.Workflow, reg toolregistry.Registry) []string {
	var errs []string
	for _, n := range w.Nodes {
		if n.Executor != domain.ExecutorTool {
			continue
		}
		if n.Tool == "" {
			errs = append(errs, fmt.Sprintf("node %q is a tool executor with no tool name", n.ID))
			continue
		}
		if !reg.Has(n.Tool) {
			errs = append(errs, fmt.Sprintf("node %q references unknown tool %q", n.ID, n.Tool))
		}
	}
	return errs
}

func referencedIDs(input map[string]any) map[string]bool {
	refs := make(map[string]bool)
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			for _, m := range referencePattern.FindAllStringSubmatch(val, -1) {
				refs[m[1]] = true
			}
		case map[string]any:
			for _, e := range val {
				walk(e)
			}
		case []any:
			for _, e := range val {
				walk(e)
			}
		}
	}
	for _, v := range input {
		walk(v)
	}
	return refs
}

func nodeIDsSorted(w *domain.Workflow) []string {
	ids := make([]string, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}
