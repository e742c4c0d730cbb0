// Package guardinject implements the Guard Injector: a structural rewrite of a
// planner-produced workflow that inserts a param_guard node between any producer and
// consumer whose input template references the producer's output, so the consumer's
// tool receives schema-shaped arguments instead of a raw upstream blob.
package guardinject

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/dagtask/planrunner/internal/domain"
)

// referencePattern matches a "{STk.output...}" placeholder and captures the
// referenced node id, without caring about the rest of the path.
var referencePattern = regexp.MustCompile(`\{([A-Za-z]+\d+)\.output\b`)

// Inject rewrites w in place. For every target node whose input template references
// one or more triggering predecessors, it inserts exactly one GUARD node carrying all
// of those predecessors as its source list, rewrites the target's input to the
// "__from_guard__"/"__from_guards__" sentinel form, and returns the ids of the guards
// it inserted, in insertion order, for diagnostics.
func Inject(w *domain.Workflow) ([]string, error) {
	nextIdx, err := w.MaxFamilyIndex(domain.FamilyGuard)
	if err != nil {
		return nil, fmt.Errorf("guardinject: %w", err)
	}

	triggers, err := triggeringConsumers(w)
	if err != nil {
		return nil, fmt.Errorf("guardinject: %w", err)
	}

	var inserted []string
	for _, trig := range triggers {
		nextIdx++
		guardID := fmt.Sprintf("GUARD%d", nextIdx)

		consumer, ok := w.NodeByID(trig.consumer)
		if !ok {
			return nil, fmt.Errorf("guardinject: consumer %q not found", trig.consumer)
		}

		guard := domain.Node{
			ID:           guardID,
			Executor:     domain.ExecutorParamGuard,
			Tool:         consumer.Tool,
			Source:       append([]string(nil), trig.producers...),
			Target:       []string{trig.consumer},
			GuardFor:     trig.consumer,
			GuardSources: append([]string(nil), trig.producers...),
			Input: map[string]any{
				"source_nodes":          trig.producers,
				"target_node":           trig.consumer,
				"target_tool":           consumer.Tool,
				"target_input_template": consumer.Input,
			},
		}
		w.Nodes = append(w.Nodes, guard)
		w.InsertGuardEdge(trig.producers, trig.consumer, guardID)

		for i := range w.Nodes {
			if w.Nodes[i].ID != trig.consumer {
				continue
			}
			w.Nodes[i].Source = []string{guardID}
			if len(trig.producers) == 1 {
				w.Nodes[i].Input = map[string]any{"__from_guard__": guardID}
			} else {
				w.Nodes[i].Input = map[string]any{"__from_guards__": []string{guardID}}
			}
			break
		}

		inserted = append(inserted, guardID)
	}
	return inserted, nil
}

// consumerTrigger groups every triggering predecessor of one consumer node, so the
// injector allocates a single guard per consumer regardless of how many predecessors
// triggered it.
type consumerTrigger struct {
	consumer  string
	producers []string
}

// triggeringConsumers finds every consumer node whose input template references one
// or more of its declared predecessors, in deterministic order (by consumer id, with
// each consumer's producers sorted) so repeated runs over the same workflow inject
// guards in the same order.
func triggeringConsumers(w *domain.Workflow) ([]consumerTrigger, error) {
	var triggers []consumerTrigger

	for _, n := range w.Nodes {
		refs := referencedNodeIDs(n.Input)
		if len(refs) == 0 {
			continue
		}
		preds := w.Predecessors(n.ID)
		predSet := make(map[string]bool, len(preds))
		for _, p := range preds {
			predSet[p] = true
		}

		var producers []string
		for ref := range refs {
			if predSet[ref] {
				producers = append(producers, ref)
			}
		}
		if len(producers) == 0 {
			continue
		}
		sort.Strings(producers)
		triggers = append(triggers, consumerTrigger{consumer: n.ID, producers: producers})
	}

	sort.Slice(triggers, func(i, j int) bool { return triggers[i].consumer < triggers[j].consumer })
	return triggers, nil
}

// referencedNodeIDs walks an input template and collects every node id referenced by
// a "{<id>.output...}" placeholder anywhere within it.
func referencedNodeIDs(input map[string]any) map[string]bool {
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
