package engine

import (
	"fmt"

	"github.com/dagtask/planrunner/internal/domain"
)

// wavePlan is the result of topologically leveling a workflow: wave 0 holds every node
// with no predecessor (equivalently, every node that depends only on the synthetic
// START the design notes describe), wave N holds every node whose predecessors all
// finished by wave N-1.
type wavePlan struct {
	waves [][]string
	preds map[string][]string
	succs map[string][]string
}

// buildWavePlan levels w into waves using Kahn's algorithm over in-degree, the same
// technique the teacher's graph builder uses for its topological sort.
func buildWavePlan(w *domain.Workflow) (*wavePlan, error) {
	preds := make(map[string][]string, len(w.Nodes))
	succs := make(map[string][]string, len(w.Nodes))
	indegree := make(map[string]int, len(w.Nodes))

	for _, n := range w.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range w.Edges {
		for _, pair := range e.Pairs() {
			from, to := pair[0], pair[1]
			if _, ok := indegree[to]; !ok {
				return nil, fmt.Errorf("edge references unknown node %q", to)
			}
			if _, ok := indegree[from]; !ok {
				return nil, fmt.Errorf("edge references unknown node %q", from)
			}
			preds[to] = append(preds[to], from)
			succs[from] = append(succs[from], to)
			indegree[to]++
		}
	}

	remaining := make(map[string]int, len(indegree))
	for id, d := range indegree {
		remaining[id] = d
	}

	var waves [][]string
	placed := 0
	for placed < len(w.Nodes) {
		var wave []string
		for _, n := range w.Nodes {
			if _, done := visited(waves, n.ID); done {
				continue
			}
			if remaining[n.ID] == 0 {
				wave = append(wave, n.ID)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("cycle detected: %d of %d nodes could not be leveled", len(w.Nodes)-placed, len(w.Nodes))
		}
		for _, id := range wave {
			for _, s := range succs[id] {
				remaining[s]--
			}
			remaining[id] = -1 // mark placed, never re-selected
		}
		waves = append(waves, wave)
		placed += len(wave)
	}

	return &wavePlan{waves: waves, preds: preds, succs: succs}, nil
}

func visited(waves [][]string, id string) (int, bool) {
	for wi, wave := range waves {
		for _, n := range wave {
			if n == id {
				return wi, true
			}
		}
	}
	return 0, false
}
