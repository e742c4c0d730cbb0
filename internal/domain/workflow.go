package domain

import "fmt"

// Workflow is the planner's output intermediate representation: a set of nodes and the
// edges between them. It is produced by the Planner Pipeline, mutated in place by the
// Guard Injector, checked by the Graph Validator, and consumed by the DAG Executor.
type Workflow struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given id, or false if none exists.
func (w *Workflow) NodeByID(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Predecessors returns the ids of every node with an edge into id.
func (w *Workflow) Predecessors(id string) []string {
	var preds []string
	for _, e := range w.Edges {
		for _, pair := range e.Pairs() {
			if pair[1] == id {
				preds = append(preds, pair[0])
			}
		}
	}
	return preds
}

// Successors returns the ids of every node with an edge out of id.
func (w *Workflow) Successors(id string) []string {
	var succs []string
	for _, e := range w.Edges {
		for _, pair := range e.Pairs() {
			if pair[0] == id {
				succs = append(succs, pair[1])
			}
		}
	}
	return succs
}

// MaxFamilyIndex returns the highest numeric suffix in use for a given id family,
// used by the Guard Injector to mint fresh GUARD<n> ids that never collide with an
// existing one.
func (w *Workflow) MaxFamilyIndex(family IDFamily) (int, error) {
	max := 0
	for _, n := range w.Nodes {
		f, idx, err := n.Family()
		if err != nil {
			return 0, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if f == family && idx > max {
			max = idx
		}
	}
	return max, nil
}

// InsertEdge replaces every edge whose pairs include (from, to) with two edges routed
// through via: from->via and via->to, leaving all other pairs in the original edge
// untouched. It is the core structural rewrite the Guard Injector performs.
func (w *Workflow) InsertEdge(from, to, via string) {
	var rebuilt []Edge
	for _, e := range w.Edges {
		var keepPairs [][2]string
		matched := false
		for _, p := range e.Pairs() {
			if p[0] == from && p[1] == to {
				matched = true
				continue
			}
			keepPairs = append(keepPairs, p)
		}
		if len(keepPairs) > 0 {
			rebuilt = append(rebuilt, edgeFromPairs(keepPairs))
		}
		if matched {
			rebuilt = append(rebuilt,
				Edge{Source: []string{from}, Target: []string{via}},
				Edge{Source: []string{via}, Target: []string{to}},
			)
		}
	}
	w.Edges = rebuilt
}

// InsertGuardEdge collapses every edge (p, to) for p in producers into a single
// guard hop: each producer feeds via, and via feeds to. Unlike repeated InsertEdge
// calls, this rewires every triggering producer in one pass, so the two new edges
// (producers->via, via->to) are each added exactly once regardless of how many
// producers triggered the guard.
func (w *Workflow) InsertGuardEdge(producers []string, to, via string) {
	producerSet := make(map[string]bool, len(producers))
	for _, p := range producers {
		producerSet[p] = true
	}

	var rebuilt []Edge
	for _, e := range w.Edges {
		var keepPairs [][2]string
		for _, p := range e.Pairs() {
			if p[1] == to && producerSet[p[0]] {
				continue
			}
			keepPairs = append(keepPairs, p)
		}
		if len(keepPairs) > 0 {
			rebuilt = append(rebuilt, edgeFromPairs(keepPairs))
		}
	}
	rebuilt = append(rebuilt,
		Edge{Source: append([]string(nil), producers...), Target: []string{via}},
		Edge{Source: []string{via}, Target: []string{to}},
	)
	w.Edges = rebuilt
}

func edgeFromPairs(pairs [][2]string) Edge {
	var e Edge
	seenS, seenT := map[string]bool{}, map[string]bool{}
	for _, p := range pairs {
		if !seenS[p[0]] {
			e.Source = append(e.Source, p[0])
			seenS[p[0]] = true
		}
		if !seenT[p[1]] {
			e.Target = append(e.Target, p[1])
			seenT[p[1]] = true
		}
	}
	return e
}
