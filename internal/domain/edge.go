package domain

import "encoding/json"

// Edge is a directed dependency between two nodes: target waits for source.
//
// On the wire, source/target may be supplied as a single node id string or as a list of
// ids (Open Question 2: list form is canonical, a lone string is normalized to a
// one-element list on load).
type Edge struct {
	Source []string `json:"source"`
	Target []string `json:"target"`
}

// UnmarshalJSON accepts both the canonical list form and a bare-string shorthand for
// source/target.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source json.RawMessage `json:"source"`
		Target json.RawMessage `json:"target"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src, err := normalizeIDList(raw.Source)
	if err != nil {
		return err
	}
	tgt, err := normalizeIDList(raw.Target)
	if err != nil {
		return err
	}
	e.Source = src
	e.Target = tgt
	return nil
}

func normalizeIDList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []string{single}, nil
}

// Pairs expands a (possibly many-to-many) edge into individual source->target pairs.
func (e Edge) Pairs() [][2]string {
	pairs := make([][2]string, 0, len(e.Source)*len(e.Target))
	for _, s := range e.Source {
		for _, t := range e.Target {
			pairs = append(pairs, [2]string{s, t})
		}
	}
	return pairs
}
