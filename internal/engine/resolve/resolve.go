// Package resolve implements the Reference Resolver: substitution of
// "{<NodeId>.output(.key|[idx])*}" placeholders against a run's recorded outputs.
//
// This is deliberately a hand-rolled scanner rather than a generic templating or
// expression library: the grammar is a single fixed shape, not a user-extensible
// language, and a purpose-built scanner makes every edge case (missing id, invalid
// path segment, nested nil) an explicit, testable branch instead of a library's
// generic "value not found" behavior.
package resolve

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OutputLookup returns the recorded output for a node id, and whether one exists.
type OutputLookup func(nodeID string) (any, bool)

// Resolve scans s for every "{<id>.output...}" reference and substitutes it using
// lookup. A reference to an unknown node id, or a path that can't be walked against
// the recorded output, is replaced with a placeholder string rather than causing an
// error — the scheduler keeps the failure local to the node that reads the bad
// reference rather than aborting the whole substitution.
func Resolve(s string, lookup OutputLookup) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '{' {
			out.WriteByte(s[i])
			i++
			continue
		}
		end := matchingBrace(s, i)
		if end < 0 {
			out.WriteByte(s[i])
			i++
			continue
		}
		ref := s[i+1 : end]
		if rendered, ok := resolveRef(ref, lookup); ok {
			out.WriteString(rendered)
		} else {
			out.WriteString(s[i : end+1])
		}
		i = end + 1
	}
	return out.String()
}

// matchingBrace returns the index of the '}' matching the '{' at open, or -1 if the
// text contains no such reference (used so bare '{' that isn't a reference passes
// through unchanged).
func matchingBrace(s string, open int) int {
	for j := open + 1; j < len(s); j++ {
		switch s[j] {
		case '{':
			return -1
		case '}':
			return j
		}
	}
	return -1
}

// resolveRef parses one reference body (without the surrounding braces) of the shape
// "<NodeId>.output" followed by zero or more ".key" or "[idx]" path segments, and
// walks it against the node's recorded output. A well-formed reference to a node with
// no recorded output renders as "{Missing Output: <NodeId>}"; one whose path cannot be
// walked renders as "{Invalid Output Path: <NodeId><path>}". Only a body that is not a
// reference at all reports false.
func resolveRef(ref string, lookup OutputLookup) (string, bool) {
	nodeID, rest, ok := splitNodeID(ref)
	if !ok {
		return "", false
	}
	rest, ok = stripOutputPrefix(rest)
	if !ok {
		return "", false
	}
	segs, ok := parsePathSegments(rest)
	if !ok {
		return "", false
	}
	value, found := lookup(nodeID)
	if !found {
		return fmt.Sprintf("{Missing Output: %s}", nodeID), true
	}
	for _, seg := range segs {
		value, ok = step(value, seg)
		if !ok {
			return fmt.Sprintf("{Invalid Output Path: %s%s}", nodeID, rest), true
		}
	}
	return render(value), true
}

func splitNodeID(ref string) (id, rest string, ok bool) {
	i := strings.IndexByte(ref, '.')
	if i < 0 {
		return "", "", false
	}
	return ref[:i], ref[i:], true
}

func stripOutputPrefix(rest string) (string, bool) {
	const prefix = ".output"
	if !strings.HasPrefix(rest, prefix) {
		return "", false
	}
	return rest[len(prefix):], true
}

type pathSegment struct {
	key   string
	index int
	isKey bool
}

// parsePathSegments walks a string of the form ".a.b[0].c" into ordered segments,
// rejecting malformed index/key syntax outright rather than guessing.
func parsePathSegments(s string) ([]pathSegment, bool) {
	var segs []pathSegment
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			j := i + 1
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			if j == i+1 {
				return nil, false
			}
			segs = append(segs, pathSegment{key: s[i+1 : j], isKey: true})
			i = j
		case '[':
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return nil, false
			}
			j += i
			idxStr := s[i+1 : j]
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 {
				return nil, false
			}
			segs = append(segs, pathSegment{index: idx})
			i = j + 1
		default:
			return nil, false
		}
	}
	return segs, true
}

func step(value any, seg pathSegment) (any, bool) {
	if seg.isKey {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg.key]
		return v, ok
	}
	arr, ok := value.([]any)
	if !ok || seg.index >= len(arr) {
		return nil, false
	}
	return arr[seg.index], true
}

// render turns a resolved value into the text substituted at the reference's site:
// scalars render in string form, containers are JSON-encoded so their structure
// survives the substitution into an otherwise-textual template.
func render(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
