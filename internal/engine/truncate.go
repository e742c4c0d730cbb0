package engine

import (
	"encoding/json"
	"fmt"

	"github.com/dagtask/planrunner/internal/domain"
)

// TruncationLimits bounds how much of a node's input/output is kept for the
// LLM-facing prompt versus what is persisted to the run archive.
type TruncationLimits struct {
	LLMInputMaxChars   int
	ToolOutputMaxChars int
	NodeOutputMaxChars int
}

// TruncateForDisplay shortens v to at most limit characters for inclusion in a trace
// entry or an outgoing LLM prompt. It never tries to preserve structure: v is
// rendered to its display form (a string stays a string, anything else is
// JSON-encoded) and cut once, flatly, with a trailing marker. A non-string value that
// gets cut is wrapped so the caller can still tell what it originally was. A limit
// <= 0 disables truncation.
func TruncateForDisplay(v any, limit int) any {
	if limit <= 0 {
		return v
	}

	var rendered string
	switch val := v.(type) {
	case string:
		rendered = val
	case map[string]any, []any:
		encoded, err := json.Marshal(val)
		if err != nil {
			rendered = fmt.Sprintf("%v", val)
		} else {
			rendered = string(encoded)
		}
	default:
		rendered = fmt.Sprintf("%v", val)
	}

	if len(rendered) <= limit {
		return v
	}

	originalLen := len(rendered)
	truncated := rendered[:limit] + fmt.Sprintf(
		"\n... [truncated, original length: %d chars, showing first %d chars]", originalLen, limit)

	if _, ok := v.(string); ok {
		return truncated
	}
	return map[string]any{
		"_truncated":       true,
		"_original_type":   fmt.Sprintf("%T", v),
		"_original_length": originalLen,
		"_preview":         truncated,
	}
}

// TruncateForStorage applies the budget-preserving policy used when persisting a
// node's output to the run archive, where every downstream node still needs to see
// every field a tool returned, just shortened enough to fit. Only `tool` executor
// output is bounded this way; llm and param_guard outputs are stored in full.
func TruncateForStorage(executor domain.ExecutorType, v any, limit int) any {
	if executor != domain.ExecutorTool {
		return v
	}
	return truncateStored(v, limit)
}

func truncateStored(v any, limit int) any {
	if limit <= 0 {
		return v
	}
	switch val := v.(type) {
	case string:
		return truncateStoredString(val, limit)
	case map[string]any:
		return truncateStoredMap(val, limit)
	case []any:
		return truncateStoredList(val, limit)
	default:
		s := fmt.Sprintf("%v", val)
		if len(s) <= limit {
			return v
		}
		return truncateStoredString(s, limit)
	}
}

func truncateStoredString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("\n... [truncated, original length: %d chars]", len(s))
}

// truncateStoredMap keeps every key of m, shortening values just enough that the
// whole object fits limit characters encoded, trying three strategies in order of
// how much structure they preserve before giving up on structure entirely.
func truncateStoredMap(m map[string]any, limit int) any {
	encoded, err := json.Marshal(m)
	if err == nil && len(encoded) <= limit {
		return m
	}

	// Strategy 1: split the budget evenly across every field, leaving enough
	// headroom for JSON overhead (keys, quotes, commas) that no field is dropped.
	const overheadPerField = 50
	const minPerField = 100
	if numFields := len(m); numFields > 0 {
		available := limit - numFields*overheadPerField
		if perField := available / numFields; available > 0 && perField >= minPerField {
			candidate := make(map[string]any, numFields)
			for k, val := range m {
				candidate[k] = truncateFieldValue(val, perField)
			}
			if enc, err := json.Marshal(candidate); err == nil && len(enc) <= int(float64(limit)*1.1) {
				return candidate
			}
		}
	}

	// Strategy 2: keep every field untouched except the ones individually larger
	// than half the whole budget.
	half := limit / 2
	candidate := make(map[string]any, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok && len(s) > half {
			candidate[k] = s[:half] + "\n... [field truncated]"
		} else {
			candidate[k] = val
		}
	}
	if enc, err := json.Marshal(candidate); err == nil && len(enc) <= limit {
		return candidate
	}

	// Strategy 3: give up on structure, return the whole object as a cut string.
	if err != nil {
		return truncateStoredString(fmt.Sprintf("%v", m), limit)
	}
	return truncateStoredString(string(encoded), limit)
}

func truncateFieldValue(v any, limit int) any {
	switch val := v.(type) {
	case string:
		if len(val) > limit {
			return val[:limit] + "...[truncated]"
		}
		return val
	case map[string]any, []any:
		encoded, err := json.Marshal(val)
		if err == nil && len(encoded) > limit {
			return string(encoded[:limit]) + "...[truncated]"
		}
		return val
	default:
		return val
	}
}

// truncateStoredList keeps as many leading elements as fit within limit characters
// of cumulative JSON encoding, dropping the rest with a count marker rather than
// chopping an individual element mid-value.
func truncateStoredList(list []any, limit int) any {
	encoded, err := json.Marshal(list)
	if err == nil && len(encoded) <= limit {
		return list
	}

	var kept []any
	currentLength := 2 // "[]"
	for _, item := range list {
		itemEnc, marshalErr := json.Marshal(item)
		if marshalErr != nil {
			break
		}
		if currentLength+len(itemEnc)+1 > limit {
			break
		}
		kept = append(kept, item)
		currentLength += len(itemEnc) + 1
	}

	if len(kept) > 0 {
		return append(kept, fmt.Sprintf("... [truncated, original length: %d elements]", len(list)))
	}

	if err != nil {
		return truncateStoredString(fmt.Sprintf("%v", list), limit)
	}
	return truncateStoredString(string(encoded), limit)
}
