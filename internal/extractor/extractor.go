// Package extractor implements the JSON Extractor: recovery of a JSON value from raw
// LLM text that may wrap it in "<think>" reasoning, markdown code fences, or leading
// and trailing commentary.
package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	domainerrors "github.com/dagtask/planrunner/internal/domain/errors"
)

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

var fencedCodeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractObject recovers a JSON object from raw LLM text, trying each strategy in
// order until one parses cleanly: stripping <think> tags then direct parse, scanning
// fenced code blocks, and finally a bracket-matching scan that respects string
// escapes. It returns an ExtractionError if every strategy fails.
func ExtractObject(raw string) (map[string]any, error) {
	v, err := Extract(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, domainerrors.NewExtractionError(raw, "recovered value is not a JSON object", nil)
	}
	return obj, nil
}

// Extract recovers any JSON value (object, array, or scalar) from raw LLM text using
// the same strategy chain as ExtractObject.
func Extract(raw string) (any, error) {
	stripped := stripThinkTags(raw)

	if v, ok := tryParse(strings.TrimSpace(stripped)); ok {
		return v, nil
	}

	for _, block := range fencedCodeBlockPattern.FindAllStringSubmatch(stripped, -1) {
		if v, ok := tryParse(strings.TrimSpace(block[1])); ok {
			return v, nil
		}
	}

	if v, ok := tryParse(strings.TrimSpace(raw)); ok {
		return v, nil
	}

	if span, ok := scanBalanced(stripped); ok {
		if v, ok := tryParse(span); ok {
			return v, nil
		}
	}
	if span, ok := scanBalanced(raw); ok {
		if v, ok := tryParse(span); ok {
			return v, nil
		}
	}

	return nil, domainerrors.NewExtractionError(raw, "no JSON value recoverable from response", nil)
}

func stripThinkTags(s string) string {
	return thinkTagPattern.ReplaceAllString(s, "")
}

func tryParse(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return "", false
	}
	return v, true
}

// scanBalanced finds the first top-level JSON object or array in s by scanning for a
// balanced bracket span, tracking string literals so braces inside quoted strings
// don't throw off the bracket count.
func scanBalanced(s string) (string, bool) {
	start := -1
	var openCh, closeCh byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			openCh = s[i]
			if openCh == '{' {
				closeCh = '}'
			} else {
				closeCh = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
