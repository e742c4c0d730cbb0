package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lookupFrom(outputs map[string]any) OutputLookup {
	return func(nodeID string) (any, bool) {
		v, ok := outputs[nodeID]
		return v, ok
	}
}

func TestResolveScalarOutput(t *testing.T) {
	lookup := lookupFrom(map[string]any{"ST1": "hello"})
	assert.Equal(t, "say: hello", Resolve("say: {ST1.output}", lookup))
}

func TestResolveNestedKeyPath(t *testing.T) {
	lookup := lookupFrom(map[string]any{
		"ST1": map[string]any{"city": map[string]any{"name": "Beijing"}},
	})
	assert.Equal(t, "Beijing", Resolve("{ST1.output.city.name}", lookup))
}

func TestResolveArrayIndex(t *testing.T) {
	lookup := lookupFrom(map[string]any{
		"ST1": map[string]any{"days": []any{"mon", "tue", "wed"}},
	})
	assert.Equal(t, "tue", Resolve("{ST1.output.days[1]}", lookup))
}

func TestResolveContainerRendersAsJSON(t *testing.T) {
	lookup := lookupFrom(map[string]any{
		"ST1": map[string]any{"a": 1, "b": 2},
	})
	got := Resolve("{ST1.output}", lookup)
	assert.JSONEq(t, `{"a":1,"b":2}`, got)
}

func TestResolveUnknownNodeIDSubstitutesMissingOutputPlaceholder(t *testing.T) {
	lookup := lookupFrom(map[string]any{})
	assert.Equal(t, "{Missing Output: ST9}", Resolve("{ST9.output}", lookup))
}

func TestResolveBadPathSubstitutesInvalidPathPlaceholder(t *testing.T) {
	lookup := lookupFrom(map[string]any{"ST1": "hello"})
	assert.Equal(t, "{Invalid Output Path: ST1.missing}", Resolve("{ST1.output.missing}", lookup))
}

func TestResolveNonReferenceBracesPassThrough(t *testing.T) {
	lookup := lookupFrom(map[string]any{})
	assert.Equal(t, "plain {text} here", Resolve("plain {text} here", lookup))
}

func TestResolveMultipleReferencesInOneString(t *testing.T) {
	lookup := lookupFrom(map[string]any{"ST1": "a", "ST2": "b"})
	assert.Equal(t, "a and b", Resolve("{ST1.output} and {ST2.output}", lookup))
}
