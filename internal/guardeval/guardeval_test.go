package guardeval

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/dagtask/planrunner/internal/domain/errors"
	"github.com/dagtask/planrunner/internal/llm"
)

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Complete(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	return f.reply, f.err
}

func TestShapeReturnsValidatedObject(t *testing.T) {
	chat := &fakeChat{reply: `{"path": "report.xlsx"}`}
	eval := New(chat, zerolog.Nop())

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []any{"path"},
	}

	out, err := eval.Shape(context.Background(), "GUARD1", "save_excel", schema, "some upstream text")
	require.NoError(t, err)
	assert.Equal(t, "report.xlsx", out["path"])
}

func TestShapeErrorsWhenResponseHasNoRecoverableJSON(t *testing.T) {
	chat := &fakeChat{reply: "I cannot help with that"}
	eval := New(chat, zerolog.Nop())

	_, err := eval.Shape(context.Background(), "GUARD1", "save_excel", nil, "x")
	require.Error(t, err)
	var guardErr *domainerrors.GuardError
	assert.ErrorAs(t, err, &guardErr)
}

func TestShapeErrorsWhenShapedArgumentsFailSchema(t *testing.T) {
	chat := &fakeChat{reply: `{"wrong_field": 1}`}
	eval := New(chat, zerolog.Nop())

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []any{"path"},
	}

	_, err := eval.Shape(context.Background(), "GUARD1", "save_excel", schema, "x")
	require.Error(t, err)
	var guardErr *domainerrors.GuardError
	assert.ErrorAs(t, err, &guardErr)
}

func TestShapeSkipsSchemaValidationWhenSchemaNil(t *testing.T) {
	chat := &fakeChat{reply: `{"anything": true}`}
	eval := New(chat, zerolog.Nop())

	out, err := eval.Shape(context.Background(), "GUARD1", "save_excel", nil, "x")
	require.NoError(t, err)
	assert.Equal(t, true, out["anything"])
}

func TestShapeWrapsLLMCallError(t *testing.T) {
	chat := &fakeChat{err: assert.AnError}
	eval := New(chat, zerolog.Nop())

	_, err := eval.Shape(context.Background(), "GUARD1", "save_excel", nil, "x")
	assert.Error(t, err)
}
