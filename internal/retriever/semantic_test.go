package retriever

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagtask/planrunner/internal/toolregistry"
)

type fakeEmbedder struct {
	byText    map[string][]float32
	embedErr  error
	batchErr  error
	batchCall int
}

func (f *fakeEmbedder) Embed(ctx context.Context, input string, model string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.byText[input], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, inputs []string, model string) ([][]float32, error) {
	f.batchCall++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = f.byText[in]
	}
	return out, nil
}

func semanticCatalog() []toolregistry.Descriptor {
	return []toolregistry.Descriptor{
		{Name: "weather", Description: "fetch weather"},
		{Name: "excel", Description: "write an excel file"},
	}
}

func TestSemanticRankerRanksByCosineSimilarity(t *testing.T) {
	embedder := &fakeEmbedder{byText: map[string][]float32{
		"weather fetch weather":     {1, 0},
		"excel write an excel file": {0, 1},
		"weather query":             {1, 0},
	}}
	ranker, err := NewSemanticRanker(context.Background(), embedder, "m", "", semanticCatalog(), time.Unix(0, 0))
	require.NoError(t, err)

	results, err := ranker.Rank(context.Background(), "weather query")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "weather", results[0].Name)
}

func TestSemanticRankerCachesEmbeddingsToDisk(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	embedder := &fakeEmbedder{byText: map[string][]float32{
		"weather fetch weather":     {1, 0},
		"excel write an excel file": {0, 1},
	}}
	modTime := time.Unix(1000, 0)

	_, err := NewSemanticRanker(context.Background(), embedder, "m", cachePath, semanticCatalog(), modTime)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.batchCall)
	_, err = os.Stat(cachePath)
	require.NoError(t, err)

	_, err = NewSemanticRanker(context.Background(), embedder, "m", cachePath, semanticCatalog(), modTime)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.batchCall, "second load should hit the cache, not re-embed")
}

func TestSemanticRankerRebuildsWhenCatalogModTimeChanges(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	embedder := &fakeEmbedder{byText: map[string][]float32{
		"weather fetch weather":     {1, 0},
		"excel write an excel file": {0, 1},
	}}

	_, err := NewSemanticRanker(context.Background(), embedder, "m", cachePath, semanticCatalog(), time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.batchCall)

	_, err = NewSemanticRanker(context.Background(), embedder, "m", cachePath, semanticCatalog(), time.Unix(2000, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.batchCall, "changed mod time should force a rebuild")
}

func TestSemanticRankerRebuildsWhenToolSetChanges(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	embedder := &fakeEmbedder{byText: map[string][]float32{
		"weather fetch weather":     {1, 0},
		"excel write an excel file": {0, 1},
		"maps route planning":       {0, 1},
	}}
	modTime := time.Unix(1000, 0)

	_, err := NewSemanticRanker(context.Background(), embedder, "m", cachePath, semanticCatalog(), modTime)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.batchCall)

	withExtra := append(semanticCatalog(), toolregistry.Descriptor{Name: "maps", Description: "route planning"})
	_, err = NewSemanticRanker(context.Background(), embedder, "m", cachePath, withExtra, modTime)
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.batchCall)
}

func TestSemanticRankerPropagatesEmbedBatchError(t *testing.T) {
	embedder := &fakeEmbedder{byText: map[string][]float32{}, batchErr: assert.AnError}
	_, err := NewSemanticRanker(context.Background(), embedder, "m", "", semanticCatalog(), time.Unix(0, 0))
	assert.Error(t, err)
}

func TestSemanticRankerRankPropagatesEmbedError(t *testing.T) {
	embedder := &fakeEmbedder{byText: map[string][]float32{
		"weather fetch weather":     {1, 0},
		"excel write an excel file": {0, 1},
	}}
	ranker, err := NewSemanticRanker(context.Background(), embedder, "m", "", semanticCatalog(), time.Unix(0, 0))
	require.NoError(t, err)

	embedder.embedErr = assert.AnError
	_, err = ranker.Rank(context.Background(), "query")
	assert.Error(t, err)
}
