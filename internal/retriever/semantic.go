package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/dagtask/planrunner/internal/toolregistry"
)

// Embedder is the narrow LLM capability the semantic backend needs.
type Embedder interface {
	Embed(ctx context.Context, input string, model string) ([]float32, error)
	EmbedBatch(ctx context.Context, inputs []string, model string) ([][]float32, error)
}

// cacheEntry is what's persisted to disk: the catalog's mtime and tool-name list at
// the time the cache was built, plus one embedding per tool. A cache is only reused
// if both the mtime and the name list match exactly — any drift (a tool added,
// removed, or the catalog file touched) forces a rebuild rather than silently serving
// stale vectors.
type cacheEntry struct {
	CatalogModTime int64                `json:"catalog_mod_time"`
	ToolNames      []string             `json:"tool_names"`
	Embeddings     map[string][]float32 `json:"embeddings"`
}

// SemanticRanker ranks a tool catalog by cosine similarity between the query's
// embedding and each tool's embedding, using go-openai's embeddings endpoint through
// the llm package. Catalog embeddings are cached to disk keyed on catalog mtime plus
// an exact match of the tool-name set, avoiding a re-embedding call on every process
// start.
type SemanticRanker struct {
	embedder   Embedder
	model      string
	cachePath  string
	embeddings map[string][]float32
}

// NewSemanticRanker builds (or loads from cache) embeddings for catalog's tools.
// catalogModTime identifies the catalog version for the cache key (e.g. the mtime of
// the tool catalog file on disk).
func NewSemanticRanker(ctx context.Context, embedder Embedder, model, cachePath string, catalog []toolregistry.Descriptor, catalogModTime time.Time) (*SemanticRanker, error) {
	names := make([]string, len(catalog))
	texts := make([]string, len(catalog))
	for i, d := range catalog {
		names[i] = d.Name
		texts[i] = d.Name + " " + d.Description
	}

	if cached, ok := loadCache(cachePath, catalogModTime, names); ok {
		return &SemanticRanker{embedder: embedder, model: model, cachePath: cachePath, embeddings: cached}, nil
	}

	vectors, err := embedder.EmbedBatch(ctx, texts, model)
	if err != nil {
		return nil, fmt.Errorf("retriever: embedding tool catalog: %w", err)
	}
	embeddings := make(map[string][]float32, len(catalog))
	for i, name := range names {
		embeddings[name] = vectors[i]
	}

	entry := cacheEntry{CatalogModTime: catalogModTime.Unix(), ToolNames: names, Embeddings: embeddings}
	_ = saveCache(cachePath, entry)

	return &SemanticRanker{embedder: embedder, model: model, cachePath: cachePath, embeddings: embeddings}, nil
}

// Rank embeds query and returns every catalog tool sorted by descending cosine
// similarity to it.
func (r *SemanticRanker) Rank(ctx context.Context, query string) ([]Scored, error) {
	qVec, err := r.embedder.Embed(ctx, query, r.model)
	if err != nil {
		return nil, fmt.Errorf("retriever: embedding query: %w", err)
	}
	results := make([]Scored, 0, len(r.embeddings))
	for name, vec := range r.embeddings {
		results = append(results, Scored{Name: name, Score: cosineSimilarity(qVec, vec)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func loadCache(path string, catalogModTime time.Time, names []string) (map[string][]float32, bool) {
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.CatalogModTime != catalogModTime.Unix() {
		return nil, false
	}
	if !sameNameSet(entry.ToolNames, names) {
		return nil, false
	}
	return entry.Embeddings, true
}

func saveCache(path string, entry cacheEntry) error {
	if path == "" {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func sameNameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, n := range a {
		set[n] = true
	}
	for _, n := range b {
		if !set[n] {
			return false
		}
	}
	return true
}
