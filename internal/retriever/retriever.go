package retriever

import (
	"context"

	"github.com/dagtask/planrunner/internal/toolregistry"
)

// Mode selects which ranking backend the Retriever uses.
type Mode string

const (
	ModeBM25     Mode = "bm25"
	ModeSemantic Mode = "semantic"
)

// Config tunes a Retriever.
type Config struct {
	Mode        Mode
	TopK        int
	ExpandK     int
	PinnedTools []string
}

// Ranker is the common ranking capability both backends expose over plain query
// strings, letting Retriever stay agnostic of which one it's wrapping.
type Ranker interface {
	RankNames(ctx context.Context, query string) ([]string, error)
}

type bm25Adapter struct{ ranker *BM25Ranker }

func (a bm25Adapter) RankNames(_ context.Context, query string) ([]string, error) {
	scored := a.ranker.Rank(query)
	names := make([]string, len(scored))
	for i, s := range scored {
		names[i] = s.Name
	}
	return names, nil
}

// NewBM25RankerAdapter wraps a BM25Ranker as a Ranker.
func NewBM25RankerAdapter(r *BM25Ranker) Ranker { return bm25Adapter{ranker: r} }

type semanticAdapter struct{ ranker *SemanticRanker }

func (a semanticAdapter) RankNames(ctx context.Context, query string) ([]string, error) {
	scored, err := a.ranker.Rank(ctx, query)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(scored))
	for i, s := range scored {
		names[i] = s.Name
	}
	return names, nil
}

// NewSemanticRankerAdapter wraps a SemanticRanker as a Ranker.
func NewSemanticRankerAdapter(r *SemanticRanker) Ranker { return semanticAdapter{ranker: r} }

// Retriever is the Tool Retriever: it ranks the catalog against a query using the
// configured backend, takes the top-K result, and always unions in the configured
// pin set regardless of where (or whether) a pinned tool ranked.
type Retriever struct {
	ranker  Ranker
	catalog map[string]toolregistry.Descriptor
	cfg     Config
}

// New creates a Retriever over catalog, ranking with ranker per cfg.
func New(ranker Ranker, catalog []toolregistry.Descriptor, cfg Config) *Retriever {
	byName := make(map[string]toolregistry.Descriptor, len(catalog))
	for _, d := range catalog {
		byName[d.Name] = d
	}
	return &Retriever{ranker: ranker, catalog: byName, cfg: cfg}
}

// Retrieve returns up to TopK ranked tool names plus every pinned tool, deduplicated,
// pinned tools appended after the ranked set in configuration order.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	ranked, err := r.ranker.RankNames(ctx, query)
	if err != nil {
		return nil, err
	}

	topK := r.cfg.TopK
	if topK <= 0 || topK > len(ranked) {
		topK = len(ranked)
	}

	seen := make(map[string]bool, topK+len(r.cfg.PinnedTools))
	var out []string
	for _, name := range ranked[:topK] {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range r.cfg.PinnedTools {
		if _, known := r.catalog[name]; !known {
			continue
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// RetrieveExpanded is used by the planner's draft stage when a draft reports missing
// tools: it reruns the ranking with a wider cutoff (ExpandK instead of TopK) so the
// re-rendered draft can see candidates the initial narrower window missed.
func (r *Retriever) RetrieveExpanded(ctx context.Context, query string) ([]string, error) {
	expandK := r.cfg.ExpandK
	if expandK <= 0 {
		expandK = r.cfg.TopK * 2
	}
	widened := *r
	widened.cfg.TopK = expandK
	return widened.Retrieve(ctx, query)
}
