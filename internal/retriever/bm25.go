// Package retriever implements the Tool Retriever: ranking a tool catalog against a
// task query so the planner's drafting stage only sees the most relevant candidates,
// plus a pinned set that is always included regardless of rank.
//
// The ranking itself is hand-rolled BM25 over the standard library rather than a
// vendored search engine: no lexical-search library appears anywhere in the example
// pack, and BM25's formula is small and fixed enough that a purpose-built scorer
// keeps the field weighting (name/description/schema/tags) explicit and testable,
// instead of bending a generic full-text index to a four-field weighting scheme it
// wasn't built for.
package retriever

import (
	"math"
	"sort"
	"strings"

	"github.com/dagtask/planrunner/internal/toolregistry"
)

// BM25 parameters, standard defaults.
const (
	k1 = 1.2
	b  = 0.75
)

// FieldWeights controls how much each of a tool descriptor's fields contributes to
// its score.
type FieldWeights struct {
	Name        float64
	Description float64
	Schema      float64
	Tags        float64
}

// DefaultFieldWeights weights the name most heavily, then description, then the
// schema's property names. Descriptors carry no tags, so the index leaves the tags
// field empty and the Tags weight does not change any score.
var DefaultFieldWeights = FieldWeights{Name: 4, Description: 2, Schema: 1, Tags: 1}

// BM25Ranker scores a fixed tool catalog against arbitrary queries. It indexes the
// catalog once at construction time (document frequencies, average field lengths) and
// reuses that index for every Rank call.
type BM25Ranker struct {
	weights FieldWeights
	docs    []scoredDoc
	df      map[string]int
	avgLen  map[string]float64
	n       int
}

type scoredDoc struct {
	name   string
	fields map[string][]string // field name -> token list
	length map[string]int
}

// NewBM25Ranker indexes catalog for ranking.
func NewBM25Ranker(catalog []toolregistry.Descriptor, weights FieldWeights) *BM25Ranker {
	r := &BM25Ranker{
		weights: weights,
		df:      make(map[string]int),
		avgLen:  make(map[string]float64),
		n:       len(catalog),
	}

	lenSums := make(map[string]int)
	for _, d := range catalog {
		fields := map[string][]string{
			"name":        tokenize(d.Name),
			"description": tokenize(d.Description),
			"schema":      tokenize(schemaText(d.InputSchema)),
			"tags":        nil,
		}
		lengths := make(map[string]int, len(fields))
		seen := make(map[string]map[string]bool, len(fields))
		for field, toks := range fields {
			lengths[field] = len(toks)
			lenSums[field] += len(toks)
			seen[field] = make(map[string]bool)
			for _, t := range toks {
				seen[field][t] = true
			}
		}
		for field, terms := range seen {
			for t := range terms {
				r.df[field+"\x00"+t]++
			}
		}
		r.docs = append(r.docs, scoredDoc{name: d.Name, fields: fields, length: lengths})
	}
	for field, sum := range lenSums {
		if r.n > 0 {
			r.avgLen[field] = float64(sum) / float64(r.n)
		}
	}
	return r
}

// Scored is one ranked tool name with its score.
type Scored struct {
	Name  string
	Score float64
}

// Rank scores every catalog entry against query and returns them sorted by
// descending score.
func (r *BM25Ranker) Rank(query string) []Scored {
	qTerms := tokenize(query)
	results := make([]Scored, 0, len(r.docs))
	for _, doc := range r.docs {
		score := r.scoreDoc(doc, qTerms)
		results = append(results, Scored{Name: doc.name, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func (r *BM25Ranker) scoreDoc(doc scoredDoc, qTerms []string) float64 {
	fieldWeight := map[string]float64{
		"name": r.weights.Name, "description": r.weights.Description,
		"schema": r.weights.Schema, "tags": r.weights.Tags,
	}
	var total float64
	for field, toks := range doc.fields {
		w := fieldWeight[field]
		if w == 0 {
			continue
		}
		avg := r.avgLen[field]
		if avg == 0 {
			continue
		}
		termFreq := make(map[string]int, len(toks))
		for _, t := range toks {
			termFreq[t]++
		}
		docLen := float64(doc.length[field])
		for _, qt := range qTerms {
			tf := termFreq[qt]
			if tf == 0 {
				continue
			}
			df := r.df[field+"\x00"+qt]
			idf := math.Log(1 + (float64(r.n)-float64(df)+0.5)/(float64(df)+0.5))
			num := float64(tf) * (k1 + 1)
			den := float64(tf) + k1*(1-b+b*(docLen/avg))
			total += w * idf * (num / den)
		}
	}
	return total
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func schemaText(schema map[string]any) string {
	if schema == nil {
		return ""
	}
	var sb strings.Builder
	props, _ := schema["properties"].(map[string]any)
	for name := range props {
		sb.WriteString(name)
		sb.WriteByte(' ')
	}
	return sb.String()
}
