// Package retriever converts nearest-neighbor matches into scored context
// documents for prompt assembly.
//
// Retrieval failures degrade to an empty result set instead of
// propagating: a retrieval outage must not take down the conversational
// turn. The degradation is logged, never returned.
package retriever

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/knowledge"
)

// Searcher is the slice of knowledge.Store the retriever consumes.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Match, error)
}

// Document is one retrieved chunk scored for a single query.
//
// Relevance is 1 - Distance. It is not clamped: with an unbounded distance
// metric it can fall outside [0, 1], and callers must tolerate that.
type Document struct {
	Text       string
	Source     string
	DocType    chunker.DocType
	ChunkIndex int
	Relevance  float64
	Distance   float64
}

// Retriever issues searches against the knowledge store.
type Retriever struct {
	searcher Searcher
	nResults int
	logger   *slog.Logger
}

// New creates a Retriever. nResults is the default result count used when
// a call passes n <= 0. A nil logger falls back to slog.Default().
func New(searcher Searcher, nResults int, logger *slog.Logger) *Retriever {
	if nResults <= 0 {
		nResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		searcher: searcher,
		nResults: nResults,
		logger:   logger,
	}
}

// Retrieve returns up to n documents relevant to query, best first, in the
// index's similarity order. filter optionally restricts by chunk metadata.
//
// On search failure it returns an empty slice: availability over
// completeness.
func (r *Retriever) Retrieve(ctx context.Context, query string, n int, filter map[string]string) []Document {
	if n <= 0 {
		n = r.nResults
	}

	opts := []knowledge.SearchOption{knowledge.WithTopK(n)}
	for k, v := range filter {
		opts = append(opts, knowledge.WithFilter(k, v))
	}

	matches, err := r.searcher.Search(ctx, query, opts...)
	if err != nil {
		r.logger.Warn("retrieval failed, continuing without context", "error", err)
		return nil
	}

	docs := make([]Document, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, Document{
			Text:       m.Text,
			Source:     metaOr(m.Metadata, knowledge.MetaSource, "unknown"),
			DocType:    chunker.DocType(metaOr(m.Metadata, knowledge.MetaDocType, "unknown")),
			ChunkIndex: metaInt(m.Metadata, knowledge.MetaChunkIndex),
			Relevance:  1 - m.Distance,
			Distance:   m.Distance,
		})
	}

	r.logger.Debug("retrieved documents", "query_length", len(query), "count", len(docs))
	return docs
}

// RetrieveWithThreshold composes Retrieve with a minimum-relevance filter.
// Order is preserved; the result is always a subset of Retrieve's output.
func (r *Retriever) RetrieveWithThreshold(ctx context.Context, query string, threshold float64, n int) []Document {
	docs := r.Retrieve(ctx, query, n, nil)

	filtered := docs[:0]
	for _, d := range docs {
		if d.Relevance >= threshold {
			filtered = append(filtered, d)
		}
	}

	r.logger.Debug("applied relevance threshold",
		"threshold", threshold, "kept", len(filtered), "dropped", len(docs)-len(filtered))
	return filtered
}

// Sources returns the distinct source values of docs. Order is not
// guaranteed: this is a set, not a sequence.
func Sources(docs []Document) []string {
	seen := make(map[string]struct{}, len(docs))
	var sources []string
	for _, d := range docs {
		if _, ok := seen[d.Source]; ok {
			continue
		}
		seen[d.Source] = struct{}{}
		sources = append(sources, d.Source)
	}
	return sources
}

func metaOr(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return fallback
}

func metaInt(m map[string]string, key string) int {
	n, err := strconv.Atoi(m[key])
	if err != nil {
		return 0
	}
	return n
}
