// Package knowledge is the vector index adapter: it owns chunk ingestion
// and nearest-neighbor search over an external embedding service and an
// opaque index.
//
// Store composes two collaborator interfaces defined here, consumer-side:
// Embedder (text to vectors) and Index (vector storage and ranked query).
// The production Index is PostgreSQL + pgvector (postgres.go); tests use
// tracked mocks.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docent-ai/docent/internal/chunker"
)

// Embedder turns texts into embedding vectors, preserving input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the opaque nearest-neighbor store. Query results are ranked
// ascending by distance.
type Index interface {
	Upsert(ctx context.Context, items []IndexItem) error
	Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Match, error)
	Count(ctx context.Context) (int, error)
}

// Store manages document chunks with vector search. It is safe for
// concurrent use as long as its Embedder and Index are.
type Store struct {
	index    Index
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(index Index, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		index:    index,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds and indexes the given chunks. Chunk identity is
// (source, chunk index); re-adding the same chunk overwrites it.
func (s *Store) Add(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	items := make([]IndexItem, len(chunks))
	for i, c := range chunks {
		items[i] = IndexItem{
			ID:     fmt.Sprintf("%s:%d", c.Source, c.Index),
			Vector: vectors[i],
			Text:   c.Text,
			Metadata: map[string]string{
				MetaSource:      c.Source,
				MetaDocType:     string(c.DocType),
				MetaChunkIndex:  fmt.Sprintf("%d", c.Index),
				MetaTotalChunks: fmt.Sprintf("%d", c.TotalChunks),
				MetaCharCount:   fmt.Sprintf("%d", c.CharCount),
			},
		}
	}

	if err := s.index.Upsert(ctx, items); err != nil {
		return fmt.Errorf("indexing %d chunks: %w", len(items), err)
	}

	s.logger.Debug("indexed chunks", "count", len(items), "source", chunks[0].Source)
	return nil
}

// Search embeds the query and returns the closest matches, best first.
//
//	matches, err := store.Search(ctx, "remote work policy",
//	    knowledge.WithTopK(5),
//	    knowledge.WithFilter(knowledge.MetaDocType, "txt"))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Match, error) {
	cfg := buildSearchConfig(opts)

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	matches, err := s.index.Query(ctx, vectors[0], cfg.topK, cfg.filter)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	return matches, nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
