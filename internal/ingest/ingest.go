// Package ingest walks a directory tree, chunks every supported document,
// and indexes the chunks into the knowledge store.
//
// Per-file failures are logged and skipped so one bad file never aborts a
// batch; the result carries the skip count for the caller to surface.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/docent-ai/docent/internal/chunker"
)

// Indexer is the slice of knowledge.Store the ingester consumes.
type Indexer interface {
	Add(ctx context.Context, chunks []chunker.Chunk) error
}

// Result summarizes one ingestion run.
type Result struct {
	FilesIndexed int
	FilesSkipped int
	ChunksAdded  int
}

// Ingester indexes documents from the filesystem.
type Ingester struct {
	indexer      Indexer
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// Config contains the parameters for an Ingester.
type Config struct {
	Indexer      Indexer
	ChunkSize    int
	ChunkOverlap int
	Logger       *slog.Logger
}

// New creates an Ingester.
func New(cfg Config) (*Ingester, error) {
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ingester{
		indexer:      cfg.Indexer,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       cfg.Logger,
	}, nil
}

// Dir walks root recursively and indexes every supported file. Unsupported
// extensions are ignored silently; files that fail to load or index are
// logged and counted as skipped.
func (ing *Ingester) Dir(ctx context.Context, root string) (Result, error) {
	var res Result

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		added, err := ing.File(ctx, path)
		if err != nil {
			if errors.Is(err, chunker.ErrUnsupportedFormat) {
				return nil
			}
			ing.logger.Warn("skipping file", "path", path, "error", err)
			res.FilesSkipped++
			return nil
		}

		res.FilesIndexed++
		res.ChunksAdded += added
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walking %s: %w", root, err)
	}

	ing.logger.Info("ingestion complete",
		"root", root,
		"files_indexed", res.FilesIndexed,
		"files_skipped", res.FilesSkipped,
		"chunks_added", res.ChunksAdded)
	return res, nil
}

// File loads, chunks, and indexes a single document. Returns the number of
// chunks added.
func (ing *Ingester) File(ctx context.Context, path string) (int, error) {
	text, docType, err := chunker.LoadFile(path)
	if err != nil {
		return 0, err
	}

	chunks := chunker.WithMetadata(text, ing.chunkSize, ing.chunkOverlap, filepath.Base(path), docType)
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := ing.indexer.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", path, err)
	}

	ing.logger.Debug("indexed file", "path", path, "chunks", len(chunks))
	return len(chunks), nil
}
