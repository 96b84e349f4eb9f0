package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Table schema constants for the documents table.
const (
	DocumentsTable = "documents"

	// VectorDimension matches text-embedding-3-small output.
	VectorDimension = 1536
)

// PostgresIndex implements Index on PostgreSQL + pgvector using cosine
// distance. Safe for concurrent use; the pool handles connections.
type PostgresIndex struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresIndex creates a PostgresIndex over an existing pool.
func NewPostgresIndex(pool *pgxpool.Pool, logger *slog.Logger) *PostgresIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresIndex{pool: pool, logger: logger}
}

// EnsureSchema creates the pgvector extension, documents table, and HNSW
// index if they do not exist. Idempotent; called once at startup.
func (p *PostgresIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         text PRIMARY KEY,
			content    text NOT NULL,
			embedding  vector(%d) NOT NULL,
			metadata   jsonb NOT NULL DEFAULT '{}',
			created_at timestamptz NOT NULL DEFAULT now()
		)`, DocumentsTable, VectorDimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING hnsw (embedding vector_cosine_ops)`, DocumentsTable, DocumentsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_metadata_idx
			ON %s USING gin (metadata)`, DocumentsTable, DocumentsTable),
	}

	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts or replaces items by ID in a single transaction.
func (p *PostgresIndex) Upsert(ctx context.Context, items []IndexItem) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `INSERT INTO documents (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`

	for _, item := range items {
		metadataJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", item.ID, err)
		}
		vec := pgvector.NewVector(item.Vector)
		if _, err := tx.Exec(ctx, query, item.ID, item.Text, vec, metadataJSON); err != nil {
			return fmt.Errorf("upserting %q: %w", item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// Query returns the k nearest neighbors of vector by cosine distance,
// optionally restricted to rows whose metadata contains filter.
//
// The filter is always marshaled with json.Marshal and bound as a
// parameter; never interpolate it into the SQL.
func (p *PostgresIndex) Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Match, error) {
	vec := pgvector.NewVector(vector)

	var (
		rowsQuery string
		args      []any
	)
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
		rowsQuery = `SELECT id, content, metadata, embedding <=> $1 AS distance
			FROM documents
			WHERE metadata @> $2
			ORDER BY distance
			LIMIT $3`
		args = []any{vec, filterJSON, k}
	} else {
		rowsQuery = `SELECT id, content, metadata, embedding <=> $1 AS distance
			FROM documents
			ORDER BY distance
			LIMIT $2`
		args = []any{vec, k}
	}

	rows, err := p.pool.Query(ctx, rowsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m            Match
			metadataJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.Text, &metadataJSON, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			p.logger.Warn("failed to parse match metadata", "id", m.ID, "error", err)
			m.Metadata = make(map[string]string)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}
	return matches, nil
}

// Count returns the total number of indexed rows.
func (p *PostgresIndex) Count(ctx context.Context) (int, error) {
	var count int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return int(count), nil
}
