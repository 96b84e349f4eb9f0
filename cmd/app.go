package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docent-ai/docent/internal/ai"
	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/ingest"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/profile"
	"github.com/docent-ai/docent/internal/prompt"
	"github.com/docent-ai/docent/internal/retriever"
	"github.com/docent-ai/docent/internal/session"
)

// Persistence file names inside the data directory.
const (
	sessionsFile = "sessions.json"
	profilesFile = "user_profiles.json"
)

// app is the wired application: every component constructed once from the
// configuration, shared by all commands.
type app struct {
	cfg       *config.Config
	logger    log.Logger
	pool      *pgxpool.Pool
	knowledge *knowledge.Store
	sessions  *session.Store
	assistant *assistant.Assistant
	ingester  *ingest.Ingester
}

// newApp loads configuration and wires the full component graph. The
// caller must close() the result.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{Level: logLevel()})
	logger.Debug("configuration loaded", "config", cfg)

	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	index := knowledge.NewPostgresIndex(pool, logger)
	if err := index.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("preparing document index: %w", err)
	}

	// The OpenAI client doubles as the embedder regardless of the
	// completion provider.
	openaiClient := ai.NewOpenAI(ai.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.OpenAIModel,
		EmbeddingModel: cfg.OpenAIEmbeddingModel,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
	})

	store := knowledge.New(index, openaiClient, logger)
	retr := retriever.New(store, cfg.NResults, logger)
	prompts := prompt.NewBuilder(cfg.SystemPrompt, cfg.MaxContextLength, cfg.MaxHistoryMessages, logger)

	sessions := session.NewStore(session.StoreConfig{
		Timeout: time.Duration(cfg.SessionTimeout) * time.Second,
		Path:    filepath.Join(cfg.DataDir, sessionsFile),
		Logger:  logger,
	})
	sessions.Load()

	profiles := profile.NewStore(profile.StoreConfig{
		Path:   filepath.Join(cfg.DataDir, profilesFile),
		Logger: logger,
	})

	completer, err := ai.NewCompleter(cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	asst, err := assistant.New(assistant.Config{
		Retriever:    retr,
		Prompts:      prompts,
		Sessions:     sessions,
		Profiles:     profiles,
		Completer:    completer,
		Documents:    store,
		Logger:       logger,
		MinRelevance: cfg.MinRelevance,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating assistant: %w", err)
	}

	ingester, err := ingest.New(ingest.Config{
		Indexer:      store,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Logger:       logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating ingester: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		knowledge: store,
		sessions:  sessions,
		assistant: asst,
		ingester:  ingester,
	}, nil
}

func (a *app) close() {
	if err := a.sessions.Save(); err != nil {
		a.logger.Warn("final session save failed", "error", err)
	}
	a.pool.Close()
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
