// Package assistant orchestrates one conversational turn end-to-end:
// profile upkeep, session lookup, context retrieval, prompt assembly,
// completion, history append, and persistence.
//
// The core assumes at most one in-flight mutation per user ID at a time;
// the surrounding transport serializes per-user turns. Retrieval failures
// degrade to answering without context; completion failures are hard
// failures of the turn and propagate to the caller.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/docent-ai/docent/internal/ai"
	"github.com/docent-ai/docent/internal/profile"
	"github.com/docent-ai/docent/internal/prompt"
	"github.com/docent-ai/docent/internal/retriever"
	"github.com/docent-ai/docent/internal/session"
)

// fallbackResponse is returned when the model produces an empty response.
const fallbackResponse = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// ErrCompletionFailed indicates the completion backend failed the turn.
var ErrCompletionFailed = errors.New("completion failed")

// DocumentCounter reports the size of the document index, for stats.
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// Config contains all required parameters for an Assistant.
type Config struct {
	Retriever *retriever.Retriever
	Prompts   *prompt.Builder
	Sessions  *session.Store
	Profiles  *profile.Store
	Completer ai.Completer
	Documents DocumentCounter
	Logger    *slog.Logger

	// MinRelevance, when positive, filters retrieved context by
	// relevance before prompt assembly. Zero keeps every match.
	MinRelevance float64

	// RateLimiter paces completion calls. Nil uses a default of
	// 10 req/s with burst 30.
	RateLimiter *rate.Limiter
}

// validate checks that all required dependencies are present.
func (cfg Config) validate() error {
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Prompts == nil {
		return errors.New("prompt builder is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Profiles == nil {
		return errors.New("profile store is required")
	}
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.Documents == nil {
		return errors.New("document counter is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Answer is the result of one turn.
type Answer struct {
	Text    string
	Sources []string
}

// Stats summarizes the assistant's stores.
type Stats struct {
	DocumentCount  int
	UserCount      int
	ActiveSessions int
}

// Assistant runs conversational turns. Dependencies are captured
// immutably at construction.
type Assistant struct {
	retriever    *retriever.Retriever
	prompts      *prompt.Builder
	sessions     *session.Store
	profiles     *profile.Store
	completer    ai.Completer
	documents    DocumentCounter
	logger       *slog.Logger
	minRelevance float64
	limiter      *rate.Limiter
}

// New creates an Assistant from the given configuration.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	return &Assistant{
		retriever:    cfg.Retriever,
		prompts:      cfg.Prompts,
		sessions:     cfg.Sessions,
		profiles:     cfg.Profiles,
		completer:    cfg.Completer,
		documents:    cfg.Documents,
		logger:       cfg.Logger,
		minRelevance: cfg.MinRelevance,
		limiter:      limiter,
	}, nil
}

// Answer runs one turn for userID: retrieve context for query, assemble
// the prompt with bounded history, call the completion backend, append
// both sides to the session, and persist.
//
// Completion failure propagates; no partial answer is ever returned.
func (a *Assistant) Answer(ctx context.Context, userID, query string) (Answer, error) {
	if err := a.profiles.CreateOrUpdate(userID, "", nil); err != nil {
		a.logger.Warn("profile update failed", "user_id", userID, "error", err)
	}
	if err := a.profiles.IncrementMessageCount(userID); err != nil {
		a.logger.Warn("profile counter update failed", "user_id", userID, "error", err)
	}

	sess := a.sessions.GetOrCreate(userID)
	sess.AddMessage(prompt.RoleUser, query)

	var docs []retriever.Document
	if a.minRelevance > 0 {
		docs = a.retriever.RetrieveWithThreshold(ctx, query, a.minRelevance, 0)
	} else {
		docs = a.retriever.Retrieve(ctx, query, 0, nil)
	}

	// History fed to the model excludes the question just appended; the
	// query rides in the final user message with the context block.
	history := sess.History(0)
	if len(history) > 0 {
		history = history[:len(history)-1]
	}

	messages := a.prompts.BuildMessages(query, docs, history, "")

	if err := a.limiter.Wait(ctx); err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	text, err := a.completer.Complete(ctx, messages)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if text == "" {
		text = fallbackResponse
	}

	sess.AddMessage(prompt.RoleAssistant, text)

	if err := a.sessions.Save(); err != nil {
		a.logger.Warn("session persistence failed", "error", err)
	}

	a.logger.Info("turn completed",
		"user_id", userID,
		"documents", len(docs),
		"history_messages", len(history),
		"answer_length", len(text))

	return Answer{Text: text, Sources: retriever.Sources(docs)}, nil
}

// ClearHistory clears the user's conversation history and reports whether
// there was any. An absent session clears nothing.
func (a *Assistant) ClearHistory(userID string) bool {
	sess := a.sessions.Get(userID)
	if sess == nil {
		return false
	}

	had := sess.HistoryLen() > 0
	sess.ClearHistory()
	if err := a.sessions.Save(); err != nil {
		a.logger.Warn("session persistence failed", "error", err)
	}
	return had
}

// Stats evicts expired sessions explicitly, then reads counters.
func (a *Assistant) Stats(ctx context.Context) (Stats, error) {
	docCount, err := a.documents.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}

	a.sessions.CleanupExpired()

	return Stats{
		DocumentCount:  docCount,
		UserCount:      a.profiles.Count(),
		ActiveSessions: a.sessions.ActiveCount(),
	}, nil
}
