// Package ai provides the completion and embedding provider clients.
//
// Two completion backends exist, OpenAI and GigaChat, behind one
// Completer capability. The variant is selected once at startup from the
// configuration enum; each client owns its own authentication lifecycle
// (Bearer key for OpenAI, OAuth token refresh for GigaChat). Embeddings
// always come from OpenAI, regardless of the completion provider.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/prompt"
)

// ErrEmptyResponse indicates the provider returned no usable content.
var ErrEmptyResponse = errors.New("provider returned empty response")

// Completer generates a completion for an ordered message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []prompt.Message) (string, error)
}

// StreamCompleter is the optional streaming variant. Fragments arrive in
// emission order; returning an error from the callback aborts the stream.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, messages []prompt.Message, emit func(fragment string) error) error
}

// NewCompleter selects the completion backend from the configuration.
// An unknown provider is a construction-time error; no runtime type
// inspection happens after this point.
func NewCompleter(cfg *config.Config) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
		}), nil
	case config.ProviderGigaChat:
		return NewGigaChat(GigaChatConfig{
			AuthKey:     cfg.GigaChatAuthKey,
			Model:       cfg.GigaChatModel,
			Scope:       cfg.GigaChatScope,
			OAuthURL:    cfg.GigaChatOAuthURL,
			APIURL:      cfg.GigaChatAPIURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

// wireMessage is the provider wire format shared by both backends.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toWire(messages []prompt.Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		out[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
