package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/prompt"
)

// tokenExpiryMargin is subtracted from the reported token lifetime so a
// token is never used within five minutes of expiring.
const tokenExpiryMargin = 5 * time.Minute

// GigaChatConfig contains the parameters for a GigaChat client.
type GigaChatConfig struct {
	// AuthKey is the base64 authorization key exchanged for access tokens.
	AuthKey     string
	Model       string
	Scope       string
	OAuthURL    string
	APIURL      string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client // default: 60s timeout
	Now         func() time.Time
}

// GigaChat is the completion client for the GigaChat API. It owns its
// OAuth client-credentials lifecycle: an access token is fetched lazily
// on first use, cached, and refreshed before expiry.
//
// Safe for concurrent use; token refresh is serialized.
type GigaChat struct {
	authKey     string
	model       string
	scope       string
	oauthURL    string
	apiURL      string
	temperature float32
	maxTokens   int
	httpClient  *http.Client
	now         func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGigaChat creates a GigaChat client.
func NewGigaChat(cfg GigaChatConfig) *GigaChat {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &GigaChat{
		authKey:     cfg.AuthKey,
		model:       cfg.Model,
		scope:       cfg.Scope,
		oauthURL:    cfg.OAuthURL,
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  cfg.HTTPClient,
		now:         cfg.Now,
	}
}

type gigaChatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type gigaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type gigaChatTokenResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is a unix-milliseconds epoch timestamp.
	ExpiresAt int64 `json:"expires_at"`
}

// Complete sends the message sequence to the completions endpoint and
// returns the model's text.
func (c *GigaChat) Complete(ctx context.Context, messages []prompt.Message) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	body := gigaChatRequest{
		Model:       c.model,
		Messages:    toWire(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gigachat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gigachat completion failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out gigaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// token returns a valid access token, refreshing it when the cached one
// is missing or within the expiry margin.
func (c *GigaChat) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"scope": {c.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.authKey)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var tok gigaChatTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token", ErrEmptyResponse)
	}

	c.accessToken = tok.AccessToken
	if tok.ExpiresAt > 0 {
		c.tokenExpiry = time.UnixMilli(tok.ExpiresAt).Add(-tokenExpiryMargin)
	} else {
		c.tokenExpiry = c.now().Add(25 * time.Minute)
	}
	return c.accessToken, nil
}
