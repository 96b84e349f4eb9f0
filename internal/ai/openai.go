package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docent-ai/docent/internal/prompt"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	// embedBatchSize bounds one embeddings request.
	embedBatchSize = 100
)

// OpenAIConfig contains the parameters for an OpenAI client.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // default: https://api.openai.com/v1
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	HTTPClient     *http.Client // default: 60s timeout
}

// OpenAI is the chat-completion and embedding client. It implements
// Completer, StreamCompleter, and knowledge.Embedder.
type OpenAI struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	httpClient     *http.Client
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAI{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		httpClient:     cfg.HTTPClient,
	}
}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Complete sends the message sequence to the chat completions endpoint
// and returns the model's text.
func (c *OpenAI) Complete(ctx context.Context, messages []prompt.Message) (string, error) {
	body := openAIChatRequest{
		Model:       c.model,
		Messages:    toWire(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	respBody, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var out openAIChatResponse
	if err := json.NewDecoder(respBody).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// CompleteStream streams the completion, invoking emit for each text
// fragment in emission order.
func (c *OpenAI) CompleteStream(ctx context.Context, messages []prompt.Message, emit func(fragment string) error) error {
	body := openAIChatRequest{
		Model:       c.model,
		Messages:    toWire(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	}

	respBody, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return err
	}
	defer respBody.Close()

	scanner := bufio.NewScanner(respBody)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("decoding stream chunk: %w", err)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// Embed returns one embedding vector per input text, in input order.
// Inputs are sent in batches of at most embedBatchSize.
func (c *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		respBody, err := c.post(ctx, "/embeddings", openAIEmbedRequest{
			Model: c.embeddingModel,
			Input: texts[start:end],
		})
		if err != nil {
			return nil, err
		}

		var out openAIEmbedResponse
		decodeErr := json.NewDecoder(respBody).Decode(&out)
		respBody.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decoding embeddings response: %w", decodeErr)
		}
		if len(out.Data) != end-start {
			return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(out.Data), end-start)
		}
		for _, d := range out.Data {
			vectors = append(vectors, d.Embedding)
		}
	}

	return vectors, nil
}

// post issues a JSON POST and returns the response body on 2xx. The
// caller closes the body.
func (c *OpenAI) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("openai %s failed: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}
