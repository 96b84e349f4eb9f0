// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (runtime override)
//  2. Config file (~/.docent/config.yaml, or ./config.yaml)
//  3. Default values
//
// Categories:
//   - Provider: completion backend selection ("openai" or "gigachat") and
//     per-provider credentials/models
//   - Index: PostgreSQL + pgvector connection for the document index
//   - Retrieval: chunking and search parameters
//   - Session: conversation lifetime and history bounds
//
// Validation is fail-fast: Load returns an error before any user-facing
// turn can begin. Sensitive values are masked in String()/MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors, checked with errors.Is().
var (
	// ErrInvalidProvider indicates the completion provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates chunk size/overlap values are unusable.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidRetrieval indicates retrieval parameters are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval parameters")

	// ErrInvalidSession indicates session parameters are out of range.
	ErrInvalidSession = errors.New("invalid session parameters")

	// ErrInvalidPostgres indicates the PostgreSQL connection settings are invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL settings")
)

// Completion provider identifiers used in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderGigaChat = "gigachat"
)

// Defaults mirrored in setDefaults; exported where other packages need the
// same bound.
const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the hard-slice overlap in characters.
	DefaultChunkOverlap = 100

	// DefaultMaxContextLength is the character budget for the rendered
	// context block.
	DefaultMaxContextLength = 4000

	// DefaultMaxHistoryMessages is how many trailing history messages are
	// fed back to the model.
	DefaultMaxHistoryMessages = 10

	// DefaultSessionTimeout is the idle session lifetime in seconds.
	DefaultSessionTimeout = 3600
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when
// adding new secrets.
type Config struct {
	// Completion provider selection: "openai" (default) or "gigachat".
	Provider string `mapstructure:"provider" json:"provider"`

	// OpenAI settings. The API key is always required because embeddings
	// are generated through OpenAI regardless of the completion provider.
	OpenAIAPIKey         string  `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE
	OpenAIModel          string  `mapstructure:"openai_model" json:"openai_model"`
	OpenAIEmbeddingModel string  `mapstructure:"openai_embedding_model" json:"openai_embedding_model"`
	Temperature          float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens            int     `mapstructure:"max_tokens" json:"max_tokens"`

	// GigaChat settings (only used when Provider is "gigachat").
	GigaChatAuthKey  string `mapstructure:"gigachat_authorization_key" json:"gigachat_authorization_key"` // SENSITIVE
	GigaChatModel    string `mapstructure:"gigachat_model" json:"gigachat_model"`
	GigaChatScope    string `mapstructure:"gigachat_scope" json:"gigachat_scope"`
	GigaChatOAuthURL string `mapstructure:"gigachat_oauth_url" json:"gigachat_oauth_url"`
	GigaChatAPIURL   string `mapstructure:"gigachat_api_url" json:"gigachat_api_url"`

	// Document index storage (PostgreSQL + pgvector).
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Retrieval parameters.
	NResults         int     `mapstructure:"n_results" json:"n_results"`
	MinRelevance     float64 `mapstructure:"min_relevance" json:"min_relevance"`
	ChunkSize        int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MaxContextLength int     `mapstructure:"max_context_length" json:"max_context_length"`

	// Session parameters.
	SessionTimeout     int `mapstructure:"session_timeout" json:"session_timeout"` // seconds
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`

	// DataDir holds the session and profile store files.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// SystemPrompt overrides the built-in assistant instruction.
	SystemPrompt string `mapstructure:"system_prompt" json:"system_prompt"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docent")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	viper.SetDefault("provider", ProviderOpenAI)

	viper.SetDefault("openai_model", "gpt-4o-mini")
	viper.SetDefault("openai_embedding_model", "text-embedding-3-small")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 1000)

	viper.SetDefault("gigachat_model", "GigaChat")
	viper.SetDefault("gigachat_scope", "GIGACHAT_API_PERS")
	viper.SetDefault("gigachat_oauth_url", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth")
	viper.SetDefault("gigachat_api_url", "https://gigachat.devices.sberbank.ru/api/v1")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docent")
	viper.SetDefault("postgres_password", "docent_dev_password")
	viper.SetDefault("postgres_db_name", "docent")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("n_results", 5)
	viper.SetDefault("min_relevance", 0.0)
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("max_context_length", DefaultMaxContextLength)

	viper.SetDefault("session_timeout", DefaultSessionTimeout)
	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	viper.SetDefault("data_dir", configDir)
}

// bindEnvVariables binds environment variables explicitly. Secrets are only
// ever read from the environment in production deployments.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "DOCENT_PROVIDER")
	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("gigachat_authorization_key", "GIGACHAT_AUTHORIZATION_KEY")
	mustBind("postgres_password", "DOCENT_POSTGRES_PASSWORD")
	mustBind("data_dir", "DOCENT_DATA_DIR")
}

// Validate performs fail-fast validation of the loaded configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGigaChat:
	default:
		return fmt.Errorf("%w: %q (use %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderGigaChat)
	}

	// Embeddings always go through OpenAI, so the key is required for both
	// providers.
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required for embeddings", ErrMissingAPIKey)
	}
	if c.Provider == ProviderGigaChat && c.GigaChatAuthKey == "" {
		return fmt.Errorf("%w: GIGACHAT_AUTHORIZATION_KEY is required when provider is %q",
			ErrMissingAPIKey, ProviderGigaChat)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size=%d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.NResults <= 0 {
		return fmt.Errorf("%w: n_results must be positive, got %d", ErrInvalidRetrieval, c.NResults)
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("%w: min_relevance %v must be in [0, 1]", ErrInvalidRetrieval, c.MinRelevance)
	}
	if c.MaxContextLength <= 0 {
		return fmt.Errorf("%w: max_context_length must be positive, got %d",
			ErrInvalidRetrieval, c.MaxContextLength)
	}

	if c.SessionTimeout <= 0 {
		return fmt.Errorf("%w: session_timeout must be positive, got %d",
			ErrInvalidSession, c.SessionTimeout)
	}
	if c.MaxHistoryMessages <= 0 {
		return fmt.Errorf("%w: max_history_messages must be positive, got %d",
			ErrInvalidSession, c.MaxHistoryMessages)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgres)
	}

	return nil
}

// ConnString returns the pgx connection string for the document index.
func (c *Config) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword,
		c.PostgresDBName, c.PostgresSSLMode)
}

// maskedValue replaces secrets in serialized output. Full-width blocks avoid
// accidental substring matches against real secret material.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep two characters on each end for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.GigaChatAuthKey = maskSecret(a.GigaChatAuthKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
