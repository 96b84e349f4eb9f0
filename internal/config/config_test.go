package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Provider:           ProviderOpenAI,
		OpenAIAPIKey:       "sk-test-key-123456",
		OpenAIModel:        "gpt-4o-mini",
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "docent",
		PostgresPassword:   "secret-password",
		PostgresDBName:     "docent",
		PostgresSSLMode:    "disable",
		NResults:           5,
		MinRelevance:       0.0,
		ChunkSize:          DefaultChunkSize,
		ChunkOverlap:       DefaultChunkOverlap,
		MaxContextLength:   DefaultMaxContextLength,
		SessionTimeout:     DefaultSessionTimeout,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid openai config", mutate: func(c *Config) {}},
		{
			name: "valid gigachat config",
			mutate: func(c *Config) {
				c.Provider = ProviderGigaChat
				c.GigaChatAuthKey = "auth-key"
			},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "openai key required even for gigachat",
			mutate:  func(c *Config) { c.Provider = ProviderGigaChat; c.OpenAIAPIKey = ""; c.GigaChatAuthKey = "k" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "gigachat key required for gigachat",
			mutate:  func(c *Config) { c.Provider = ProviderGigaChat },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap not below chunk size",
			mutate:  func(c *Config) { c.ChunkOverlap = c.ChunkSize },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "zero n_results",
			mutate:  func(c *Config) { c.NResults = 0 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "min_relevance above one",
			mutate:  func(c *Config) { c.MinRelevance = 1.5 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "zero session timeout",
			mutate:  func(c *Config) { c.SessionTimeout = 0 },
			wantErr: ErrInvalidSession,
		},
		{
			name:    "zero history bound",
			mutate:  func(c *Config) { c.MaxHistoryMessages = 0 },
			wantErr: ErrInvalidSession,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgres,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgres,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ConnString(t *testing.T) {
	cfg := validConfig()

	got := cfg.ConnString()
	want := "host=localhost port=5432 user=docent password=secret-password dbname=docent sslmode=disable"
	if got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty stays empty", input: "", want: ""},
		{name: "short fully masked", input: "12345678", want: maskedValue},
		{name: "long keeps edges", input: "sk-abcdefghijklmnop", want: "sk" + "<" + maskedValue + ">" + "op"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfig_MarshalJSON(t *testing.T) {
	cfg := validConfig()
	cfg.GigaChatAuthKey = "very-secret-auth-key"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	s := string(data)
	for _, secret := range []string{"sk-test-key-123456", "secret-password", "very-secret-auth-key"} {
		if strings.Contains(s, secret) {
			t.Errorf("serialized config leaks %q", secret)
		}
	}
	if !strings.Contains(s, maskedValue) {
		t.Error("expected masked values in output")
	}

	t.Run("String() masks too", func(t *testing.T) {
		if s := cfg.String(); strings.Contains(s, "secret-password") {
			t.Error("String() leaks the password")
		}
	})
}
