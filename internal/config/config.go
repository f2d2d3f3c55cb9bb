// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, VA_ prefix)
//  2. Config file (./config.yaml or /etc/virtual-assistant/config.yaml)
//  3. Default values
//
// Secrets (API token, database password) additionally support file
// indirection: any `*_file` key points at a file whose trimmed contents
// become the secret value. This is how the deployment injects mounted
// secrets without putting them in the environment.
//
// Security: sensitive fields are masked in MarshalJSON. Validation failures
// are fatal at startup — a misconfigured process must not serve traffic.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults mirroring the deployed service.
const (
	// DefaultSessionTimeout is how long an idle conversation is kept in
	// memory before the next write sweeps it away.
	DefaultSessionTimeout = 24 * time.Hour

	// DefaultSearchResultSize is the global top-k for multi-collection search.
	DefaultSearchResultSize = 10

	// DefaultRephraseHistoryTurns is the history window for the rephrase prompt.
	DefaultRephraseHistoryTurns = 3

	// DefaultAnswerHistoryTurns is the history window for the answer prompt.
	DefaultAnswerHistoryTurns = 5
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// HTTP surface
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	APIToken   string `mapstructure:"api_token" json:"api_token"` // SENSITIVE: masked in MarshalJSON

	// Model provider configuration. Two independently configured
	// chat-completion endpoints: a single-shot rephraser and a streaming
	// answerer. Both are OpenAI-compatible (vLLM in production); "ollama"
	// is supported for local development.
	Provider          string  `mapstructure:"provider" json:"provider"`
	RephraseModel     string  `mapstructure:"rephrase_model" json:"rephrase_model"`
	RephraseBaseURL   string  `mapstructure:"rephrase_base_url" json:"rephrase_base_url"`
	AnswerModel       string  `mapstructure:"answer_model" json:"answer_model"`
	AnswerBaseURL     string  `mapstructure:"answer_base_url" json:"answer_base_url"`
	ModelAPIKey       string  `mapstructure:"model_api_key" json:"model_api_key"` // SENSITIVE: masked in MarshalJSON
	OllamaHost        string  `mapstructure:"ollama_host" json:"ollama_host"`
	Temperature       float32 `mapstructure:"temperature" json:"temperature"`
	RephraseMaxTokens int     `mapstructure:"rephrase_max_tokens" json:"rephrase_max_tokens"`
	AnswerMaxTokens   int     `mapstructure:"answer_max_tokens" json:"answer_max_tokens"`

	// Embedding configuration. Only the retrieval-query embedder is used by
	// the chat pipeline; it is selectable independently of the chat models.
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderBaseURL string `mapstructure:"embedder_base_url" json:"embedder_base_url"`

	// Retrieval configuration
	SearchResultSize     int `mapstructure:"search_result_size" json:"search_result_size"`
	RephraseHistoryTurns int `mapstructure:"rephrase_history_turns" json:"rephrase_history_turns"`
	AnswerHistoryTurns   int `mapstructure:"answer_history_turns" json:"answer_history_turns"`

	// Session configuration
	SessionTimeout time.Duration `mapstructure:"session_timeout" json:"session_timeout"`

	// Storage configuration (PostgreSQL: pgvector passages, case details,
	// chat log)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// ChatLogTable is the table the exchange log sink writes to.
	ChatLogTable string `mapstructure:"chat_log_table" json:"chat_log_table"`

	// External call deadlines (spec'd hardening: every upstream call gets
	// an explicit deadline).
	RephraseTimeout   time.Duration `mapstructure:"rephrase_timeout" json:"rephrase_timeout"`
	EmbedTimeout      time.Duration `mapstructure:"embed_timeout" json:"embed_timeout"`
	SearchTimeout     time.Duration `mapstructure:"search_timeout" json:"search_timeout"`
	CaseLookupTimeout time.Duration `mapstructure:"case_lookup_timeout" json:"case_lookup_timeout"`
	LogSinkTimeout    time.Duration `mapstructure:"log_sink_timeout" json:"log_sink_timeout"`

	// Proactive model-call rate limiting (0 disables)
	ModelRateLimit float64 `mapstructure:"model_rate_limit" json:"model_rate_limit"`
	ModelRateBurst int     `mapstructure:"model_rate_burst" json:"model_rate_burst"`

	// Observability
	Trace TraceConfig `mapstructure:"trace" json:"trace"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// TraceConfig configures OTLP trace export to a local collector agent.
type TraceConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/virtual-assistant")

	setDefaults(v)

	v.SetEnvPrefix("VA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := resolveSecrets(v, &cfg); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "0.0.0.0:8080")

	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("rephrase_model", "hugging-quants/Meta-Llama-3.1-8B-Instruct-AWQ-INT4")
	v.SetDefault("rephrase_base_url", "http://localhost:10000/v1")
	v.SetDefault("answer_model", "hugging-quants/Meta-Llama-3.1-70B-Instruct-AWQ-INT4")
	v.SetDefault("answer_base_url", "http://localhost:10005/v1")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("temperature", 0.05)
	v.SetDefault("rephrase_max_tokens", 500)
	v.SetDefault("answer_max_tokens", 4096)

	v.SetDefault("embedder_model", "ft-mpnet-v2")
	v.SetDefault("embedder_base_url", "http://localhost:10010/v1")

	v.SetDefault("search_result_size", DefaultSearchResultSize)
	v.SetDefault("rephrase_history_turns", DefaultRephraseHistoryTurns)
	v.SetDefault("answer_history_turns", DefaultAnswerHistoryTurns)
	v.SetDefault("session_timeout", DefaultSessionTimeout)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "assistant")
	v.SetDefault("postgres_db_name", "assistant")
	v.SetDefault("postgres_ssl_mode", "require")

	v.SetDefault("chat_log_table", "chat_logs")

	v.SetDefault("rephrase_timeout", 60*time.Second)
	v.SetDefault("embed_timeout", 10*time.Second)
	v.SetDefault("search_timeout", 10*time.Second)
	v.SetDefault("case_lookup_timeout", 5*time.Second)
	v.SetDefault("log_sink_timeout", 5*time.Second)

	v.SetDefault("model_rate_limit", 0.0)
	v.SetDefault("model_rate_burst", 1)

	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.agent_host", "localhost:4318")
	v.SetDefault("trace.service_name", "virtual-assistant")
	v.SetDefault("trace.environment", "dev")

	v.SetDefault("log_json", true)
	v.SetDefault("log_level", "info")
}

// resolveSecrets applies `*_file` indirection for sensitive values.
// A file-based secret overrides the plain key when both are set.
func resolveSecrets(v *viper.Viper, cfg *Config) error {
	for _, s := range []struct {
		fileKey string
		dst     *string
	}{
		{"api_token_file", &cfg.APIToken},
		{"model_api_key_file", &cfg.ModelAPIKey},
		{"postgres_password_file", &cfg.PostgresPassword},
	} {
		path := v.GetString(s.fileKey)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path) // #nosec G304 -- operator-provided secret path
		if err != nil {
			return fmt.Errorf("reading secret file %q: %w", s.fileKey, err)
		}
		*s.dst = strings.TrimSpace(string(data))
	}
	return nil
}

// PostgresURL returns the connection URL for pgx and golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MarshalJSON masks sensitive fields so configs can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(c)
	if masked.APIToken != "" {
		masked.APIToken = "***"
	}
	if masked.ModelAPIKey != "" {
		masked.ModelAPIKey = "***"
	}
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	return json.Marshal(masked)
}
