package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Sentinel errors for configuration validation, checked with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIToken indicates the inbound bearer token is not set.
	ErrMissingAPIToken = errors.New("missing API token")

	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates a model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidBaseURL indicates a model endpoint URL is malformed.
	ErrInvalidBaseURL = errors.New("invalid model base URL")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates a max-tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidSearchSize indicates the search result size is out of range.
	ErrInvalidSearchSize = errors.New("invalid search result size")

	// ErrInvalidHistoryWindow indicates a prompt history window is invalid.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidSessionTimeout indicates the session TTL is not positive.
	ErrInvalidSessionTimeout = errors.New("invalid session timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrMissingPostgresPassword indicates the database password is not set.
	ErrMissingPostgresPassword = errors.New("missing PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the SSL mode is not recognized.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidChatLogTable indicates the chat log table name is unusable.
	ErrInvalidChatLogTable = errors.New("invalid chat log table name")
)

// Provider identifiers used in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// Validate checks the configuration and returns the first problem found.
// Called from Load; a failure here aborts process startup.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.APIToken == "" {
		return fmt.Errorf("%w: set api_token or api_token_file", ErrMissingAPIToken)
	}

	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderOllama)
	}

	for name, value := range map[string]string{
		"rephrase_model": c.RephraseModel,
		"answer_model":   c.AnswerModel,
		"embedder_model": c.EmbedderModel,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidModelName, name)
		}
	}

	if c.Provider == ProviderOpenAI {
		for name, value := range map[string]string{
			"rephrase_base_url": c.RephraseBaseURL,
			"answer_base_url":   c.AnswerBaseURL,
			"embedder_base_url": c.EmbedderBaseURL,
		} {
			if err := validateURL(value); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidBaseURL, name, err)
			}
		}
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (expected 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}
	if c.RephraseMaxTokens < 1 || c.AnswerMaxTokens < 1 {
		return fmt.Errorf("%w: must be positive", ErrInvalidMaxTokens)
	}

	if c.SearchResultSize < 1 || c.SearchResultSize > 100 {
		return fmt.Errorf("%w: %d (expected 1-100)", ErrInvalidSearchSize, c.SearchResultSize)
	}
	if c.RephraseHistoryTurns < 0 || c.AnswerHistoryTurns < 0 {
		return fmt.Errorf("%w: must be non-negative", ErrInvalidHistoryWindow)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSessionTimeout, c.SessionTimeout)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return ErrInvalidPostgresDBName
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: set postgres_password or postgres_password_file", ErrMissingPostgresPassword)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	// The sink interpolates the table name into DDL, so restrict it to a
	// safe identifier instead of trusting quoting.
	if !validIdentifier(c.ChatLogTable) {
		return fmt.Errorf("%w: %q", ErrInvalidChatLogTable, c.ChatLogTable)
	}

	return nil
}

// validateURL ensures value parses as an absolute http(s) URL.
func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// validIdentifier reports whether s is a safe SQL identifier:
// lowercase letters, digits and underscores, not starting with a digit.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
