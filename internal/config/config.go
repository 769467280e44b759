// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/prdforge/internal/llm"
	"github.com/joho/godotenv"
)

// Config is the full process configuration. It is read once at startup
// and passed explicitly.
type Config struct {
	Port        string
	DBPath      string
	CORSOrigins string
	LogLevel    slog.Level

	LLM               llm.Credentials
	GenerationTimeout time.Duration
	MaxTokens         int

	NotionToken          string
	NotionConnectorURL   string
	NotionConnectorToken string
}

// NotionEnabled reports whether any Notion credential is configured.
func (c Config) NotionEnabled() bool {
	return c.NotionToken != "" || c.NotionConnectorURL != ""
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return FromEnv(os.LookupEnv)
}

// loadDotEnv copies path into the environment without overriding variables
// already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		Port:        get("PRDFORGE_API_PORT", "8080"),
		DBPath:      get("PRDFORGE_DB_PATH", "data/prdforge.db"),
		CORSOrigins: get("PRDFORGE_CORS_ORIGINS", "*"),
		LLM: llm.Credentials{
			OpenAIKey:       get("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   get("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AnthropicKey:    get("ANTHROPIC_API_KEY", ""),
			GeminiKey:       get("GEMINI_API_KEY", ""),
			OllamaHost:      get("OLLAMA_HOST", ""),
			DefaultProvider: llm.Provider(get("PRDFORGE_LLM_PROVIDER", "")),
			DefaultModel:    get("PRDFORGE_LLM_MODEL", ""),
		},
		NotionToken:          get("NOTION_TOKEN", ""),
		NotionConnectorURL:   get("NOTION_CONNECTOR_URL", ""),
		NotionConnectorToken: get("NOTION_CONNECTOR_TOKEN", ""),
	}

	var err error
	if cfg.GenerationTimeout, err = time.ParseDuration(get("PRDFORGE_GENERATION_TIMEOUT", "120s")); err != nil || cfg.GenerationTimeout <= 0 {
		return Config{}, fmt.Errorf("PRDFORGE_GENERATION_TIMEOUT: invalid duration %q", get("PRDFORGE_GENERATION_TIMEOUT", ""))
	}
	if cfg.MaxTokens, err = strconv.Atoi(get("PRDFORGE_MAX_TOKENS", "4096")); err != nil || cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("PRDFORGE_MAX_TOKENS: invalid value %q", get("PRDFORGE_MAX_TOKENS", ""))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(get("PRDFORGE_LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("PRDFORGE_LOG_LEVEL: %w", err)
	}

	switch cfg.LLM.DefaultProvider {
	case "", llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderGoogle, llm.ProviderOllama:
	default:
		return Config{}, fmt.Errorf("PRDFORGE_LLM_PROVIDER: unknown provider %q", cfg.LLM.DefaultProvider)
	}

	return cfg, nil
}

// LogAttrs describes the configuration without secrets.
func (c Config) LogAttrs() []any {
	var keys []string
	if c.LLM.AnthropicKey != "" {
		keys = append(keys, "ANTHROPIC_API_KEY")
	}
	if c.LLM.GeminiKey != "" {
		keys = append(keys, "GEMINI_API_KEY")
	}
	if c.LLM.OpenAIKey != "" {
		keys = append(keys, "OPENAI_API_KEY")
	}
	if c.LLM.OllamaHost != "" {
		keys = append(keys, "OLLAMA_HOST")
	}
	return []any{
		"port", c.Port,
		"db_path", c.DBPath,
		"cors_origins", c.CORSOrigins,
		"llm_provider", string(c.LLM.DefaultProvider),
		"llm_model", c.LLM.DefaultModel,
		"llm_credentials", keys,
		"generation_timeout", c.GenerationTimeout.String(),
		"max_tokens", c.MaxTokens,
		"notion", c.NotionEnabled(),
	}
}
