// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingCredential = errors.New("provider credential is not set")
	ErrMissingModel      = errors.New("provider model is not set")
	ErrUnknownProvider   = errors.New("unknown llm provider")
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Env             string
	Port            string
	LogLevel        string
	LogFormat       string
	TracingExporter string

	// Provider is the primary LLM provider; FallbackProvider, when set, is
	// tried once if the primary fails to open a stream.
	Provider         string
	FallbackProvider string
	OpenAI           ProviderConfig
	Anthropic        ProviderConfig

	Redis          RedisConfig
	Review         ReviewConfig
	AllowedOrigins []string
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type RedisConfig struct {
	Addr   string
	Prefix string
	// SessionTTL expires session records after their last write.
	SessionTTL time.Duration
}

type ReviewConfig struct {
	MinChars int
	MaxChars int
	// PerMinute limits review cycles per websocket connection; 0 disables the limit.
	PerMinute int
}

// Load reads configuration from the environment. Outside production a .env
// file in the working directory is loaded first; existing variables win.
func Load() (Config, error) {
	cfg := Config{Env: getEnv("CLAIMREVIEW_ENV", "development")}
	if !cfg.IsProduction() {
		_ = godotenv.Load(".env")
	}

	cfg = Config{
		Env:             cfg.Env,
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		TracingExporter: getEnv("TRACING_EXPORTER", "noop"),

		Provider:         strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		FallbackProvider: strings.ToLower(getEnv("LLM_FALLBACK_PROVIDER", "")),
		OpenAI: ProviderConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
		},
		Anthropic: ProviderConfig{
			APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
			Model:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Prefix:     getEnv("REDIS_PREFIX", "claimreview"),
			SessionTTL: getEnvDuration("REDIS_SESSION_TTL", 24*time.Hour),
		},
		Review: ReviewConfig{
			MinChars:  getEnvInt("REVIEW_MIN_CHARS", 10),
			MaxChars:  getEnvInt("REVIEW_MAX_CHARS", 50000),
			PerMinute: getEnvInt("REVIEWS_PER_MINUTE", 30),
		},
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
	}
	return cfg, nil
}

// Validate checks that every configured provider has a credential and model.
func (c Config) Validate() error {
	if _, err := c.ProviderConfig(c.Provider); err != nil {
		return err
	}
	if c.FallbackProvider != "" {
		if _, err := c.ProviderConfig(c.FallbackProvider); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	}
	return nil
}

// ProviderConfig returns the settings for the named provider.
func (c Config) ProviderConfig(name string) (ProviderConfig, error) {
	var pc ProviderConfig
	switch name {
	case ProviderOpenAI:
		pc = c.OpenAI
	case ProviderAnthropic:
		pc = c.Anthropic
	default:
		return ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if pc.APIKey == "" {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrMissingCredential, name)
	}
	if pc.Model == "" {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrMissingModel, name)
	}
	return pc, nil
}

// IsProduction reports whether CLAIMREVIEW_ENV is "production". Production
// never reads a .env file.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
