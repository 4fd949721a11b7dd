package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	redisstore "github.com/KamdynS/claimreview/adapters/redis"
	"github.com/KamdynS/claimreview/config"
	"github.com/KamdynS/claimreview/llm"
	"github.com/KamdynS/claimreview/llm/anthropic"
	"github.com/KamdynS/claimreview/llm/openai"
	"github.com/KamdynS/claimreview/observability"
	"github.com/KamdynS/claimreview/review"
	"github.com/KamdynS/claimreview/state"
	"github.com/KamdynS/claimreview/textnorm"
	"github.com/KamdynS/claimreview/tools"
)

// newProvider builds the breaker-wrapped client for the named provider.
func newProvider(cfg config.Config, name string, logger *slog.Logger) (llm.Client, error) {
	pc, err := cfg.ProviderConfig(name)
	if err != nil {
		return nil, err
	}
	hooks := observability.SlogHooks(logger)

	var inner llm.Client
	switch name {
	case config.ProviderOpenAI:
		inner, err = openai.NewClient(openai.Config{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL, Hooks: hooks})
	case config.ProviderAnthropic:
		inner, err = anthropic.NewClient(anthropic.Config{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL, Hooks: hooks})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", name, err)
	}

	return llm.NewBreakerClient(inner, llm.BreakerConfig{
		OnStateChange: func(breaker string, from, to gobreaker.State) {
			logger.Warn("llm circuit state changed", "breaker", breaker, "from", from.String(), "to", to.String())
		},
	}), nil
}

// newClient routes to the primary provider, falling back once to the
// secondary when it is configured.
func newClient(cfg config.Config, logger *slog.Logger) (llm.Client, error) {
	primary, err := newProvider(cfg, cfg.Provider, logger)
	if err != nil {
		return nil, err
	}
	rc := llm.RouterConfig{}
	if cfg.FallbackProvider != "" && cfg.FallbackProvider != cfg.Provider {
		fb, err := newProvider(cfg, cfg.FallbackProvider, logger)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		rc.Fallback = fb
	}
	return llm.NewRouterClient(llm.StaticPolicy{Default: primary}).WithConfig(rc), nil
}

func newReviewer(cfg config.Config, logger *slog.Logger) (*review.Reviewer, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	catalog, err := tools.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}
	return review.New(client, catalog, review.Options{Logger: logger}), nil
}

// newStore returns the Redis store when REDIS_ADDR is set, otherwise an
// in-memory store. The returned close function is never nil.
func newStore(cfg config.Config) (state.Store, func() error, error) {
	if !cfg.Redis.Enabled() {
		return state.NewInMemoryStore(), func() error { return nil }, nil
	}
	rs, err := redisstore.New(redisstore.Config{
		Addr:   cfg.Redis.Addr,
		Prefix: cfg.Redis.Prefix,
		TTL:    cfg.Redis.SessionTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	return rs, rs.Close, nil
}

func bounds(cfg config.Config) textnorm.Bounds {
	return textnorm.Bounds{Min: cfg.Review.MinChars, Max: cfg.Review.MaxChars}
}

// withTracing installs the configured exporter and returns its shutdown.
func withTracing(cfg config.Config, logger *slog.Logger) (func(), error) {
	shutdown, err := observability.SetupTracing(cfg.TracingExporter)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}, nil
}
