package observability

import (
	"context"
	"log/slog"
	"time"
)

// Hooks are optional callbacks the provider clients report through. A nil
// *Hooks or nil field is a no-op.
type Hooks struct {
	// Logf logs a structured message with a severity level and key-value fields.
	Logf func(ctx context.Context, level string, msg string, fields map[string]any)

	// OnLLMRequest is called before a provider stream is opened.
	OnLLMRequest func(ctx context.Context, provider string, model string, meta map[string]any)
	// OnLLMResponse is called once the stream is open or has failed to open.
	OnLLMResponse func(ctx context.Context, provider string, model string, latency time.Duration, meta map[string]any)
	// OnLLMRetry is called before a failed stream open is retried.
	OnLLMRetry func(ctx context.Context, provider string, model string, attempt int, err error)
}

// SlogHooks backs every hook with logger.
func SlogHooks(logger *slog.Logger) *Hooks {
	return &Hooks{
		Logf: func(ctx context.Context, level string, msg string, fields map[string]any) {
			logger.Log(ctx, ParseLevel(level), msg, fieldsToArgs(fields)...)
		},
		OnLLMRequest: func(ctx context.Context, provider, model string, meta map[string]any) {
			args := append([]any{"provider", provider, "model", model}, fieldsToArgs(meta)...)
			logger.DebugContext(ctx, "llm request", args...)
		},
		OnLLMResponse: func(ctx context.Context, provider, model string, latency time.Duration, meta map[string]any) {
			args := append([]any{"provider", provider, "model", model, "latency", latency}, fieldsToArgs(meta)...)
			logger.InfoContext(ctx, "llm stream opened", args...)
		},
		OnLLMRetry: func(ctx context.Context, provider, model string, attempt int, err error) {
			logger.WarnContext(ctx, "llm retry", "provider", provider, "model", model, "attempt", attempt, "error", err)
		},
	}
}

func fieldsToArgs(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// SafeLog logs if Logf is configured.
func (h *Hooks) SafeLog(ctx context.Context, level string, msg string, fields map[string]any) {
	if h != nil && h.Logf != nil {
		h.Logf(ctx, level, msg, fields)
	}
}

// SafeLLMRequest invokes OnLLMRequest if configured.
func (h *Hooks) SafeLLMRequest(ctx context.Context, provider string, model string, meta map[string]any) {
	if h != nil && h.OnLLMRequest != nil {
		h.OnLLMRequest(ctx, provider, model, meta)
	}
}

// SafeLLMResponse invokes OnLLMResponse if configured.
func (h *Hooks) SafeLLMResponse(ctx context.Context, provider string, model string, latency time.Duration, meta map[string]any) {
	if h != nil && h.OnLLMResponse != nil {
		h.OnLLMResponse(ctx, provider, model, latency, meta)
	}
}

// SafeLLMRetry invokes OnLLMRetry if configured.
func (h *Hooks) SafeLLMRetry(ctx context.Context, provider string, model string, attempt int, err error) {
	if h != nil && h.OnLLMRetry != nil {
		h.OnLLMRetry(ctx, provider, model, attempt, err)
	}
}
