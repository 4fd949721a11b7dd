package openai

import (
	"context"
	"net/http"
	"time"

	base "github.com/KamdynS/claimreview/llm"
	"github.com/KamdynS/claimreview/observability"
	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const providerName = "openai"

// Client implements claimreview/llm.Client for OpenAI official SDK.
type Client struct {
	client  oa.Client
	cfg     Config
	retrier *base.Retrier
	// open is swapped in tests to avoid network access.
	open func(ctx context.Context, params oa.ChatCompletionNewParams) oaStreamCore
}

// Config configures the OpenAI client.
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	Retry        base.RetryConfig
	Organization string
	Hooks        *observability.Hooks
}

// NewClient creates an OpenAI client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = base.DefaultRetryConfig()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	c := &Client{client: oa.NewClient(opts...), cfg: cfg, retrier: base.NewRetrier(cfg.Retry)}
	c.open = func(ctx context.Context, params oa.ChatCompletionNewParams) oaStreamCore {
		return c.client.Chat.Completions.NewStreaming(ctx, params)
	}
	c.retrier.OnRetry = func(attempt int, err error) {
		cfg.Hooks.SafeLLMRetry(context.Background(), providerName, cfg.Model, attempt, err)
	}
	return c, nil
}

func (c *Client) Model() string { return c.cfg.Model }

// ChatStream implements provider-neutral delta streaming for OpenAI, including
// incremental tool-call fragments. Failures before the first chunk are retried.
func (c *Client) ChatStream(ctx context.Context, req *base.ChatRequest) (base.Stream, error) {
	start := time.Now()
	params := c.buildParams(req)
	model := string(params.Model)
	c.cfg.Hooks.SafeLLMRequest(ctx, providerName, model, map[string]any{"operation": "chat_stream", "tools": len(req.Tools)})

	var s oaStreamCore
	var primed bool
	err := c.retrier.Do(ctx, func() error {
		s = c.open(ctx, params)
		if s.Next() {
			primed = true
			return nil
		}
		if err := s.Err(); err != nil {
			_ = s.Close()
			return err
		}
		return nil
	})
	c.cfg.Hooks.SafeLLMResponse(ctx, providerName, model, time.Since(start), map[string]any{"operation": "chat_stream", "started": err == nil, "error": err != nil})
	if err != nil {
		return nil, err
	}
	return &oaStreamWrapper{inner: s, primed: primed, provider: providerName, model: model, hooks: c.cfg.Hooks}, nil
}

func (c *Client) buildParams(req *base.ChatRequest) oa.ChatCompletionNewParams {
	params := oa.ChatCompletionNewParams{Messages: toOAMessages(req)}
	if m := base.PickModel(req, c.cfg.Model); m != "" {
		params.Model = shared.ChatModel(m)
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = oa.Int(int64(c.cfg.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = oa.Float(*req.Temperature)
	} else if c.cfg.Temperature > 0 {
		params.Temperature = oa.Float(c.cfg.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOATools(req.Tools)
		if req.ToolChoice != "" {
			params.ToolChoice = oa.ChatCompletionToolChoiceOptionUnionParam{OfAuto: oa.String(req.ToolChoice)}
		}
	}
	return params
}

type oaStreamWrapper struct {
	inner    oaStreamCore
	primed   bool // inner already advanced to its first chunk
	provider string
	model    string
	closed   bool
	hooks    *observability.Hooks
	deltas   int
}

// oaStreamCore matches the subset of the OpenAI stream API we use.
type oaStreamCore interface {
	Next() bool
	Current() oa.ChatCompletionChunk
	Err() error
	Close() error
}

func (w *oaStreamWrapper) Recv(ctx context.Context) (base.Delta, error) {
	for {
		if w.closed {
			return base.Delta{}, base.ErrStreamClosed
		}
		if err := ctx.Err(); err != nil {
			return base.Delta{}, err
		}
		if w.primed {
			w.primed = false
		} else if !w.inner.Next() {
			if err := w.inner.Err(); err != nil {
				w.hooks.SafeLog(ctx, "warn", "llm stream failed", map[string]any{"provider": w.provider, "model": w.model, "deltas": w.deltas, "error": err.Error()})
				return base.Delta{}, err
			}
			w.closed = true
			_ = w.inner.Close()
			return base.Delta{Type: base.DeltaTypeDone, Provider: w.provider, Model: w.model}, nil
		}
		if d, ok := w.mapChunk(w.inner.Current()); ok {
			w.deltas++
			return d, nil
		}
	}
}

// mapChunk converts the first choice of a chunk into a Delta. Chunks carrying
// neither content nor tool-call fragments (role headers, usage) are skipped.
func (w *oaStreamWrapper) mapChunk(ev oa.ChatCompletionChunk) (base.Delta, bool) {
	if len(ev.Choices) == 0 {
		return base.Delta{}, false
	}
	ch := ev.Choices[0]
	d := base.Delta{Type: base.DeltaTypeText, Text: ch.Delta.Content, Provider: w.provider, Model: w.model}
	for _, tc := range ch.Delta.ToolCalls {
		d.ToolCalls = append(d.ToolCalls, base.ToolCallChunk{
			Index:     int(tc.Index),
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if len(d.ToolCalls) > 0 {
		d.Type = base.DeltaTypeToolCall
	}
	if d.Text == "" && len(d.ToolCalls) == 0 {
		return base.Delta{}, false
	}
	return d, true
}

// Close releases the stream. Closing before the done delta is logged.
func (w *oaStreamWrapper) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.hooks.SafeLog(context.Background(), "debug", "llm stream closed early", map[string]any{"provider": w.provider, "model": w.model, "deltas": w.deltas})
	return w.inner.Close()
}

func toOAMessages(req *base.ChatRequest) []oa.ChatCompletionMessageParamUnion {
	msgs := make([]oa.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oa.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case base.RoleSystem:
			msgs = append(msgs, oa.SystemMessage(m.Content))
		case base.RoleAssistant:
			msgs = append(msgs, oa.ChatCompletionMessageParamUnion{OfAssistant: &oa.ChatCompletionAssistantMessageParam{Content: oa.ChatCompletionAssistantMessageParamContentUnion{OfString: oa.String(m.Content)}}})
		default:
			msgs = append(msgs, oa.ChatCompletionMessageParamUnion{OfUser: &oa.ChatCompletionUserMessageParam{Content: oa.ChatCompletionUserMessageParamContentUnion{OfString: oa.String(m.Content)}}})
		}
	}
	return msgs
}
