package anthropic

import (
	"context"
	"net/http"
	"time"

	base "github.com/KamdynS/claimreview/llm"
	"github.com/KamdynS/claimreview/observability"
	anth "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const providerName = "anthropic"

// Client implements claimreview/llm.Client for Anthropic Claude Messages API.
type Client struct {
	client  anth.Client
	cfg     Config
	retrier *base.Retrier
	open    func(ctx context.Context, params anth.MessageNewParams) anthStreamCore
}

// Config configures the Anthropic client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retry       base.RetryConfig
	Hooks       *observability.Hooks
}

// NewClient creates an Anthropic client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-latest"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = base.DefaultRetryConfig()
	}

	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	c := &Client{client: anth.NewClient(opts...), cfg: cfg, retrier: base.NewRetrier(cfg.Retry)}
	c.open = func(ctx context.Context, params anth.MessageNewParams) anthStreamCore {
		return c.client.Messages.NewStreaming(ctx, params)
	}
	c.retrier.OnRetry = func(attempt int, err error) {
		cfg.Hooks.SafeLLMRetry(context.Background(), providerName, cfg.Model, attempt, err)
	}
	return c, nil
}

func (c *Client) Model() string { return c.cfg.Model }

// ChatStream opens a Messages event stream. Each tool_use content block
// becomes a tool-call slot keyed by its block index; input_json_delta
// fragments continue that slot.
func (c *Client) ChatStream(ctx context.Context, req *base.ChatRequest) (base.Stream, error) {
	start := time.Now()
	params := toAnthParams(req, c.cfg)
	model := string(params.Model)
	c.cfg.Hooks.SafeLLMRequest(ctx, providerName, model, map[string]any{"operation": "chat_stream", "tools": len(req.Tools)})

	var s anthStreamCore
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
	return &anthStreamWrapper{inner: s, primed: primed, model: model, hooks: c.cfg.Hooks}, nil
}

// anthStreamCore matches the subset of the SDK event stream we use.
type anthStreamCore interface {
	Next() bool
	Current() anth.MessageStreamEventUnion
	Err() error
	Close() error
}

type anthStreamWrapper struct {
	inner  anthStreamCore
	primed bool
	model  string
	closed bool
	hooks  *observability.Hooks
	deltas int
}

func (w *anthStreamWrapper) Recv(ctx context.Context) (base.Delta, error) {
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
				w.hooks.SafeLog(ctx, "warn", "llm stream failed", map[string]any{"provider": providerName, "model": w.model, "deltas": w.deltas, "error": err.Error()})
				return base.Delta{}, err
			}
			return w.done(), nil
		}
		ev := w.inner.Current()
		if ev.Type == "message_stop" {
			return w.done(), nil
		}
		if d, ok := w.mapEvent(ev); ok {
			w.deltas++
			return d, nil
		}
	}
}

func (w *anthStreamWrapper) done() base.Delta {
	w.closed = true
	_ = w.inner.Close()
	return base.Delta{Type: base.DeltaTypeDone, Provider: providerName, Model: w.model}
}

func (w *anthStreamWrapper) mapEvent(ev anth.MessageStreamEventUnion) (base.Delta, bool) {
	switch ev.Type {
	case "content_block_start":
		if ev.ContentBlock.Type != "tool_use" {
			return base.Delta{}, false
		}
		// Input on the start block is always empty; arguments arrive as deltas.
		return w.toolDelta(base.ToolCallChunk{Index: int(ev.Index), ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}), true
	case "content_block_delta":
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text == "" {
				return base.Delta{}, false
			}
			return base.Delta{Type: base.DeltaTypeText, Text: ev.Delta.Text, Provider: providerName, Model: w.model}, true
		case "input_json_delta":
			if ev.Delta.PartialJSON == "" {
				return base.Delta{}, false
			}
			return w.toolDelta(base.ToolCallChunk{Index: int(ev.Index), Arguments: ev.Delta.PartialJSON}), true
		}
	}
	return base.Delta{}, false
}

func (w *anthStreamWrapper) toolDelta(tc base.ToolCallChunk) base.Delta {
	return base.Delta{Type: base.DeltaTypeToolCall, ToolCalls: []base.ToolCallChunk{tc}, Provider: providerName, Model: w.model}
}

// Close releases the stream. Closing before the done delta is logged.
func (w *anthStreamWrapper) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.hooks.SafeLog(context.Background(), "debug", "llm stream closed early", map[string]any{"provider": providerName, "model": w.model, "deltas": w.deltas})
	return w.inner.Close()
}

func toAnthParams(req *base.ChatRequest, cfg Config) anth.MessageNewParams {
	msgs := make([]anth.MessageParam, 0, len(req.Messages))
	var system []anth.TextBlockParam
	if req.SystemPrompt != "" {
		system = append(system, anth.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		if m.Role == base.RoleSystem {
			system = append(system, anth.TextBlockParam{Text: m.Content})
			continue
		}
		role := anth.MessageParamRoleUser
		if m.Role == base.RoleAssistant {
			role = anth.MessageParamRoleAssistant
		}
		msgs = append(msgs, anth.MessageParam{
			Role: role,
			Content: []anth.ContentBlockParamUnion{{
				OfText: &anth.TextBlockParam{Text: m.Content},
			}},
		})
	}
	params := anth.MessageNewParams{
		Messages:  msgs,
		MaxTokens: int64(cfg.MaxTokens),
		Model:     anth.Model(base.PickModel(req, cfg.Model)),
		System:    system,
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthTools(req.Tools)
		if req.ToolChoice == base.ToolChoiceAuto {
			params.ToolChoice = anth.ToolChoiceUnionParam{OfAuto: &anth.ToolChoiceAutoParam{}}
		}
	}
	if req.Temperature != nil {
		params.Temperature = anth.Float(*req.Temperature)
	} else if cfg.Temperature > 0 {
		params.Temperature = anth.Float(cfg.Temperature)
	}
	return params
}

// toAnthTools converts function tools into Anthropic tool params, carrying
// the JSON schema properties and required list across.
func toAnthTools(tools []base.Tool) []anth.ToolUnionParam {
	out := make([]anth.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" {
			continue
		}
		tp := &anth.ToolParam{Name: t.Function.Name}
		if t.Function.Description != "" {
			tp.Description = anth.String(t.Function.Description)
		}
		tp.InputSchema = toInputSchema(t.Function.Parameters)
		out = append(out, anth.ToolUnionParam{OfTool: tp})
	}
	return out
}

func toInputSchema(params map[string]any) anth.ToolInputSchemaParam {
	schema := anth.ToolInputSchemaParam{}
	if params == nil {
		return schema
	}
	if props, ok := params["properties"]; ok {
		schema.Properties = props
	}
	switch req := params["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}
