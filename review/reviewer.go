package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KamdynS/claimreview/llm"
	"github.com/KamdynS/claimreview/observability"
	"github.com/KamdynS/claimreview/prompt"
	"github.com/KamdynS/claimreview/textnorm"
	"github.com/KamdynS/claimreview/toolcall"
	"github.com/KamdynS/claimreview/tools"
)

var (
	// ErrResponseParse means the model response as a whole could not be
	// interpreted; no partial result is available.
	ErrResponseParse = errors.New("model response could not be parsed")
	// ErrNoMessages is returned by Chat for an empty history.
	ErrNoMessages = errors.New("chat requires at least one message")
)

// Options tunes a Reviewer. Zero temperatures take the defaults.
type Options struct {
	Model             string
	ReviewTemperature float64
	ChatTemperature   float64
	Logger            *slog.Logger
}

const (
	defaultReviewTemperature = 0.1
	defaultChatTemperature   = 0.2
)

// Reviewer runs review and chat cycles. It holds no per-cycle state and is
// safe for concurrent use.
type Reviewer struct {
	client  llm.Client
	catalog tools.Registry
	review  *Dispatcher
	chat    *Dispatcher
	opts    Options
	logger  *slog.Logger
}

func New(client llm.Client, catalog tools.Registry, opts Options) *Reviewer {
	if opts.ReviewTemperature == 0 {
		opts.ReviewTemperature = defaultReviewTemperature
	}
	if opts.ChatTemperature == 0 {
		opts.ChatTemperature = defaultChatTemperature
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{
		client:  client,
		catalog: catalog,
		review:  NewDispatcher(catalog, logger, tools.ReviewTools...),
		chat:    NewDispatcher(catalog, logger, tools.ChatTools...),
		opts:    opts,
		logger:  logger,
	}
}

// Review analyses a plain-text document and returns the merged suggestions
// and requested diagram insertions.
func (r *Reviewer) Review(ctx context.Context, document string) (res *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "review.cycle")
	defer func() { observability.EndSpan(span, err) }()
	span.SetAttributes(attribute.Int("document.chars", len(document)))

	req := &llm.ChatRequest{
		Messages:    prompt.ReviewMessages(document),
		Tools:       tools.FromRegistry(r.catalog, tools.ReviewTools...),
		ToolChoice:  llm.ToolChoiceAuto,
		Model:       r.opts.Model,
		Temperature: llm.Float(r.opts.ReviewTemperature),
	}
	batch, err := r.run(ctx, req, func(text string) {
		r.logger.DebugContext(ctx, "review model text", "text", text)
	})
	if err != nil {
		return nil, err
	}
	d := r.review.Dispatch(ctx, batch.Invocations, nil)
	res = NewResult()
	res.Issues = append(res.Issues, d.Suggestions...)
	res.DiagramInsertions = append(res.DiagramInsertions, d.Insertions...)

	span.SetAttributes(
		attribute.Int("review.issues", len(res.Issues)),
		attribute.Int("review.diagrams", len(res.DiagramInsertions)),
		attribute.Int("review.rejected", len(batch.Failures)+len(d.Failures)),
	)
	r.logger.InfoContext(ctx, "review complete",
		"issues", len(res.Issues),
		"diagrams", len(res.DiagramInsertions),
		"rejected", len(batch.Failures)+len(d.Failures),
		"ignored", d.Ignored,
		"orphans", batch.Orphans,
	)
	return res, nil
}

// Chat answers the latest message in history with the document as context.
// Live text, including inline diagrams, is passed to onText as it is
// produced; the full response is also returned.
func (r *Reviewer) Chat(ctx context.Context, history []llm.Message, documentHTML string, onText func(string)) (res *ChatResult, err error) {
	if len(history) == 0 {
		return nil, ErrNoMessages
	}
	ctx, span := observability.StartSpan(ctx, "chat.cycle")
	defer func() { observability.EndSpan(span, err) }()

	var plain string
	if strings.TrimSpace(documentHTML) != "" {
		if plain, err = textnorm.PlainText(documentHTML); err != nil {
			return nil, err
		}
	}
	req := &llm.ChatRequest{
		Messages:    prompt.ChatMessages(history, plain),
		Tools:       tools.FromRegistry(r.catalog, tools.ChatTools...),
		ToolChoice:  llm.ToolChoiceAuto,
		Model:       r.opts.Model,
		Temperature: llm.Float(r.opts.ChatTemperature),
	}
	var sb strings.Builder
	emit := func(text string) {
		sb.WriteString(text)
		if onText != nil {
			onText(text)
		}
	}
	batch, err := r.run(ctx, req, emit)
	if err != nil {
		return nil, err
	}
	d := r.chat.Dispatch(ctx, batch.Invocations, emit)
	span.SetAttributes(attribute.Int("chat.diagrams", len(d.Insertions)))
	r.logger.InfoContext(ctx, "chat complete", "chars", sb.Len(), "diagrams", len(d.Insertions), "rejected", len(batch.Failures)+len(d.Failures))
	return &ChatResult{Response: sb.String(), DiagramInsertions: d.Insertions}, nil
}

func (r *Reviewer) run(ctx context.Context, req *llm.ChatRequest, onText func(string)) (*toolcall.Batch, error) {
	s, err := r.client.ChatStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer s.Close()
	batch, err := toolcall.Collect(ctx, s, onText)
	if err != nil {
		return nil, classify(err)
	}
	for _, f := range batch.Failures {
		r.logger.WarnContext(ctx, "malformed tool arguments", "tool", f.Name, "slot", f.Slot, "error", f.Err)
	}
	return batch, nil
}

// classify marks provider payloads that failed to decode as ErrResponseParse.
func classify(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", ErrResponseParse, err)
	}
	return fmt.Errorf("read stream: %w", err)
}
