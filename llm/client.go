package llm

import (
	"context"
	"time"
)

// Client is the provider-agnostic streaming completion interface used by the review and chat cycles.
type Client interface {
	// ChatStream opens a provider-neutral delta stream. The caller owns the returned Stream and must Close it.
	ChatStream(ctx context.Context, req *ChatRequest) (Stream, error)
	Model() string
}

// Message roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single role/content entry in a chat.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool defines a callable function made available to the model.
type Tool struct {
	Type     string       `json:"type"` // typically "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a function signature exposed to the model.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolChoiceAuto lets the model decide how many tools to call.
const ToolChoiceAuto = "auto"

// ChatRequest is the normalized chat request sent to providers.
type ChatRequest struct {
	Messages     []Message `json:"messages"`
	Tools        []Tool    `json:"tools,omitempty"`
	ToolChoice   string    `json:"tool_choice,omitempty"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	// Temperature overrides the client default when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`
}

// Float returns a pointer to v, for ChatRequest.Temperature.
func Float(v float64) *float64 { return &v }

// RetryConfig controls retry behavior for network/provider errors.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultRetryConfig returns sane defaults for provider retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// PickModel returns the request model if set, otherwise fallback.
func PickModel(req *ChatRequest, fallback string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return fallback
}
