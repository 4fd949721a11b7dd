package llm

import (
	"context"
	"errors"
	"time"
)

// RoutePolicy decides which client/model to use for a given request.
type RoutePolicy interface {
	// Select returns the target client and optional model override.
	Select(req *ChatRequest) (Client, string, error)
}

// StaticPolicy routes by req.Model if present, otherwise uses Default.
type StaticPolicy struct {
	Default Client
	ByModel map[string]Client
}

// Select picks a client based on explicit model or defaults.
func (p StaticPolicy) Select(req *ChatRequest) (Client, string, error) {
	if req != nil && req.Model != "" {
		if c, ok := p.ByModel[req.Model]; ok && c != nil {
			return c, req.Model, nil
		}
		if p.Default != nil {
			return p.Default, req.Model, nil
		}
		return nil, "", errors.New("no default client configured")
	}
	if p.Default == nil {
		return nil, "", errors.New("no default client configured")
	}
	return p.Default, "", nil
}

// RouterClient implements Client and delegates via RoutePolicy.
type RouterClient struct {
	policy RoutePolicy
	cfg    RouterConfig
}

// NewRouterClient creates a router client with the given policy.
func NewRouterClient(policy RoutePolicy) *RouterClient {
	return &RouterClient{policy: policy}
}

// RouterConfig controls router behavior like timeouts and fallback.
type RouterConfig struct {
	// Timeout applies when the incoming context has no deadline.
	Timeout time.Duration
	// Fallback is used once when opening the primary stream fails.
	Fallback Client
}

// WithConfig sets optional router config.
func (r *RouterClient) WithConfig(cfg RouterConfig) *RouterClient {
	r.cfg = cfg
	return r
}

// ChatStream delegates to the selected client and returns a provider-neutral stream.
// The fallback never receives the primary's model override.
func (r *RouterClient) ChatStream(ctx context.Context, req *ChatRequest) (Stream, error) {
	c, modelOverride, err := r.policy.Select(req)
	if err != nil {
		return nil, err
	}
	routed := req
	if modelOverride != "" {
		// Shallow clone to avoid mutating caller's struct
		clone := *req
		clone.Model = modelOverride
		routed = &clone
	}
	ctx, cancel := r.ensureTimeout(ctx)
	s, err := c.ChatStream(ctx, routed)
	if err != nil && r.cfg.Fallback != nil && c != r.cfg.Fallback {
		fallbackReq := *req
		fallbackReq.Model = ""
		s, err = r.cfg.Fallback.ChatStream(ctx, &fallbackReq)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{Stream: s, cancel: cancel}, nil
}

func (r *RouterClient) ensureTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || r.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

// Model returns an identifier for this client.
func (r *RouterClient) Model() string { return "router" }

// cancelOnClose releases the router's timeout context together with the stream.
type cancelOnClose struct {
	Stream
	cancel context.CancelFunc
}

func (s *cancelOnClose) Close() error {
	err := s.Stream.Close()
	s.cancel()
	return err
}
