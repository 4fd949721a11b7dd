package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// ErrCircuitOpen is returned when the breaker rejects a stream without contacting the provider.
var ErrCircuitOpen = errors.New("llm circuit open")

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
	// OnStateChange is notified on every breaker transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// BreakerClient wraps a Client with circuit breaker protection around stream initiation.
// Errors after the stream is open are returned through Recv and do not trip the breaker.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker[Stream]
}

// NewBreakerClient wraps inner with a circuit breaker; zero config values take defaults.
func NewBreakerClient(inner Client, cfg BreakerConfig) *BreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}
	cb := gobreaker.NewCircuitBreaker[Stream](gobreaker.Settings{
		Name:        "llm:" + inner.Model(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a provider failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerClient{inner: inner, breaker: cb}
}

// ChatStream implements Client.
func (b *BreakerClient) ChatStream(ctx context.Context, req *ChatRequest) (Stream, error) {
	s, err := b.breaker.Execute(func() (Stream, error) {
		return b.inner.ChatStream(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, b.inner.Model(), err)
		}
		return nil, err
	}
	return s, nil
}

// Model implements Client.
func (b *BreakerClient) Model() string { return b.inner.Model() }

// State returns the current breaker state for monitoring.
func (b *BreakerClient) State() gobreaker.State { return b.breaker.State() }
