package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ---- Fakes ----

type fakeClient struct {
	mu       sync.Mutex
	name     string
	failures int // ChatStream fails this many times before succeeding
	calls    int
	lastReq  ChatRequest
}

func (f *fakeClient) ChatStream(ctx context.Context, req *ChatRequest) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = *req
	if f.failures > 0 {
		f.failures--
		return nil, errors.New(f.name + " unavailable")
	}
	return &SliceStream{Deltas: []Delta{{Type: DeltaTypeText, Text: f.name}}}, nil
}

func (f *fakeClient) Model() string { return f.name }

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func drain(t *testing.T, s Stream) string {
	t.Helper()
	var out string
	for {
		d, err := s.Recv(context.Background())
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if d.Type == DeltaTypeDone {
			return out
		}
		out += d.Text
	}
}

// ---- SliceStream ----

func TestSliceStream_ReplaysThenDone(t *testing.T) {
	s := &SliceStream{Deltas: []Delta{{Type: DeltaTypeText, Text: "a"}, {Type: DeltaTypeText, Text: "b"}}}
	if got := drain(t, s); got != "ab" {
		t.Fatalf("got %q", got)
	}
	if _, err := s.Recv(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed after done, got %v", err)
	}
}

func TestSliceStream_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &SliceStream{Deltas: []Delta{{Type: DeltaTypeText, Text: "a"}}}
	if _, err := s.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// ---- Retrier ----

func TestRetrier_RetriesUntilSuccess(t *testing.T) {
	r := NewRetrier(fastRetry())
	var retries []int
	r.OnRetry = func(attempt int, err error) { retries = append(retries, attempt) }
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || len(retries) != 2 || retries[1] != 2 {
		t.Fatalf("calls=%d retries=%v", calls, retries)
	}
}

func TestRetrier_GivesUpAfterMax(t *testing.T) {
	r := NewRetrier(fastRetry())
	calls := 0
	err := r.Do(context.Background(), func() error { calls++; return errors.New("down") })
	if err == nil || calls != 3 {
		t.Fatalf("expected failure after 3 calls, got err=%v calls=%d", err, calls)
	}
}

func TestRetrier_DoesNotRetryCancellation(t *testing.T) {
	r := NewRetrier(fastRetry())
	calls := 0
	err := r.Do(context.Background(), func() error { calls++; return context.Canceled })
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

// ---- Router ----

func TestRouter_ModelOverrideDoesNotMutateCaller(t *testing.T) {
	a := &fakeClient{name: "a"}
	b := &fakeClient{name: "b"}
	r := NewRouterClient(StaticPolicy{Default: a, ByModel: map[string]Client{"b-model": b}})
	req := &ChatRequest{Model: "b-model"}
	s, err := r.ChatStream(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	defer s.Close()
	if got := drain(t, s); got != "b" {
		t.Fatalf("routed to %q", got)
	}
	if b.lastReq.Model != "b-model" || a.calls != 0 {
		t.Fatalf("unexpected routing: b=%+v a.calls=%d", b.lastReq, a.calls)
	}
}

func TestRouter_FallbackOnOpenFailure(t *testing.T) {
	primary := &fakeClient{name: "primary", failures: 1}
	fallback := &fakeClient{name: "fallback"}
	r := NewRouterClient(StaticPolicy{Default: primary}).WithConfig(RouterConfig{Fallback: fallback, Timeout: time.Second})
	s, err := r.ChatStream(context.Background(), &ChatRequest{Model: "primary-model"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	defer s.Close()
	if got := drain(t, s); got != "fallback" {
		t.Fatalf("expected fallback stream, got %q", got)
	}
	if fallback.lastReq.Model != "" {
		t.Fatalf("fallback must not inherit primary model, got %q", fallback.lastReq.Model)
	}
}

func TestRouter_NoDefault(t *testing.T) {
	r := NewRouterClient(StaticPolicy{})
	if _, err := r.ChatStream(context.Background(), &ChatRequest{}); err == nil {
		t.Fatalf("expected error without default client")
	}
}

// ---- Breaker ----

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeClient{name: "flaky", failures: 10}
	var transitions []gobreaker.State
	b := NewBreakerClient(inner, BreakerConfig{
		MaxFailures: 2,
		Timeout:     time.Hour,
		OnStateChange: func(name string, from, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})
	for i := 0; i < 2; i++ {
		if _, err := b.ChatStream(context.Background(), &ChatRequest{}); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("attempt %d: expected provider error, got %v", i, err)
		}
	}
	_, err := b.ChatStream(context.Background(), &ChatRequest{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open breaker must not reach provider, calls=%d", inner.calls)
	}
	if b.State() != gobreaker.StateOpen || len(transitions) != 1 {
		t.Fatalf("state=%v transitions=%v", b.State(), transitions)
	}
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	b := NewBreakerClient(cancelClient{}, BreakerConfig{MaxFailures: 1, Timeout: time.Hour})
	for i := 0; i < 3; i++ {
		_, err := b.ChatStream(context.Background(), &ChatRequest{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("breaker tripped on cancellation: %v", b.State())
	}
}

type cancelClient struct{}

func (cancelClient) ChatStream(ctx context.Context, req *ChatRequest) (Stream, error) {
	return nil, context.Canceled
}
func (cancelClient) Model() string { return "cancel" }
