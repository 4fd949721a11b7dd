package llm

import (
	"context"
	"errors"
)

// DeltaType identifies the kind of streaming event emitted by a provider.
type DeltaType string

const (
	DeltaTypeText     DeltaType = "text"
	DeltaTypeToolCall DeltaType = "tool_call"
	DeltaTypeDone     DeltaType = "done"
)

// ToolCallChunk is one fragment of a streamed tool invocation.
// Index is the slot of the invocation inside the still-open parallel set; Name is only
// set on the fragment that opens a new invocation.
type ToolCallChunk struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // chunked JSON string
}

// Delta is a provider-neutral streaming event. A single delta may carry text,
// tool-call fragments, or both.
type Delta struct {
	Type      DeltaType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	ToolCalls []ToolCallChunk `json:"tool_calls,omitempty"`
	// Provider/model are optional hints for observability
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Stream provides a pull-based API over provider event streams.
// Implementations return (Delta{Type: DeltaTypeDone}, nil) when complete; Recv after that
// returns ErrStreamClosed.
type Stream interface {
	Recv(ctx context.Context) (Delta, error)
	Close() error
}

// ErrStreamClosed indicates Recv was called after Close or terminal event.
var ErrStreamClosed = errors.New("stream closed")

// SliceStream replays a fixed list of deltas followed by a done delta.
type SliceStream struct {
	Deltas []Delta
	idx    int
	closed bool
}

// Recv implements Stream.
func (s *SliceStream) Recv(ctx context.Context) (Delta, error) {
	if s.closed {
		return Delta{}, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}
	if s.idx >= len(s.Deltas) {
		s.closed = true
		return Delta{Type: DeltaTypeDone}, nil
	}
	d := s.Deltas[s.idx]
	s.idx++
	return d, nil
}

// Close implements Stream.
func (s *SliceStream) Close() error { s.closed = true; return nil }
