package toolcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KamdynS/claimreview/llm"
)

// ParseFailure reports a completed invocation whose arguments could not be
// decoded. The invocation is skipped; aggregation continues.
type ParseFailure struct {
	Slot      int
	Name      string
	Arguments string
	Err       error
}

func (f ParseFailure) Error() string {
	return fmt.Sprintf("tool %s (slot %d): parse arguments: %v", f.Name, f.Slot, f.Err)
}

func (f ParseFailure) Unwrap() error { return f.Err }

// Batch is the deferred output of one stream.
type Batch struct {
	// Invocations holds completed invocations with well-formed JSON arguments.
	Invocations []Invocation
	// Failures holds completed invocations whose arguments were not valid JSON.
	Failures []ParseFailure
	// Orphans counts continuation fragments dropped for lack of a pending slot.
	Orphans int
}

// Collect consumes s until its done delta. Text fragments are passed to onText
// as they arrive; invocations are returned once the stream ends. If ctx is
// cancelled or the stream fails, pending invocations are discarded and the
// error is returned with a nil Batch. Collect does not close s.
func Collect(ctx context.Context, s llm.Stream, onText func(string)) (*Batch, error) {
	agg := NewAggregator()
	for {
		d, err := s.Recv(ctx)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			agg.Discard()
			if errors.Is(err, llm.ErrStreamClosed) {
				return nil, fmt.Errorf("stream closed before completion: %w", err)
			}
			return nil, err
		}
		if d.Text != "" && onText != nil {
			onText(d.Text)
		}
		for _, c := range d.ToolCalls {
			agg.Add(c)
		}
		if d.Type == llm.DeltaTypeDone {
			break
		}
	}
	b := &Batch{Orphans: agg.Orphans()}
	for _, inv := range agg.Finish() {
		if !json.Valid([]byte(inv.Arguments)) {
			b.Failures = append(b.Failures, ParseFailure{Slot: inv.Slot, Name: inv.Name, Arguments: inv.Arguments, Err: syntaxError(inv.Arguments)})
			continue
		}
		b.Invocations = append(b.Invocations, inv)
	}
	return b, nil
}

func syntaxError(args string) error {
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return err
	}
	return errors.New("invalid JSON")
}

// Decode unmarshals an invocation's arguments into T.
func Decode[T any](inv Invocation) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(inv.Arguments), &out); err != nil {
		return out, ParseFailure{Slot: inv.Slot, Name: inv.Name, Arguments: inv.Arguments, Err: err}
	}
	return out, nil
}
