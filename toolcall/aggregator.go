// Package toolcall reassembles streamed tool-call fragments into complete
// invocations.
//
// Providers deliver a tool call as a series of fragments sharing a slot index.
// The fragment that opens an invocation carries the function name; later
// fragments for the same slot carry pieces of the JSON argument payload, which
// are concatenated in arrival order. A provider may reuse a slot index for a
// second invocation once the first is done, so a named fragment on a pending
// slot closes out the previous occupant.
package toolcall

import (
	"sort"
	"strings"

	"github.com/KamdynS/claimreview/llm"
)

// Invocation is a completed tool call.
type Invocation struct {
	Slot      int    `json:"slot"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type pending struct {
	id   string
	name string
	args strings.Builder
}

// Aggregator holds the per-slot state for one stream. It is not safe for
// concurrent use; a stream is consumed by a single goroutine.
type Aggregator struct {
	pending   map[int]*pending
	completed []Invocation
	orphans   int
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{pending: make(map[int]*pending)}
}

// Add folds one fragment into the aggregator.
func (a *Aggregator) Add(c llm.ToolCallChunk) {
	if c.Name != "" {
		if _, ok := a.pending[c.Index]; ok {
			a.finalize(c.Index)
		}
		p := &pending{id: c.ID, name: c.Name}
		p.args.WriteString(c.Arguments)
		a.pending[c.Index] = p
		return
	}
	p, ok := a.pending[c.Index]
	if !ok {
		a.orphans++
		return
	}
	if p.id == "" {
		p.id = c.ID
	}
	p.args.WriteString(c.Arguments)
}

// Pending reports the number of open slots.
func (a *Aggregator) Pending() int { return len(a.pending) }

// Orphans reports how many continuation fragments arrived for a slot that was
// not pending and were dropped.
func (a *Aggregator) Orphans() int { return a.orphans }

// Finish closes every pending slot in ascending slot order and returns all
// completed invocations in completion order. The aggregator is empty afterwards.
func (a *Aggregator) Finish() []Invocation {
	slots := make([]int, 0, len(a.pending))
	for slot := range a.pending {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		a.finalize(slot)
	}
	out := a.completed
	a.completed = nil
	return out
}

// Discard drops all pending and completed state without reporting it.
func (a *Aggregator) Discard() {
	clear(a.pending)
	a.completed = nil
}

func (a *Aggregator) finalize(slot int) {
	p := a.pending[slot]
	delete(a.pending, slot)
	a.completed = append(a.completed, Invocation{Slot: slot, ID: p.id, Name: p.name, Arguments: p.args.String()})
}
