// Package state records review sessions: the cycles run on a channel and the
// sequence of frames sent to the client.
package state

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType is the type of an outbound frame
type EventType string

const (
	EventConnectionReady   EventType = "connection-ready"
	EventProcessingStarted EventType = "processing-started"
	EventValidationError   EventType = "validation-error"
	EventAnalysisError     EventType = "analysis-error"
	EventParseError        EventType = "parse-error"
	EventResult            EventType = "result"
)

// Event records one frame sent on a session. Data carries counts and error
// messages, never the result body.
type Event struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	CycleID     string         `json:"cycle_id,omitempty"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	SequenceNum int64          `json:"sequence_num"`
	Data        map[string]any `json:"data,omitempty"`
}

// NewEvent creates a new event with generated ID
func NewEvent(sessionID string, eventType EventType, data map[string]any) *Event {
	return &Event{
		ID:        NewID(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// IsTerminal reports whether the frame ends a cycle.
func (t EventType) IsTerminal() bool {
	switch t {
	case EventValidationError, EventAnalysisError, EventParseError, EventResult:
		return true
	}
	return false
}

// ToJSON serializes the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// NewID returns a lexically sortable id. Ids created later sort after earlier ones.
func NewID() string {
	return ulid.Make().String()
}
