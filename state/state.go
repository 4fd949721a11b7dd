package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session or cycle does not exist.
var ErrNotFound = errors.New("state: not found")

// SessionStatus represents whether a review channel is still connected
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// CycleStatus represents the outcome of one document review cycle
type CycleStatus string

const (
	CycleRunning   CycleStatus = "running"
	CycleCompleted CycleStatus = "completed"
	CycleRejected  CycleStatus = "rejected"
	CycleFailed    CycleStatus = "failed"
)

// Session is one review channel. It never holds document or result content.
type Session struct {
	SessionID    string        `json:"session_id"`
	Status       SessionStatus `json:"status"`
	RemoteAddr   string        `json:"remote_addr,omitempty"`
	Cycles       int           `json:"cycles"`
	Error        string        `json:"error,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      *time.Time    `json:"end_time,omitempty"`
	LastEventSeq int64         `json:"last_event_seq"`
}

// Cycle is the metadata of one document submitted on a session.
type Cycle struct {
	CycleID       string      `json:"cycle_id"`
	SessionID     string      `json:"session_id"`
	Status        CycleStatus `json:"status"`
	DocumentChars int         `json:"document_chars"`
	Suggestions   int         `json:"suggestions"`
	Insertions    int         `json:"diagram_insertions"`
	Error         string      `json:"error,omitempty"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       *time.Time  `json:"end_time,omitempty"`
}

// Store defines the interface for persisting review sessions
type Store interface {
	// SaveSession creates or replaces a session record
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves a session; ErrNotFound when absent
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ListSessions lists sessions ordered by start time, optionally filtered by status
	ListSessions(ctx context.Context, status SessionStatus) ([]*Session, error)

	// SaveCycle creates or replaces a cycle record
	SaveCycle(ctx context.Context, cycle *Cycle) error

	// ListCycles returns a session's cycles in submission order
	ListCycles(ctx context.Context, sessionID string) ([]*Cycle, error)

	// AppendEvent appends a frame event and assigns its sequence number
	AppendEvent(ctx context.Context, event *Event) error

	// GetEvents retrieves all events for a session
	GetEvents(ctx context.Context, sessionID string) ([]*Event, error)

	// GetEventsSince retrieves events with a sequence number greater than since
	GetEventsSince(ctx context.Context, sessionID string, since int64) ([]*Event, error)

	// DeleteSession removes a session with its cycles and events
	DeleteSession(ctx context.Context, sessionID string) error
}

// IsTerminal returns true once the cycle has produced its terminal frame
func (s CycleStatus) IsTerminal() bool {
	return s == CycleCompleted || s == CycleRejected || s == CycleFailed
}

// IsOpen returns true while the channel is connected
func (s *Session) IsOpen() bool {
	return s.Status == SessionOpen
}

// Close marks the session closed, recording err if non-nil.
func (s *Session) Close(err error) {
	now := time.Now().UTC()
	s.Status = SessionClosed
	s.EndTime = &now
	if err != nil {
		s.Error = err.Error()
	}
}

// Finish records the cycle outcome.
func (c *Cycle) Finish(status CycleStatus, err error) {
	now := time.Now().UTC()
	c.Status = status
	c.EndTime = &now
	if err != nil {
		c.Error = err.Error()
	}
}

// Duration returns the cycle execution duration
func (c *Cycle) Duration() time.Duration {
	if c.EndTime != nil {
		return c.EndTime.Sub(c.StartTime)
	}
	return time.Since(c.StartTime)
}
