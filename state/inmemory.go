package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is an in-memory implementation of Store
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cycles   map[string][]*Cycle // sessionID -> cycles in submission order
	events   map[string][]*Event
}

// NewInMemoryStore creates a new in-memory session store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
		cycles:   make(map[string][]*Cycle),
		events:   make(map[string][]*Event),
	}
}

// SaveSession implements Store
func (s *InMemoryStore) SaveSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid external mutations
	sessionCopy := *session
	if prev, ok := s.sessions[session.SessionID]; ok && prev.LastEventSeq > sessionCopy.LastEventSeq {
		sessionCopy.LastEventSeq = prev.LastEventSeq
	}
	s.sessions[session.SessionID] = &sessionCopy
	return nil
}

// GetSession implements Store
func (s *InMemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	// Return a copy to avoid external mutations
	sessionCopy := *session
	return &sessionCopy, nil
}

// ListSessions implements Store
func (s *InMemoryStore) ListSessions(ctx context.Context, status SessionStatus) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0)
	for _, session := range s.sessions {
		if status == "" || session.Status == status {
			sessionCopy := *session
			result = append(result, &sessionCopy)
		}
	}

	// Provide stable ordering by StartTime then SessionID.
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].SessionID < result[j].SessionID
		}
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

// SaveCycle implements Store
func (s *InMemoryStore) SaveCycle(ctx context.Context, cycle *Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycleCopy := *cycle
	cycles := s.cycles[cycle.SessionID]
	for i, c := range cycles {
		if c.CycleID == cycle.CycleID {
			cycles[i] = &cycleCopy
			return nil
		}
	}
	s.cycles[cycle.SessionID] = append(cycles, &cycleCopy)
	return nil
}

// ListCycles implements Store
func (s *InMemoryStore) ListCycles(ctx context.Context, sessionID string) ([]*Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cycles := s.cycles[sessionID]
	result := make([]*Cycle, len(cycles))
	for i, c := range cycles {
		cycleCopy := *c
		result[i] = &cycleCopy
	}
	return result, nil
}

// AppendEvent implements Store
func (s *InMemoryStore) AppendEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events[event.SessionID]

	// Set sequence number
	event.SequenceNum = int64(len(events)) + 1

	// Create a copy to avoid external mutations
	eventCopy := *event
	s.events[event.SessionID] = append(events, &eventCopy)

	if session, ok := s.sessions[event.SessionID]; ok {
		session.LastEventSeq = event.SequenceNum
	}
	return nil
}

// GetEvents implements Store
func (s *InMemoryStore) GetEvents(ctx context.Context, sessionID string) ([]*Event, error) {
	return s.GetEventsSince(ctx, sessionID, 0)
}

// GetEventsSince implements Store
func (s *InMemoryStore) GetEventsSince(ctx context.Context, sessionID string, since int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Event, 0)
	for _, event := range s.events[sessionID] {
		if event.SequenceNum > since {
			eventCopy := *event
			result = append(result, &eventCopy)
		}
	}

	return result, nil
}

// GetEventsWindow returns up to limit events strictly after 'since', and the next
// sequence to request (the last event's SequenceNum or 'since' if none).
func (s *InMemoryStore) GetEventsWindow(ctx context.Context, sessionID string, since int64, limit int) ([]*Event, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, exists := s.events[sessionID]
	if !exists || limit <= 0 {
		return []*Event{}, since, nil
	}

	window := make([]*Event, 0, limit)
	var next int64 = since
	for _, ev := range events {
		if ev.SequenceNum > since {
			evCopy := *ev
			window = append(window, &evCopy)
			next = ev.SequenceNum
			if len(window) >= limit {
				break
			}
		}
	}
	return window, next, nil
}

// DeleteSession implements Store
func (s *InMemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	delete(s.cycles, sessionID)
	delete(s.events, sessionID)
	return nil
}
