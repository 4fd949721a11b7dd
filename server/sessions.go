package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/KamdynS/claimreview/state"
)

// SessionResponse is the body of GET /sessions/{id}
type SessionResponse struct {
	*state.Session
	Duration string         `json:"duration,omitempty"`
	CycleLog []*state.Cycle `json:"cycle_log"`
}

// handleListSessions handles GET /sessions?status=open|closed
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), state.SessionStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to list sessions: "+err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, sessions)
}

// handleGetSession handles GET /sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.lookupSession(w, r, id)
	if !ok {
		return
	}
	cycles, err := s.store.ListCycles(r.Context(), id)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to list cycles: "+err.Error())
		return
	}
	resp := SessionResponse{Session: sess, CycleLog: cycles}
	if sess.EndTime != nil {
		resp.Duration = sess.EndTime.Sub(sess.StartTime).String()
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleDeleteSession handles DELETE /sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to delete session: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionEvents handles GET /sessions/{id}/events. With
// Accept: text/event-stream the frames are streamed until the session closes.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.lookupSession(w, r, id); !ok {
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		err := StreamEvents(r.Context(), w, r.Header.Get("Last-Event-ID"), s.store.GetEventsSince, s.sessionClosed, id, s.cfg.PollInterval, s.cfg.HeartbeatInterval)
		if err != nil {
			s.logger.Warn("session event stream", "session_id", id, "error", err)
		}
		return
	}

	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "since must be an integer")
			return
		}
		since = n
	}
	events, err := s.store.GetEventsSince(r.Context(), id, since)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to get events: "+err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, events)
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request, id string) (*state.Session, bool) {
	sess, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, state.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to get session: "+err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) sessionClosed(ctx context.Context, id string) (bool, error) {
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, state.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !sess.IsOpen(), nil
}
