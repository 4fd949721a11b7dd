package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KamdynS/claimreview/llm"
	"github.com/KamdynS/claimreview/review"
)

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	Messages               []llm.Message `json:"messages"`
	CurrentDocumentContent string        `json:"current_document_content"`
}

// ChatDelta is the data of a streamed "message" event.
type ChatDelta struct {
	Text string `json:"text"`
}

func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBodyBytes)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(req.Messages) == 0 {
		s.sendError(w, http.StatusBadRequest, "messages is required")
		return nil, false
	}
	return &req, true
}

// handleChat handles POST /chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.reviewer.Chat(ctx, req.Messages, req.CurrentDocumentContent, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "chat failed", "error", err)
		if errors.Is(err, review.ErrNoMessages) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.sendError(w, http.StatusInternalServerError, "chat failed: "+err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, res)
}

// handleChatStream handles POST /chat/stream. Live text goes out as
// "message" events, then one "result" event, then "done".
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	sseHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	res, err := s.reviewer.Chat(ctx, req.Messages, req.CurrentDocumentContent, func(text string) {
		writeEvent(w, "", "message", ChatDelta{Text: text})
		flusher.Flush()
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "chat stream failed", "error", err)
		writeEvent(w, "", "error", ErrorResponse{Error: err.Error()})
	} else {
		writeEvent(w, "", "result", res)
	}
	writeEvent(w, "", "done", struct{}{})
	flusher.Flush()
}
