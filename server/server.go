// Package server exposes claim review over HTTP: the websocket review
// channel, the chat endpoints and session inspection.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/KamdynS/claimreview/llm"
	"github.com/KamdynS/claimreview/review"
	"github.com/KamdynS/claimreview/state"
	"github.com/KamdynS/claimreview/textnorm"
)

// Reviewer runs review and chat cycles. *review.Reviewer implements it.
type Reviewer interface {
	Review(ctx context.Context, document string) (*review.Result, error)
	Chat(ctx context.Context, history []llm.Message, documentHTML string, onText func(string)) (*review.ChatResult, error)
}

// Server provides the HTTP API
type Server struct {
	cfg        Config
	reviewer   Reviewer
	store      state.Store
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// Config holds server configuration
type Config struct {
	Reviewer Reviewer
	// Store records review sessions; defaults to an in-memory store.
	Store  state.Store
	Logger *slog.Logger
	Addr   string
	Bounds textnorm.Bounds
	// ReviewsPerMinute limits review cycles per websocket connection; 0 disables it.
	ReviewsPerMinute int
	// AllowedOrigins are origins (scheme://host[:port]) accepted for CORS and
	// websocket requests; "*" accepts any.
	AllowedOrigins      []string
	RequestTimeout      time.Duration
	// MaxRequestBodyBytes bounds chat bodies and review documents.
	MaxRequestBodyBytes int64
	// MaxMessageBytes bounds a single websocket message. Documents between
	// MaxRequestBodyBytes and this limit are rejected per cycle; larger
	// messages close the channel.
	MaxMessageBytes     int64
	PollInterval        time.Duration
	HeartbeatInterval   time.Duration
}

// New creates a new claim review API server
func New(cfg Config) (*Server, error) {
	if cfg.Reviewer == nil {
		return nil, fmt.Errorf("reviewer is required")
	}
	if cfg.Store == nil {
		cfg.Store = state.NewInMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.MaxRequestBodyBytes == 0 {
		cfg.MaxRequestBodyBytes = 1 << 20
	}
	if cfg.MaxMessageBytes < cfg.MaxRequestBodyBytes {
		cfg.MaxMessageBytes = 16 * cfg.MaxRequestBodyBytes
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		reviewer: cfg.Reviewer,
		store:    cfg.Store,
		logger:   cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /ws/review", s.handleReviewSocket)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{id}/events", s.handleSessionEvents)
	s.handler = s.cors(mux)

	// No write timeout: websocket and SSE responses are long-lived.
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting claim review server", "addr", s.cfg.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping claim review server")
	return s.httpServer.Shutdown(ctx)
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// cors answers preflight requests and tags responses for allowed origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

// originPatterns converts AllowedOrigins to the host patterns the websocket
// handshake matches against.
func (s *Server) originPatterns() []string {
	out := make([]string, 0, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
