// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/tlchat/internal/logger"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize caps forwarded request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxUpstreamBodySize caps upstream responses read into memory (10MB).
	MaxUpstreamBodySize = 10 * 1024 * 1024

	// DefaultServiceName is reported by the health endpoint.
	DefaultServiceName = "tlchat gateway"

	// Fixed client-facing failure messages.
	msgChatFailed  = "Failed to process chat request"
	msgResetFailed = "Failed to clear session"
)

// errUpstreamStatus marks a non-2xx upstream reply.
var errUpstreamStatus = errors.New("upstream returned non-success status")

// ============================================================================
// OPTIONS
// ============================================================================

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	// Listen is the host:port to bind.
	Listen string
	// UpstreamURL is the answer service base, e.g. http://localhost:8000.
	UpstreamURL string
	// AllowedOrigins lists browser origins that receive CORS grants.
	AllowedOrigins []string
	// Production switches error logging to sanitized messages.
	Production bool
	// RatePerSec and Burst bound each client IP. RatePerSec <= 0 disables
	// rate limiting.
	RatePerSec float64
	Burst      int
	// ServiceName is reported by /api/health.
	ServiceName string
	// HTTPClient talks to the upstream. Defaults to a client with no timeout,
	// matching the chat call's unbounded wait.
	HTTPClient *http.Client
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the gateway HTTP server.
type Server struct {
	opts     Options
	upstream string
	client   *http.Client
	router   *http.ServeMux
	handler  http.Handler
	limiter  *RateLimiter
	server   *http.Server
	now      func() time.Time
}

// NewServer validates opts and builds the route table and middleware chain.
func NewServer(opts Options) (*Server, error) {
	u, err := url.Parse(opts.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", opts.UpstreamURL)
	}
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	s := &Server{
		opts:     opts,
		upstream: strings.TrimRight(opts.UpstreamURL, "/"),
		client:   opts.HTTPClient,
		router:   http.NewServeMux(),
		now:      time.Now,
	}
	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		LoggingMiddleware(),
		CORSMiddleware(NewCORSConfig(opts.AllowedOrigins)),
	}
	if opts.RatePerSec > 0 {
		s.limiter = NewRateLimiter(opts.RatePerSec, opts.Burst)
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter))
	}
	s.handler = Chain(middlewares...)(s.router)

	s.server = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("DELETE /api/sessions/{id}", s.handleResetSession)
	s.router.HandleFunc("GET /api/health", s.handleHealth)
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleChat forwards POST /api/chat to {upstream}/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err == nil && !json.Valid(body) {
		err = errors.New("request body is not valid JSON")
	}
	if err != nil {
		s.logFailure("chat", err)
		writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}

	data, err := s.forward(r.Context(), http.MethodPost, "/chat", body)
	if err != nil {
		s.logFailure("chat", err)
		writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}

	writeRaw(w, http.StatusOK, data)
}

// handleResetSession forwards DELETE /api/sessions/{id}.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	data, err := s.forward(r.Context(), http.MethodDelete, "/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		s.logFailure("session_reset", err)
		writeError(w, http.StatusInternalServerError, msgResetFailed)
		return
	}

	writeRaw(w, http.StatusOK, data)
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.opts.ServiceName,
		Timestamp: s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// ============================================================================
// UPSTREAM
// ============================================================================

// forward sends one request upstream and returns its body, which must be a
// JSON document from a 2xx reply.
func (s *Server) forward(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.upstream+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUpstreamBodySize))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", errUpstreamStatus, resp.StatusCode)
	}
	if !json.Valid(data) {
		return nil, errors.New("upstream response is not valid JSON")
	}
	return data, nil
}

func (s *Server) logFailure(op string, err error) {
	if s.opts.Production {
		logger.Logger.Error().Str("op", op).Msg("GATEWAY_ERROR | upstream request failed")
		return
	}
	logger.Logger.Error().Err(err).Str("op", op).Msg("GATEWAY_ERROR")
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on opts.Listen and blocks until Shutdown or a fatal error.
func (s *Server) Start() error {
	logger.Logger.Info().
		Str("addr", s.opts.Listen).
		Str("upstream", s.upstream).
		Bool("production", s.opts.Production).
		Msg("GATEWAY_START")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Logger.Info().Msg("GATEWAY_SHUTDOWN | starting graceful shutdown")
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
