// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tlchat/internal/answer"
	"github.com/jeranaias/tlchat/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

// newTestServer wires a gateway in front of upstream.
func newTestServer(t *testing.T, upstream http.Handler, mutate ...func(*Options)) (*Server, *httptest.Server) {
	t.Helper()
	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	opts := Options{
		Listen:         "127.0.0.1:0",
		UpstreamURL:    up.URL + "/",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	s, err := NewServer(opts)
	require.NoError(t, err)
	return s, up
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_ForwardsVerbatim(t *testing.T) {
	var gotBody string
	s, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"answer":"60 km/h","sources":["a"]}`))
	}))

	body := `{"session_id":"s1","query":"What is the speed limit?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Origin", "http://localhost:3000")
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, gotBody)
	assert.JSONEq(t, `{"answer":"60 km/h","sources":["a"]}`, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestChat_UpstreamFailure(t *testing.T) {
	s, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail":"model offline"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"session_id":"s","query":"q"}`))
	req.Header.Set("Origin", "http://localhost:3000")
	rec := do(s, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to process chat request"}`, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChat_InvalidJSONBody(t *testing.T) {
	called := false
	s, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("not json")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
}

func TestChat_UpstreamUnreachable(t *testing.T) {
	s, up := newTestServer(t, http.NotFoundHandler())
	up.Close()

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to process chat request"}`, rec.Body.String())
}

func TestChat_UpstreamNonJSON(t *testing.T) {
	s, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}), func(o *Options) { o.Production = true })

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// SESSION RESET
// =============================================================================

func TestResetSession_Forwards(t *testing.T) {
	s, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/sessions/abc-123", r.URL.Path)
		w.Write([]byte(`{"message":"Session abc-123 cleared"}`))
	}))

	rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/sessions/abc-123", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Session abc-123 cleared"}`, rec.Body.String())
}

func TestResetSession_Failure(t *testing.T) {
	s, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/sessions/missing", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to clear session"}`, rec.Body.String())
}

// =============================================================================
// HEALTH & ROUTING
// =============================================================================

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, http.NotFoundHandler(), func(o *Options) { o.ServiceName = "test gateway" })
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test gateway", health.Service)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", health.Timestamp)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, http.NotFoundHandler())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewServer_RejectsBadUpstream(t *testing.T) {
	_, err := NewServer(Options{UpstreamURL: "localhost:8000"})
	assert.Error(t, err)
}

// =============================================================================
// CORS
// =============================================================================

func TestCORS_Preflight(t *testing.T) {
	s, _ := newTestServer(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := do(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	s, _ := newTestServer(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := do(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// RATE LIMITING
// =============================================================================

func TestRateLimit_PerClient(t *testing.T) {
	s, _ := newTestServer(t, http.NotFoundHandler(), func(o *Options) {
		o.RatePerSec = 0.001
		o.Burst = 2
	})
	t.Cleanup(s.limiter.Stop)

	health := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = addr
		return do(s, req).Code
	}

	assert.Equal(t, http.StatusOK, health("192.0.2.1:1000"))
	assert.Equal(t, http.StatusOK, health("192.0.2.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, health("192.0.2.1:1002"))
	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, health("192.0.2.2:1000"))
}

func TestRateLimiter_CleanupForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.Allow("192.0.2.9")
	rl.cleanup(time.Now().Add(clientIdleTTL + time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.clients)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "203.0.113.7", GetClientIP(req), "untrusted peers cannot spoof")

	req.RemoteAddr = "127.0.0.1:5555"
	assert.Equal(t, "1.2.3.4", GetClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "127.0.0.1", GetClientIP(req))
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("a"), mw("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "final")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "final"}, order)
}

// =============================================================================
// END TO END
// =============================================================================

func TestGateway_WithAnswerClient(t *testing.T) {
	s, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat":
			w.Write([]byte(`{"answer":"60 km/h"}`))
		case "/sessions/s1":
			w.Write([]byte(`{"message":"cleared"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	front := httptest.NewServer(s.Handler())
	defer front.Close()

	client := answer.NewClient(front.URL + "/api")
	got, err := client.Chat(context.Background(), "s1", "What is the speed limit?")
	require.NoError(t, err)
	assert.Equal(t, "60 km/h", got)

	require.NoError(t, client.ResetSession(context.Background(), "s1"))
}
