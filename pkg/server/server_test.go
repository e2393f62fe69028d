package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"prismgate/pkg/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Audit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	s, err := New(Options{
		Config:     cfg,
		Credential: "test-key",
		Version:    "test",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func TestServerHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}
}

func TestServerDetailedHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health/detailed", nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	// Generate one request so counters exist.
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	w = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "prismgate_requests_total") {
		t.Error("request counter missing from metrics output")
	}
}

func TestServerMocksMounted(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/user", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "USER_001") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestServerUnroutedPathIsProxied404(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_request_error") {
		t.Errorf("body = %q, want error envelope", w.Body.String())
	}
}

func TestServerWithAuditStore(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Audit.Enabled = true
		cfg.Audit.Path = filepath.Join(t.TempDir(), "audit.db")
	})

	if s.audit == nil || s.pruner == nil {
		t.Error("audit store not wired when enabled")
	}
}
