package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aribermeki/framebridge/internal/config"
	"github.com/aribermeki/framebridge/pkg/command"
	"github.com/aribermeki/framebridge/pkg/eventloop"
)

// testServer returns a Server wired with in-memory components for HTTP
// handler tests; no worker is running.
func testServer(t *testing.T) *Server {
	t.Helper()

	reg := command.NewRegistry(0)
	if err := reg.Register("add", command.Sync(func(args []any) (any, error) { return nil, nil })); err != nil {
		t.Fatalf("server:server_test - register failed: %v", err)
	}

	return &Server{
		cfg:  &config.Config{HTTPPort: 8080},
		reg:  reg,
		loop: eventloop.New(eventloop.DefaultOptions()),
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)
	mux := s.newMux()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// The worker is not running, so the bridge reports unhealthy.
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("server:server_test - status = %d, want 503", rec.Code)
	}

	var body struct {
		Status   string          `json:"status"`
		Stats    eventloop.Stats `json:"stats"`
		Commands []string        `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("server:server_test - decode body: %v", err)
	}
	if body.Status != "unhealthy" {
		t.Errorf("server:server_test - status = %q, want unhealthy", body.Status)
	}
	if body.Stats.WorkerRunning {
		t.Error("server:server_test - worker should be reported stopped")
	}
	if len(body.Commands) != 1 || body.Commands[0] != "add" {
		t.Errorf("server:server_test - commands = %v, want [add]", body.Commands)
	}
}

func TestReadyEndpoint(t *testing.T) {
	s := testServer(t)
	mux := s.newMux()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("server:server_test - status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("server:server_test - decode body: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("server:server_test - status = %q, want ready", body["status"])
	}
}
