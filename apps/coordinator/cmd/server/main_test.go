package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestGetListenAddr(t *testing.T) {
	t.Setenv("COORDINATOR_LISTEN_ADDR", "127.0.0.1:9000")

	got := getListenAddr()
	if got != "127.0.0.1:9000" {
		t.Fatalf("expected 127.0.0.1:9000, got %s", got)
	}
}

func TestGetListenAddrDefaults(t *testing.T) {
	t.Setenv("COORDINATOR_LISTEN_ADDR", "")
	if got := getListenAddr(); got != defaultListenAddr {
		t.Fatalf("expected default listen addr, got %s", got)
	}
}

func TestGetRedisAddrDefaults(t *testing.T) {
	t.Setenv("COORDINATOR_REDIS_ADDR", "")
	if got := getRedisAddr(); got != "" {
		t.Fatalf("expected empty redis addr, got %s", got)
	}
}

func TestHealthHandler(t *testing.T) {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	handler := healthHandler(logger)
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	if body := rr.Body.String(); body != "{\"status\":\"ok\"}" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHealthHandlerRejectsNonGet(t *testing.T) {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rr := httptest.NewRecorder()

	healthHandler(logger).ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestNewLoggerHonorsEnv(t *testing.T) {
	t.Setenv("COORDINATOR_LOG_LEVEL", "debug")
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	if !logger.Desugar().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

// Ensure newLogger does not panic when env is unset.
func TestNewLoggerDefaultLevel(t *testing.T) {
	t.Setenv("COORDINATOR_LOG_LEVEL", "")
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	if logger == nil {
		t.Fatal("expected logger instance")
	}
}
