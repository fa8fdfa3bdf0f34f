package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"streamlation/packages/backend/coordinator"
	"streamlation/packages/backend/di"
	"streamlation/packages/backend/stt"
	"streamlation/packages/backend/transport"
)

func newTestRegistry(t *testing.T) *sessionRegistry {
	t.Helper()
	c, _ := di.NewTestContainer()
	return newSessionRegistry(c, "", zap.NewNop().Sugar())
}

func TestSessionIDFromPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sessions/abc-123/ui", nil)
	if got := sessionIDFromPath(req); got != "abc-123" {
		t.Fatalf("expected abc-123, got %s", got)
	}
}

func TestUIDeliveryHandler_ReceivesCoordinatorMessages(t *testing.T) {
	t.Parallel()
	sr := newTestRegistry(t)

	server := httptest.NewServer(http.HandlerFunc(sr.uiDeliveryHandler))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/sess-1/ui"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)

	co := sr.getOrCreate("sess-1", nil)
	co.HandleEvent(context.Background(), stt.HypothesisEvent{Text: "Hello", IsFinal: true})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected a message, got error: %v", err)
	}

	var msg coordinator.OutboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
}

func TestConfigUpdateHandler_AppliesUpdate(t *testing.T) {
	t.Parallel()
	sr := newTestRegistry(t)
	_ = sr.getOrCreate("sess-2", transport.NewRecordingSink())

	body, _ := json.Marshal(map[string]any{"batch_size": 7})
	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-2/config", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	sr.configUpdateHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestConfigUpdateHandler_UnknownSession(t *testing.T) {
	t.Parallel()
	sr := newTestRegistry(t)

	body, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPost, "/sessions/does-not-exist/config", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	sr.configUpdateHandler(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestConfigUpdateHandler_RejectsNonPost(t *testing.T) {
	t.Parallel()
	sr := newTestRegistry(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-3/config", nil)
	rr := httptest.NewRecorder()

	sr.configUpdateHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestGetOrCreate_STTFirstThenUI_InstallsRealSink(t *testing.T) {
	t.Parallel()
	sr := newTestRegistry(t)

	// STT arrives first, as sttIngestHandler does: it builds the
	// coordinator wired to the in-memory RecordingSink.
	co := sr.getOrCreate("sess-stt-first", nil)

	server := httptest.NewServer(http.HandlerFunc(sr.uiDeliveryHandler))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/sess-stt-first/ui"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)

	co.HandleEvent(context.Background(), stt.HypothesisEvent{Text: "Hello", IsFinal: true})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected the real UI websocket to receive the message after replacing the RecordingSink, got error: %v", err)
	}

	var msg coordinator.OutboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
}

func TestGetOrCreate_ReturnsSameCoordinator(t *testing.T) {
	t.Parallel()
	sr := newTestRegistry(t)

	a := sr.getOrCreate("sess-4", nil)
	b := sr.getOrCreate("sess-4", nil)
	if a != b {
		t.Fatal("expected getOrCreate to reuse the existing coordinator")
	}
}
