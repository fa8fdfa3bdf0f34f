package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"streamlation/packages/backend/coordinator"
	"streamlation/packages/backend/di"
	"streamlation/packages/backend/redisconfig"
	"streamlation/packages/backend/transport"
)

// sessionRegistry owns the set of live Coordinators, one per active
// session connection, and the shared container used to construct them.
type sessionRegistry struct {
	container *di.Container
	redisAddr string
	logger    *zap.SugaredLogger

	initialConfig coordinator.RuntimeConfig

	mu       sync.Mutex
	sessions map[string]*coordinator.Coordinator
}

func newSessionRegistry(container *di.Container, redisAddr string, logger *zap.SugaredLogger) *sessionRegistry {
	return &sessionRegistry{
		container:     container,
		redisAddr:     redisAddr,
		logger:        logger,
		initialConfig: coordinator.DefaultRuntimeConfig(),
		sessions:      make(map[string]*coordinator.Coordinator),
	}
}

func sessionIDFromPath(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i, p := range parts {
		if p == "sessions" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// sttIngestHandler upgrades the connection and starts (or attaches to) the
// session's Coordinator, pumping recognized hypotheses into it until the
// connection drops.
func (sr *sessionRegistry) sttIngestHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromPath(r)
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	conn, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		sr.logger.Errorw("stt upgrade failed", "session", sessionID, "error", err)
		return
	}

	co := sr.getOrCreate(sessionID, nil)
	source := transport.NewWebSocketSource(conn, sr.logger)

	if err := co.RunSTTSource(r.Context(), source); err != nil {
		sr.logger.Infow("stt source ended", "session", sessionID, "error", err)
	}
	_ = conn.Close()
}

// uiDeliveryHandler upgrades the connection and attaches it as the
// session's delivery sink. Exactly one UI connection is expected per
// session; a later connection replaces the prior sink.
func (sr *sessionRegistry) uiDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromPath(r)
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	conn, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		sr.logger.Errorw("ui upgrade failed", "session", sessionID, "error", err)
		return
	}

	sink := transport.NewWebSocketSink(conn, sr.logger)
	sr.getOrCreate(sessionID, sink)

	// Block on reads purely to detect the UI side closing the connection;
	// the coordinator never expects inbound frames on this socket.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			sr.logger.Infow("ui connection closed", "session", sessionID, "error", err)
			return
		}
	}
}

// configUpdateHandler implements the update_translation_config RPC over
// plain HTTP: a JSON body of coordinator.ConfigUpdate, applied to the
// named session's live Config.
func (sr *sessionRegistry) configUpdateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromPath(r)
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update coordinator.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "malformed config update", http.StatusBadRequest)
		return
	}

	sr.mu.Lock()
	co, ok := sr.sessions[sessionID]
	sr.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	next := co.UpdateConfig(update)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(next); err != nil {
		sr.logger.Errorw("failed to encode config response", "session", sessionID, "error", err)
	}
}

// getOrCreate returns the existing Coordinator for sessionID, installing
// sink on it first if sink is non-nil (replacing whatever sink it was
// constructed or previously installed with), or constructs a new one. The
// STT ingest path passes nil since it doesn't own delivery and must not
// disturb whatever sink the UI side already installed.
func (sr *sessionRegistry) getOrCreate(sessionID string, sink coordinator.Sink) *coordinator.Coordinator {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if co, ok := sr.sessions[sessionID]; ok {
		if sink != nil {
			co.SetSink(sink)
		}
		return co
	}

	c := *sr.container
	if sink != nil {
		c.Sink = sink
	} else {
		c.Sink = transport.NewRecordingSink()
	}
	if sr.redisAddr != "" {
		if store, err := redisconfig.NewFromURL(sr.redisAddr, sessionID, sr.logger); err != nil {
			sr.logger.Warnw("failed to attach redis config store", "session", sessionID, "error", err)
		} else {
			c.ConfigStore = store
		}
	}

	co := c.NewCoordinator(context.Background(), sessionID, coordinator.Options{
		InitialConfig: sr.initialConfig,
	})
	sr.sessions[sessionID] = co
	return co
}

func (sr *sessionRegistry) teardownAll() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	for id, co := range sr.sessions {
		if err := co.Teardown(); err != nil {
			sr.logger.Warnw("session teardown reported error", "session", id, "error", err)
		}
	}
}
