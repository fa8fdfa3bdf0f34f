package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"streamlation/packages/backend/stt"
)

// hypothesisWire is the inbound wire shape from an STT engine speaking
// this adapter's protocol: one JSON object per websocket text frame.
type hypothesisWire struct {
	Text             string `json:"text"`
	IsFinal          bool   `json:"is_final"`
	DetectedLanguage string `json:"detected_language,omitempty"`
}

// ReadTimeout bounds how long the source waits for the next STT frame
// before treating the connection as dead.
const ReadTimeout = 30 * time.Second

// WebSocketSource implements stt.Source by reading JSON hypothesis frames
// from an upgraded websocket connection. One source serves exactly one
// session's connection.
type WebSocketSource struct {
	conn   *websocket.Conn
	logger *zap.SugaredLogger
}

// NewWebSocketSource wraps an already-upgraded connection.
func NewWebSocketSource(conn *websocket.Conn, logger *zap.SugaredLogger) *WebSocketSource {
	return &WebSocketSource{conn: conn, logger: logger}
}

// Stream implements stt.Source.
func (s *WebSocketSource) Stream(ctx context.Context, sessionID string) (<-chan stt.HypothesisEvent, <-chan error) {
	events := make(chan stt.HypothesisEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		for {
			if ctx.Err() != nil {
				return
			}
			if err := s.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
				errs <- err
				return
			}

			_, payload, err := s.conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errs <- err
				return
			}

			var wire hypothesisWire
			if err := json.Unmarshal(payload, &wire); err != nil {
				s.logger.Warnw("discarding malformed hypothesis frame", "session", sessionID, "error", err)
				continue
			}

			ev := stt.HypothesisEvent{
				Text:             wire.Text,
				IsFinal:          wire.IsFinal,
				DetectedLanguage: wire.DetectedLanguage,
				ArrivedAt:        time.Now(),
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs
}

var _ stt.Source = (*WebSocketSource)(nil)
